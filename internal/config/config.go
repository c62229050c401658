// Package config loads scriber settings from environment variables,
// with an optional .env file for local setups.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Backend identifiers accepted by SCRIBER_BACKEND.
const (
	BackendLocal  = "local"
	BackendOpenAI = "openai"
	BackendRemote = "remote"
)

// Config holds every tunable that is not a per-run CLI flag.
type Config struct {
	Backend         string // local | openai | remote
	FallbackBackend string // optional, same values, empty disables
	Model           string // whisper model size
	Language        string // empty = auto-detect
	Timestamps      string // none | second | snippet
	BucketWidth     int    // snippet window seconds
	Formats         string // comma-separated extra output formats
	NoCache         bool
	CachePath       string

	WhisperBin       string
	WhisperModelPath string
	WhisperThreads   int

	OpenAIKey     string
	OpenAIBaseURL string

	RemoteURL   string
	RemoteToken string

	DebugLogPath string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present; real environment
// variables win over file entries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Backend:         getEnv("SCRIBER_BACKEND", BackendLocal),
		FallbackBackend: os.Getenv("SCRIBER_FALLBACK_BACKEND"),
		Model:           getEnv("SCRIBER_MODEL", "base"),
		Language:        os.Getenv("SCRIBER_LANGUAGE"),
		Timestamps:      getEnv("SCRIBER_TIMESTAMPS", "none"),
		BucketWidth:     getEnvInt("SCRIBER_BUCKET_WIDTH", 5),
		Formats:         os.Getenv("SCRIBER_FORMATS"),
		NoCache:         os.Getenv("SCRIBER_NO_CACHE") == "true",
		CachePath:       getEnv("SCRIBER_CACHE_PATH", defaultCachePath()),

		WhisperBin:       getEnv("SCRIBER_WHISPER_BIN", "whisper"),
		WhisperModelPath: os.Getenv("SCRIBER_WHISPER_MODEL_PATH"),
		WhisperThreads:   getEnvInt("SCRIBER_WHISPER_THREADS", 0),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		RemoteURL:   os.Getenv("SCRIBER_REMOTE_URL"),
		RemoteToken: os.Getenv("SCRIBER_REMOTE_TOKEN"),

		DebugLogPath: getEnv("SCRIBER_DEBUG_LOG", defaultDebugLogPath()),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	if err := validBackend(c.Backend); err != nil {
		return err
	}
	if c.FallbackBackend != "" {
		if err := validBackend(c.FallbackBackend); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
		if c.FallbackBackend == c.Backend {
			return fmt.Errorf("fallback backend must differ from primary %q", c.Backend)
		}
	}

	switch c.Timestamps {
	case "none", "second", "snippet":
	default:
		return fmt.Errorf("invalid timestamps mode %q (want none, second or snippet)", c.Timestamps)
	}

	if c.BucketWidth < 1 {
		return fmt.Errorf("bucket width must be at least 1, got %d", c.BucketWidth)
	}

	if needs(c, BackendOpenAI) && c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for the openai backend")
	}
	if needs(c, BackendRemote) && c.RemoteURL == "" {
		return fmt.Errorf("SCRIBER_REMOTE_URL is required for the remote backend")
	}
	return nil
}

func validBackend(name string) error {
	switch name {
	case BackendLocal, BackendOpenAI, BackendRemote:
		return nil
	}
	return fmt.Errorf("invalid backend %q (want local, openai or remote)", name)
}

// needs reports whether backend is selected as primary or fallback.
func needs(c *Config, backend string) bool {
	return c.Backend == backend || c.FallbackBackend == backend
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func defaultCachePath() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "scriber", "transcripts.db")
}

func defaultDebugLogPath() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "scriber", "debug.ndjson")
}
