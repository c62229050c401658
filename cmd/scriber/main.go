// Command scriber transcribes audio and video recordings to text, with
// optional per-second or per-snippet timestamp lines.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ajornet/scriber/internal/asr"
	"github.com/ajornet/scriber/internal/asr/localwhisper"
	"github.com/ajornet/scriber/internal/asr/openaiwhisper"
	"github.com/ajornet/scriber/internal/asr/remotewhisper"
	"github.com/ajornet/scriber/internal/cache"
	"github.com/ajornet/scriber/internal/config"
	"github.com/ajornet/scriber/internal/diaglog"
	"github.com/ajornet/scriber/internal/mediafile"
	"github.com/ajornet/scriber/internal/pidfile"
	"github.com/ajornet/scriber/internal/transcript"
	"github.com/ajornet/scriber/internal/watcher"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

var (
	outLog = log.New(os.Stdout, "", 0)
	errLog = log.New(os.Stderr, "scriber: ", 0)
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: scriber [flags] <input> [output]
       scriber --watch [flags] <directory>
       scriber --health [flags]
       scriber --export-diag

Transcribes an audio or video recording (%s) to text.
The output path defaults to the input with a .txt extension.

Flags:
`, strings.Join(mediafile.SupportedExtensions(), " "))
	flag.PrintDefaults()
}

func main() {
	// --export-diag: read the debug log, write a bundle, exit.
	if len(os.Args) > 1 && os.Args[1] == "--export-diag" {
		logPath := os.Getenv("SCRIBER_DEBUG_LOG")
		if logPath == "" {
			logPath = filepath.Join(os.Getenv("HOME"), ".cache", "scriber", "debug.ndjson")
		}
		diaglog.Version = Version
		path, n, err := diaglog.Export(logPath, ".")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(os.Stderr, "hint: run with SCRIBER_DEBUG=true to enable logging")
			}
			os.Exit(1)
		}
		fmt.Printf("Wrote: %s (%d lines)\n", path, n)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		errLog.Printf("configuration error: %v", err)
		os.Exit(2)
	}

	var (
		flagBackend    = flag.String("backend", cfg.Backend, "transcription backend: local, openai or remote")
		flagFallback   = flag.String("fallback-backend", cfg.FallbackBackend, "backend to try when the primary fails (empty disables)")
		flagModel      = flag.String("model", cfg.Model, "whisper model size (tiny, base, small, medium, large)")
		flagLanguage   = flag.String("language", cfg.Language, "spoken language code (empty = auto-detect)")
		flagTimestamps = flag.String("timestamps", cfg.Timestamps, "timestamp mode: none, second or snippet")
		flagWidth      = flag.Int("width", cfg.BucketWidth, "snippet window width in seconds")
		flagFormats    = flag.String("format", cfg.Formats, "extra output formats, comma-separated (srt, vtt)")
		flagNoCache    = flag.Bool("no-cache", cfg.NoCache, "skip the transcript cache")
		flagMeta       = flag.Bool("meta", false, "write a .meta.json sidecar next to the transcript")
		flagWatch      = flag.Bool("watch", false, "watch a directory and transcribe new recordings as they appear")
		flagHealth     = flag.Bool("health", false, "check backend availability and exit")
		flagVersion    = flag.Bool("version", false, "print version and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *flagVersion {
		fmt.Println("scriber " + Version)
		os.Exit(0)
	}

	cfg.Backend = *flagBackend
	cfg.FallbackBackend = *flagFallback
	cfg.Model = *flagModel
	cfg.Language = *flagLanguage
	cfg.Timestamps = *flagTimestamps
	cfg.BucketWidth = *flagWidth
	cfg.Formats = *flagFormats
	cfg.NoCache = *flagNoCache
	if err := cfg.Validate(); err != nil {
		errLog.Printf("configuration error: %v", err)
		os.Exit(2)
	}

	logger, err := diaglog.New(cfg.DebugLogPath)
	if err != nil {
		errLog.Printf("debug log unavailable: %v", err)
		logger = diaglog.NewNoOp()
	}
	defer logger.Close()

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		errLog.Print(err)
		os.Exit(2)
	}

	if *flagHealth {
		os.Exit(runHealth(registry))
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	runner := &runner{
		cfg:       cfg,
		registry:  registry,
		logger:    logger,
		writeMeta: *flagMeta,
	}
	if !cfg.NoCache {
		store, err := cache.Open(cfg.CachePath)
		if err != nil {
			// The cache is an optimization; a broken cache never blocks
			// transcription.
			errLog.Printf("cache unavailable: %v", err)
		} else {
			store.SetLogger(logger)
			defer store.Close()
			runner.store = store
		}
	}

	if *flagWatch {
		os.Exit(runWatch(runner, flag.Arg(0)))
	}

	input := flag.Arg(0)
	output := ""
	if flag.NArg() > 1 {
		output = flag.Arg(1)
	}
	if err := runner.transcribeFile(input, output); err != nil {
		errLog.Print(err)
		os.Exit(1)
	}
}

// buildRegistry instantiates the configured backends and wires primary
// and fallback routing.
func buildRegistry(cfg *config.Config, logger *diaglog.Logger) (*asr.Registry, error) {
	registry := asr.NewRegistry()

	add := func(kind string) error {
		switch kind {
		case config.BackendLocal:
			b := localwhisper.NewBackend(localwhisper.Config{
				BinaryPath: cfg.WhisperBin,
				ModelPath:  cfg.WhisperModelPath,
				Model:      cfg.Model,
				Threads:    cfg.WhisperThreads,
			})
			b.SetLogger(logger)
			registry.Register(b.Name(), b)
		case config.BackendOpenAI:
			b := openaiwhisper.NewBackend(openaiwhisper.Config{
				APIKey:  cfg.OpenAIKey,
				BaseURL: cfg.OpenAIBaseURL,
			})
			b.SetLogger(logger)
			registry.Register(b.Name(), b)
		case config.BackendRemote:
			c := remotewhisper.NewClient(remotewhisper.Config{
				BaseURL:  cfg.RemoteURL,
				Token:    cfg.RemoteToken,
				Model:    cfg.Model,
				Progress: diaglog.IsDebugEnabled(),
			})
			c.SetLogger(logger)
			registry.Register(c.Name(), c)
		default:
			return fmt.Errorf("unknown backend %q", kind)
		}
		return nil
	}

	if err := add(cfg.Backend); err != nil {
		return nil, err
	}
	if cfg.FallbackBackend != "" {
		if err := add(cfg.FallbackBackend); err != nil {
			return nil, err
		}
		names := registry.Backends()
		// Register order is not guaranteed by Backends; resolve by kind.
		primary := backendName(cfg.Backend)
		for _, n := range names {
			if n != primary {
				registry.SetFallback(n)
			}
		}
		registry.SetPrimary(primary)
	}
	return registry, nil
}

// backendName maps a config backend kind to its registry name.
func backendName(kind string) string {
	switch kind {
	case config.BackendOpenAI:
		return "openai_whisper"
	case config.BackendRemote:
		return "remote_whisper"
	default:
		return "local_whisper"
	}
}

// runHealth checks every registered backend and reports per-backend
// status. Returns 0 when all are healthy.
func runHealth(registry *asr.Registry) int {
	code := 0
	for _, name := range registry.Backends() {
		b, _ := registry.Get(name)
		status, err := b.HealthCheck()
		if err != nil {
			outLog.Printf("%-16s FAIL  %v", name, err)
			code = 1
			continue
		}
		state := "OK"
		if !status.OK {
			state = "FAIL"
			code = 1
		}
		outLog.Printf("%-16s %-4s  %s (%.0fms)", name, state, status.Message, float64(status.Latency.Milliseconds()))
	}
	return code
}

// runner holds everything a single transcription needs.
type runner struct {
	cfg       *config.Config
	registry  *asr.Registry
	store     *cache.Store
	logger    *diaglog.Logger
	writeMeta bool
}

// transcribeFile runs the full pipeline for one input file. When output
// is empty the path is derived from the input. Nothing is written on
// failure.
func (r *runner) transcribeFile(input, output string) error {
	if err := mediafile.Validate(input); err != nil {
		return err
	}
	if output == "" {
		output = mediafile.DeriveOutputPath(input, ".txt")
	}

	wordTimestamps := r.cfg.Timestamps != "none"
	opts := asr.TranscribeOptions{
		Model:          r.cfg.Model,
		Language:       r.cfg.Language,
		WordTimestamps: wordTimestamps,
	}

	outLog.Printf("Transcribing: %s", input)

	result, err := r.lookupOrTranscribe(input, opts)
	if err != nil {
		return err
	}

	renderOpts := transcript.RenderOptions{
		Timestamps:  transcript.TimestampMode(r.cfg.Timestamps),
		BucketWidth: r.cfg.BucketWidth,
	}
	content, err := transcript.Render(result, renderOpts)
	if err != nil {
		return err
	}
	if err := transcript.WriteText(output, content); err != nil {
		return err
	}
	outputs := []string{output}

	base := strings.TrimSuffix(output, filepath.Ext(output))
	for _, format := range splitFormats(r.cfg.Formats) {
		var err error
		switch format {
		case "srt":
			err = transcript.WriteSRT(base+".srt", result)
			outputs = append(outputs, base+".srt")
		case "vtt":
			err = transcript.WriteVTT(base+".vtt", result)
			outputs = append(outputs, base+".vtt")
		case "txt":
			// Already written.
		default:
			err = fmt.Errorf("unknown output format %q", format)
		}
		if err != nil {
			return err
		}
	}

	if r.writeMeta {
		if _, err := mediafile.WriteMetadata(base, mediafile.Metadata{
			Version:    Version,
			Input:      input,
			Outputs:    outputs,
			Backend:    result.Backend,
			Model:      result.Model,
			Timestamps: r.cfg.Timestamps,
		}); err != nil {
			return err
		}
	}

	r.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentCore,
		Event:     diaglog.EventOutputSaved,
		Payload: map[string]interface{}{
			"input": input, "outputs": outputs, "backend": result.Backend,
		},
	})

	for _, path := range outputs {
		outLog.Printf("Transcript saved to: %s", path)
	}
	return nil
}

// lookupOrTranscribe consults the cache before invoking a backend and
// stores fresh results afterwards. Cache failures degrade to a normal
// transcription.
func (r *runner) lookupOrTranscribe(input string, opts asr.TranscribeOptions) (*asr.Transcript, error) {
	primary := r.registry.Primary()
	if primary == nil {
		return nil, fmt.Errorf("no backend configured")
	}

	var key string
	if r.store != nil {
		k, err := cache.Key(input, primary.Name(), opts.Model, opts.WordTimestamps)
		if err == nil {
			key = k
			if cached, err := r.store.Get(key); err == nil {
				outLog.Printf("Using cached transcript (%s, %s)", cached.Backend, cached.Model)
				return cached, nil
			}
		}
	}

	result, err := r.registry.Transcribe(input, opts)
	if err != nil {
		return nil, err
	}

	if r.store != nil && key != "" {
		if err := r.store.Put(key, result); err != nil {
			errLog.Printf("cache store failed: %v", err)
		}
	}
	return result, nil
}

// runWatch transcribes every new recording that appears under dir until
// interrupted. A PID file keeps a second watcher off the same directory.
func runWatch(r *runner, dir string) int {
	lock, err := pidfile.Acquire(pidfile.DefaultPath("scriber-watch"))
	if err != nil {
		errLog.Print(err)
		return 1
	}
	defer lock.Release()

	w, err := watcher.New(watcher.Config{Dir: dir}, func(path string) {
		// Watch mode never overwrites: a re-exported recording gets a
		// numbered transcript next to the original.
		output := mediafile.UniquePath(mediafile.DeriveOutputPath(path, ".txt"))
		if err := r.transcribeFile(path, output); err != nil {
			errLog.Printf("watch: %v", err)
		}
	})
	if err != nil {
		errLog.Print(err)
		return 1
	}
	w.SetLogger(r.logger)
	w.Start()
	defer w.Stop()

	outLog.Printf("Watching %s for new recordings (Ctrl-C to stop)", dir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	outLog.Println("Stopping watcher...")
	return 0
}

// splitFormats parses the comma-separated --format value.
func splitFormats(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
