// Command zinnia is the voice assistant: it listens for the wake word, runs
// the spoken command and answers out loud.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/zinnia/internal/app"
	"github.com/MrWong99/zinnia/internal/config"
	"github.com/MrWong99/zinnia/internal/observe"
	"github.com/MrWong99/zinnia/internal/resilience"
	"github.com/MrWong99/zinnia/internal/tray"
	"github.com/MrWong99/zinnia/pkg/audio"
	"github.com/MrWong99/zinnia/pkg/audio/aplay"
	"github.com/MrWong99/zinnia/pkg/audio/portaudio"
	"github.com/MrWong99/zinnia/pkg/provider/llm"
	"github.com/MrWong99/zinnia/pkg/provider/llm/anyllm"
	"github.com/MrWong99/zinnia/pkg/provider/stt"
	"github.com/MrWong99/zinnia/pkg/provider/stt/deepgram"
	"github.com/MrWong99/zinnia/pkg/provider/stt/whisper"
	"github.com/MrWong99/zinnia/pkg/provider/tts"
	"github.com/MrWong99/zinnia/pkg/provider/tts/coqui"
	"github.com/MrWong99/zinnia/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/zinnia/pkg/provider/tts/piper"
	"github.com/MrWong99/zinnia/pkg/provider/wakeword"
	"github.com/MrWong99/zinnia/pkg/provider/wakeword/microwakeword"
	"github.com/MrWong99/zinnia/pkg/provider/wakeword/porcupine"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (built-in defaults when empty)")
	headless := flag.Bool("headless", false, "do not show a tray icon")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "zinnia: config file %q not found\n", *configPath)
			} else {
				fmt.Fprintf(os.Stderr, "zinnia: %v\n", err)
			}
			return 1
		}
	}
	if *headless {
		cfg.Assistant.Tray = false
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("zinnia starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.Setup(context.Background(), observe.TelemetryConfig{
		Version:       version,
		AssistantName: cfg.Assistant.Name,
		Providers: map[string]string{
			"wakeword": cfg.Providers.WakeWord.Name,
			"stt":      cfg.Providers.STT.Name,
			"tts":      cfg.Providers.TTS.Name,
			"player":   cfg.Providers.Player.Name,
			"llm":      cfg.Providers.LLM.Name,
		},
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg, telemetry.Metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	var (
		icon *tray.Systray
		t    tray.Tray = tray.NewHeadless()
	)
	if cfg.Assistant.Tray {
		icon = tray.NewSystray(cfg.Assistant.Name, tray.WithTooltip(cfg.Assistant.Name+" voice assistant"))
		t = icon
	}

	application, err := app.New(ctx, cfg, providers,
		app.WithTray(t),
		app.WithMetrics(telemetry.Metrics),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		if cerr := providers.Close(); cerr != nil {
			slog.Warn("provider close error", "err", cerr)
		}
		return 1
	}

	if icon == nil {
		return runApp(ctx, application)
	}
	// The tray toolkit wants the main goroutine.
	code := make(chan int, 1)
	go func() {
		code <- runApp(ctx, application)
		icon.Quit()
	}()
	icon.Run()
	return <-code
}

// runApp runs the assistant until ctx is cancelled or the tray closes it, then
// shuts it down.
func runApp(ctx context.Context, application *app.App) int {
	slog.Info("listening for the wake word, press Ctrl+C to quit")

	exit := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		exit = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return exit
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Wake word ─────────────────────────────────────────────────────────────

	reg.RegisterWakeWord("porcupine", func(entry config.ProviderEntry) (wakeword.Detector, error) {
		keywords, err := entry.OptStrings("keywords")
		if err != nil {
			return nil, err
		}
		paths, err := entry.OptStrings("keyword_paths")
		if err != nil {
			return nil, err
		}
		sensitivity, _, err := entry.OptFloat("sensitivity")
		if err != nil {
			return nil, err
		}
		return porcupine.New(porcupine.Config{
			AccessKey:    entry.APIKey,
			Keywords:     keywords,
			KeywordPaths: paths,
			ModelPath:    entry.Model,
			Sensitivity:  float32(sensitivity),
		})
	})

	reg.RegisterWakeWord("microwakeword", func(entry config.ProviderEntry) (wakeword.Detector, error) {
		return microwakeword.New(entry.Model)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		ms, ok, err := entry.OptInt("silence_threshold_ms")
		if err != nil {
			return nil, err
		}
		if ok {
			opts = append(opts, whisper.WithSilenceThresholdMs(ms))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.NativeOption
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		ms, ok, err := entry.OptInt("silence_threshold_ms")
		if err != nil {
			return nil, err
		}
		if ok {
			opts = append(opts, whisper.WithNativeSilenceThresholdMs(ms))
		}
		return whisper.NewNative(entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("piper", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []piper.Option
		if bin := entry.OptString("binary"); bin != "" {
			opts = append(opts, piper.WithBinary(bin))
		}
		speaker, ok, err := entry.OptInt("speaker")
		if err != nil {
			return nil, err
		}
		if ok {
			opts = append(opts, piper.WithSpeaker(speaker))
		}
		rate, ok, err := entry.OptInt("sample_rate")
		if err != nil {
			return nil, err
		}
		if ok {
			opts = append(opts, piper.WithSampleRate(rate))
		}
		extra, err := entry.OptStrings("extra_args")
		if err != nil {
			return nil, err
		}
		if len(extra) > 0 {
			opts = append(opts, piper.WithExtraArgs(extra...))
		}
		return piper.New(entry.Model, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if speaker := entry.OptString("speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		if mode := entry.OptString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		rate, ok, err := entry.OptInt("sample_rate")
		if err != nil {
			return nil, err
		}
		if ok {
			opts = append(opts, coqui.WithOutputSampleRate(rate))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := entry.OptString("output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, entry.OptString("voice_id"), opts...)
	})

	// ── Player ────────────────────────────────────────────────────────────────

	reg.RegisterPlayer("aplay", func(entry config.ProviderEntry) (audio.Player, error) {
		var opts []aplay.Option
		if bin := entry.OptString("binary"); bin != "" {
			opts = append(opts, aplay.WithBinary(bin))
		}
		if dev := entry.OptString("device"); dev != "" {
			opts = append(opts, aplay.WithDevice(dev))
		}
		return aplay.New(opts...), nil
	})

	reg.RegisterPlayer("portaudio", func(entry config.ProviderEntry) (audio.Player, error) {
		frames, _, err := entry.OptInt("frames_per_buffer")
		if err != nil {
			return nil, err
		}
		return portaudio.NewPlayer(frames), nil
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	for _, kind := range []string{"wakeword", "stt", "tts", "player", "llm"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
// Any failure is fatal: the assistant cannot run with a slot missing.
func buildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (_ *app.Providers, err error) {
	ps := &app.Providers{}
	defer func() {
		if err != nil {
			if cerr := ps.Close(); cerr != nil {
				slog.Warn("provider close error", "err", cerr)
			}
		}
	}()
	fbCfg := resilience.FallbackConfig{Metrics: metrics}

	if ps.WakeWord, err = reg.CreateWakeWord(cfg.Providers.WakeWord); err != nil {
		return nil, fmt.Errorf("create wakeword provider %q: %w", cfg.Providers.WakeWord.Name, err)
	}
	logCreated("wakeword", cfg.Providers.WakeWord)

	if ps.STT, err = withFallback("stt", cfg.Providers.STT, reg.CreateSTT, func(primary stt.Provider, name string) fallback[stt.Provider] {
		return resilience.NewSTTFallback(primary, name, fbCfg)
	}); err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}

	if ps.TTS, err = withFallback("tts", cfg.Providers.TTS, reg.CreateTTS, func(primary tts.Provider, name string) fallback[tts.Provider] {
		return resilience.NewTTSFallback(primary, name, fbCfg)
	}); err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}

	if ps.Player, err = reg.CreatePlayer(cfg.Providers.Player); err != nil {
		return nil, fmt.Errorf("create player provider %q: %w", cfg.Providers.Player.Name, err)
	}
	logCreated("player", cfg.Providers.Player)

	if cfg.Providers.LLM.Name != "" {
		if ps.LLM, err = withFallback("llm", cfg.Providers.LLM, reg.CreateLLM, func(primary llm.Provider, name string) fallback[llm.Provider] {
			return resilience.NewLLMFallback(primary, name, fbCfg)
		}); err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
		}
	}

	// The microphone runs at the detector's rate with one frame per callback.
	if ps.Source, err = portaudio.NewSource(ps.WakeWord.SampleRate(), ps.WakeWord.FrameLength()); err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}
	slog.Info("audio source ready", "sample_rate", ps.WakeWord.SampleRate(), "frame_length", ps.WakeWord.FrameLength())

	return ps, nil
}

// fallback is the shape shared by the resilience fallback wrappers.
type fallback[T any] interface {
	AddFallback(name string, p T)
}

// withFallback creates the provider for entry and, when entry names a
// fallback, wraps both in the failover group built by wrap.
func withFallback[T any](kind string, entry config.ProviderEntry, create func(config.ProviderEntry) (T, error), wrap func(T, string) fallback[T]) (T, error) {
	var zero T
	primary, err := create(entry)
	if err != nil {
		return zero, err
	}
	logCreated(kind, entry)
	if entry.Fallback == nil {
		return primary, nil
	}
	backup, err := create(*entry.Fallback)
	if err != nil {
		return zero, fmt.Errorf("fallback %q: %w", entry.Fallback.Name, err)
	}
	group := wrap(primary, entry.Name)
	group.AddFallback(entry.Fallback.Name, backup)
	slog.Info("provider fallback configured", "primary", entry.Name, "fallback", entry.Fallback.Name)
	// Every wrapper implements T.
	return any(group).(T), nil
}

func logCreated(kind string, entry config.ProviderEntry) {
	slog.Info("provider created", "kind", kind, "name", entry.Name, "model", entry.Model)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Zinnia — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Wake word", cfg.Providers.WakeWord.Name, cfg.Providers.WakeWord.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, "")
	printProvider("Player", cfg.Providers.Player.Name, "")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	if cfg.Commands.Ask.Enabled {
		fmt.Printf("║  Ask command     : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Ask command     : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Listen timeout  : %-19s ║\n", cfg.Assistant.ListenTimeout)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
