package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"wakeword": {"porcupine", "microwakeword"},
	"stt":      {"whisper-native", "whisper", "deepgram"},
	"tts":      {"piper", "coqui", "elevenlabs"},
	"player":   {"aplay", "portaudio"},
	"llm":      {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Fields missing from the document keep their [Default] values; a provider
// entry without a name is replaced by the default entry of its kind. An empty
// document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	cfg.Providers = ProvidersConfig{}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	defaultProviders(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Assistant.ListenTimeout < 0 {
		errs = append(errs, fmt.Errorf("assistant.listen_timeout %s must not be negative", cfg.Assistant.ListenTimeout))
	}
	if cfg.Assistant.RetryPrompt == "" {
		errs = append(errs, errors.New("assistant.retry_prompt is required"))
	}

	for _, p := range []struct {
		kind     string
		entry    ProviderEntry
		required bool
		fallback bool
	}{
		{"wakeword", cfg.Providers.WakeWord, true, false},
		{"stt", cfg.Providers.STT, true, true},
		{"tts", cfg.Providers.TTS, true, true},
		{"player", cfg.Providers.Player, true, false},
		{"llm", cfg.Providers.LLM, false, true},
	} {
		if p.entry.Name == "" {
			if p.required {
				errs = append(errs, fmt.Errorf("providers.%s.name is required", p.kind))
			}
			continue
		}
		validateProviderName(p.kind, p.entry.Name)
		if fb := p.entry.Fallback; fb != nil {
			switch {
			case !p.fallback:
				errs = append(errs, fmt.Errorf("providers.%s.fallback is not supported", p.kind))
			case fb.Name == "":
				errs = append(errs, fmt.Errorf("providers.%s.fallback.name is required", p.kind))
			case fb.Fallback != nil:
				errs = append(errs, fmt.Errorf("providers.%s.fallback must not have its own fallback", p.kind))
			default:
				validateProviderName(p.kind, fb.Name)
			}
		}
	}

	if cfg.Commands.Ask.Enabled && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("commands.ask.enabled requires providers.llm to be configured"))
	}
	if cfg.Providers.LLM.Name != "" && !cfg.Commands.Ask.Enabled {
		slog.Warn("providers.llm is configured but commands.ask is disabled; the LLM will not be used")
	}

	for _, c := range []struct{ key, raw string }{
		{"commands.weather.url", cfg.Commands.Weather.URL},
		{"commands.joke.url", cfg.Commands.Joke.URL},
	} {
		if c.raw == "" {
			continue
		}
		if u, err := url.Parse(c.raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s %q is not an absolute URL", c.key, c.raw))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
