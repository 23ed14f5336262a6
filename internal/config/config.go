// Package config provides the configuration schema, loader, and provider
// registry for the Zinnia voice assistant.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Zinnia.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Assistant AssistantConfig `yaml:"assistant"`
	Providers ProvidersConfig `yaml:"providers"`
	Commands  CommandsConfig  `yaml:"commands"`
}

// ServerConfig holds the status endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for /healthz, /readyz and /metrics
	// (e.g., "127.0.0.1:9090"). Empty disables the endpoints.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AssistantConfig shapes the assistant's spoken behaviour.
type AssistantConfig struct {
	// Name is the assistant's name, used in log output and the tray tooltip.
	Name string `yaml:"name"`

	// Acknowledgement is spoken whenever the wake word is detected. Empty
	// disables it.
	Acknowledgement string `yaml:"acknowledgement"`

	// RetryPrompt is spoken when no command matches an utterance.
	RetryPrompt string `yaml:"retry_prompt"`

	// ListenTimeout returns to wake-word detection when no command is heard
	// for this long after the wake word. Zero waits indefinitely.
	ListenTimeout time.Duration `yaml:"listen_timeout"`

	// Tray shows a system tray icon with a Quit item.
	Tray bool `yaml:"tray"`
}

// ProvidersConfig selects the implementation for every stage of the
// assistant. Each entry names a factory registered in the [Registry].
type ProvidersConfig struct {
	WakeWord ProviderEntry `yaml:"wakeword"`
	STT      ProviderEntry `yaml:"stt"`
	TTS      ProviderEntry `yaml:"tts"`
	Player   ProviderEntry `yaml:"player"`
	LLM      ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "piper", "deepgram").
	Name string `yaml:"name"`

	// APIKey authenticates against a cloud API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider. For local engines this is
	// usually a file path.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`

	// Fallback is used when the primary fails. Supported for stt, tts and
	// llm.
	Fallback *ProviderEntry `yaml:"fallback"`
}

// CommandsConfig configures the built-in voice commands.
type CommandsConfig struct {
	Weather WeatherConfig `yaml:"weather"`
	Joke    JokeConfig    `yaml:"joke"`
	Ask     AskConfig     `yaml:"ask"`
}

// WeatherConfig configures the weather command.
type WeatherConfig struct {
	// DefaultLocation is used when the request names no place. Empty lets
	// the weather service locate the caller by IP address.
	DefaultLocation string `yaml:"default_location"`

	// URL overrides the wttr.in base URL.
	URL string `yaml:"url"`
}

// JokeConfig configures the joke command.
type JokeConfig struct {
	// URL overrides the icanhazdadjoke.com endpoint.
	URL string `yaml:"url"`
}

// AskConfig configures the LLM-backed catch-all command.
type AskConfig struct {
	// Enabled registers the command. Requires providers.llm.
	Enabled bool `yaml:"enabled"`

	// SystemPrompt replaces the built-in system prompt.
	SystemPrompt string `yaml:"system_prompt"`
}
