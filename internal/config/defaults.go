package config

import "time"

// Default returns the configuration used when no file is given: a local,
// offline setup with microWakeWord, whisper.cpp, piper and aplay.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Assistant: AssistantConfig{
			Name:            "Zinnia",
			Acknowledgement: "Yes?",
			RetryPrompt:     "I'm not sure what you're asking for. Please try again.",
			ListenTimeout:   8 * time.Second,
			Tray:            true,
		},
		Providers: ProvidersConfig{
			WakeWord: ProviderEntry{Name: "microwakeword", Model: "hey_jarvis"},
			STT:      ProviderEntry{Name: "whisper-native", Model: "models/ggml-base.en.bin"},
			TTS: ProviderEntry{
				Name:  "piper",
				Model: "piper/libritts_r/en_US-libritts_r-medium.onnx",
				Options: map[string]any{
					"binary":  "piper/piper",
					"speaker": 25,
				},
			},
			Player: ProviderEntry{Name: "aplay"},
		},
	}
}

// defaultProviders fills provider entries that have no name from
// [Default]. Entries are replaced whole so that a partially configured
// provider never inherits another provider's options.
func defaultProviders(cfg *Config) {
	def := Default().Providers
	for _, p := range []struct{ dst, src *ProviderEntry }{
		{&cfg.Providers.WakeWord, &def.WakeWord},
		{&cfg.Providers.STT, &def.STT},
		{&cfg.Providers.TTS, &def.TTS},
		{&cfg.Providers.Player, &def.Player},
	} {
		if p.dst.Name == "" {
			*p.dst = *p.src
		}
	}
}
