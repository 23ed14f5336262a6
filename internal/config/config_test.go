package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/zinnia/internal/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: "127.0.0.1:9090"
  log_level: debug

assistant:
  name: Zinnia
  acknowledgement: "Yes?"
  listen_timeout: 5s
  tray: false

providers:
  wakeword:
    name: porcupine
    api_key: pv-test
    options:
      keywords: [jarvis, computer]
      sensitivity: 0.6
  stt:
    name: deepgram
    api_key: dg-test
    model: nova-3
    fallback:
      name: whisper-native
      model: models/ggml-base.en.bin
  tts:
    name: coqui
    base_url: http://localhost:5002
    options:
      speaker: p225
    fallback:
      name: piper
      model: voices/en_US-lessac-medium.onnx
  player:
    name: portaudio
  llm:
    name: ollama
    model: llama3

commands:
  weather:
    default_location: Cleveland
  ask:
    enabled: true
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1:9090" {
		t.Errorf("server.listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Assistant.ListenTimeout != 5*time.Second {
		t.Errorf("assistant.listen_timeout: got %v, want 5s", cfg.Assistant.ListenTimeout)
	}
	if cfg.Assistant.Tray {
		t.Error("assistant.tray: got true, want false")
	}
	if got := cfg.Assistant.RetryPrompt; got != config.Default().Assistant.RetryPrompt {
		t.Errorf("assistant.retry_prompt should keep its default, got %q", got)
	}
	if cfg.Providers.WakeWord.Name != "porcupine" {
		t.Errorf("providers.wakeword.name: got %q", cfg.Providers.WakeWord.Name)
	}
	if fb := cfg.Providers.STT.Fallback; fb == nil || fb.Name != "whisper-native" {
		t.Errorf("providers.stt.fallback: got %+v", fb)
	}
	if cfg.Providers.TTS.OptString("speaker") != "p225" {
		t.Errorf("providers.tts.options.speaker: got %v", cfg.Providers.TTS.Options["speaker"])
	}
	if cfg.Providers.Player.Name != "portaudio" {
		t.Errorf("providers.player.name: got %q", cfg.Providers.Player.Name)
	}
	if cfg.Commands.Weather.DefaultLocation != "Cleveland" {
		t.Errorf("commands.weather.default_location: got %q", cfg.Commands.Weather.DefaultLocation)
	}
	if !cfg.Commands.Ask.Enabled {
		t.Error("commands.ask.enabled: got false")
	}
}

func TestLoadFromReader_EmptyYieldsDefaults(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{"", "{}"} {
		cfg, err := config.LoadFromReader(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("LoadFromReader(%q): %v", doc, err)
		}
		def := config.Default()
		if cfg.Assistant != def.Assistant {
			t.Errorf("assistant = %+v, want %+v", cfg.Assistant, def.Assistant)
		}
		if cfg.Providers.TTS.Name != "piper" || cfg.Providers.Player.Name != "aplay" {
			t.Errorf("providers = %+v, want defaults", cfg.Providers)
		}
		if cfg.Providers.LLM.Name != "" {
			t.Errorf("llm should be unset by default, got %q", cfg.Providers.LLM.Name)
		}
	}
}

func TestLoadFromReader_PartialProviderDoesNotInheritDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("providers:\n  tts:\n    name: coqui\n    base_url: http://tts:5002\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	tts := cfg.Providers.TTS
	if tts.Model != "" || tts.Options != nil {
		t.Errorf("coqui entry inherited piper defaults: %+v", tts)
	}
	if cfg.Providers.STT.Name != "whisper-native" {
		t.Errorf("unset stt should default, got %q", cfg.Providers.STT.Name)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("assistant:\n  nmae: Zinnia\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "zinnia.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLM.Model != "llama3" {
		t.Errorf("providers.llm.model: got %q", cfg.Providers.LLM.Model)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); !errorsIsNotExist(err) {
		t.Errorf("Load(missing) = %v, want os.ErrNotExist", err)
	}
}

// ── Provider options ──────────────────────────────────────────────────────────

func TestProviderEntry_Options(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	ww := cfg.Providers.WakeWord

	kw, err := ww.OptStrings("keywords")
	if err != nil || strings.Join(kw, ",") != "jarvis,computer" {
		t.Errorf("OptStrings(keywords) = %v, %v", kw, err)
	}
	sens, ok, err := ww.OptFloat("sensitivity")
	if err != nil || !ok || sens != 0.6 {
		t.Errorf("OptFloat(sensitivity) = %v, %v, %v", sens, ok, err)
	}
	if _, ok, err := ww.OptInt("missing"); ok || err != nil {
		t.Errorf("OptInt(missing) = %v, %v; want absent", ok, err)
	}

	tests := []struct {
		name    string
		opts    map[string]any
		wantInt int
		wantErr bool
	}{
		{name: "int", opts: map[string]any{"n": 25}, wantInt: 25},
		{name: "whole float", opts: map[string]any{"n": 3.0}, wantInt: 3},
		{name: "fractional float", opts: map[string]any{"n": 2.5}, wantErr: true},
		{name: "string", opts: map[string]any{"n": "25"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, _, err := config.ProviderEntry{Name: "x", Options: tc.opts}.OptInt("n")
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && n != tc.wantInt {
				t.Errorf("n = %d, want %d", n, tc.wantInt)
			}
		})
	}

	single, err := config.ProviderEntry{Options: map[string]any{"k": "only"}}.OptStrings("k")
	if err != nil || len(single) != 1 || single[0] != "only" {
		t.Errorf("OptStrings(single) = %v, %v", single, err)
	}
	if _, err := (config.ProviderEntry{Options: map[string]any{"k": []any{"a", 1}}}).OptStrings("k"); err == nil {
		t.Error("expected error for mixed list")
	}
}
