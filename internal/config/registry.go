package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/zinnia/pkg/audio"
	"github.com/MrWong99/zinnia/pkg/provider/llm"
	"github.com/MrWong99/zinnia/pkg/provider/stt"
	"github.com/MrWong99/zinnia/pkg/provider/tts"
	"github.com/MrWong99/zinnia/pkg/provider/wakeword"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	wakeword map[string]func(ProviderEntry) (wakeword.Detector, error)
	stt      map[string]func(ProviderEntry) (stt.Provider, error)
	tts      map[string]func(ProviderEntry) (tts.Provider, error)
	player   map[string]func(ProviderEntry) (audio.Player, error)
	llm      map[string]func(ProviderEntry) (llm.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		wakeword: make(map[string]func(ProviderEntry) (wakeword.Detector, error)),
		stt:      make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts:      make(map[string]func(ProviderEntry) (tts.Provider, error)),
		player:   make(map[string]func(ProviderEntry) (audio.Player, error)),
		llm:      make(map[string]func(ProviderEntry) (llm.Provider, error)),
	}
}

// RegisterWakeWord registers a wake-word detector factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterWakeWord(name string, factory func(ProviderEntry) (wakeword.Detector, error)) {
	register(r, r.wakeword, name, factory)
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	register(r, r.stt, name, factory)
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	register(r, r.tts, name, factory)
}

// RegisterPlayer registers an audio player factory under name.
func (r *Registry) RegisterPlayer(name string, factory func(ProviderEntry) (audio.Player, error)) {
	register(r, r.player, name, factory)
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	register(r, r.llm, name, factory)
}

// CreateWakeWord instantiates a detector using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if there is none.
func (r *Registry) CreateWakeWord(entry ProviderEntry) (wakeword.Detector, error) {
	return create(r, r.wakeword, "wakeword", entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return create(r, r.stt, "stt", entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return create(r, r.tts, "tts", entry)
}

// CreatePlayer instantiates an audio player using the factory registered under entry.Name.
func (r *Registry) CreatePlayer(entry ProviderEntry) (audio.Player, error) {
	return create(r, r.player, "player", entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// Names returns the sorted registered names for kind ("wakeword", "stt",
// "tts", "player" or "llm").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case "wakeword":
		return slices.Sorted(maps.Keys(r.wakeword))
	case "stt":
		return slices.Sorted(maps.Keys(r.stt))
	case "tts":
		return slices.Sorted(maps.Keys(r.tts))
	case "player":
		return slices.Sorted(maps.Keys(r.player))
	case "llm":
		return slices.Sorted(maps.Keys(r.llm))
	}
	return nil
}

func register[F any](r *Registry, m map[string]F, name string, factory F) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m[name] = factory
}

func create[T any](r *Registry, m map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := m[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}
