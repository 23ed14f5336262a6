// Package porcupine provides a wake-word detector backed by Picovoice
// Porcupine.
package porcupine

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MrWong99/zinnia/pkg/provider/wakeword"
	pv "github.com/Picovoice/porcupine/binding/go/v3"
)

const defaultSensitivity = 0.5

var _ wakeword.Detector = (*Detector)(nil)

// Config selects the keywords to listen for. Exactly one of Keywords and
// KeywordPaths must be set.
type Config struct {
	// AccessKey is the Picovoice console access key.
	AccessKey string

	// Keywords are built-in keyword names such as "porcupine" or "jarvis".
	Keywords []string

	// KeywordPaths are custom .ppn keyword files.
	KeywordPaths []string

	// ModelPath optionally overrides the acoustic model (.pv) file.
	ModelPath string

	// Sensitivity in [0, 1] applied to every keyword. Zero means 0.5.
	Sensitivity float32
}

// Detector wraps a Porcupine handle.
type Detector struct {
	engine *pv.Porcupine
	names  []string
}

// New initialises Porcupine with cfg.
func New(cfg Config) (*Detector, error) {
	if cfg.AccessKey == "" {
		return nil, errors.New("porcupine: access key must not be empty")
	}
	if len(cfg.Keywords) == 0 && len(cfg.KeywordPaths) == 0 {
		return nil, errors.New("porcupine: at least one keyword is required")
	}
	if len(cfg.Keywords) > 0 && len(cfg.KeywordPaths) > 0 {
		return nil, errors.New("porcupine: set either keywords or keyword paths, not both")
	}
	sens := cfg.Sensitivity
	if sens == 0 {
		sens = defaultSensitivity
	}
	if sens < 0 || sens > 1 {
		return nil, fmt.Errorf("porcupine: sensitivity %v out of range [0, 1]", sens)
	}

	engine := &pv.Porcupine{
		AccessKey: cfg.AccessKey,
		ModelPath: cfg.ModelPath,
	}
	var names []string
	if len(cfg.KeywordPaths) > 0 {
		engine.KeywordPaths = cfg.KeywordPaths
		for _, p := range cfg.KeywordPaths {
			names = append(names, keywordName(p))
		}
	} else {
		for _, k := range cfg.Keywords {
			kw := pv.BuiltInKeyword(strings.ToLower(k))
			if !kw.IsValid() {
				return nil, fmt.Errorf("porcupine: unknown built-in keyword %q", k)
			}
			engine.BuiltInKeywords = append(engine.BuiltInKeywords, kw)
			names = append(names, string(kw))
		}
	}
	engine.Sensitivities = make([]float32, len(names))
	for i := range engine.Sensitivities {
		engine.Sensitivities[i] = sens
	}

	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init: %w", err)
	}
	return &Detector{engine: engine, names: names}, nil
}

// Process runs one frame through Porcupine.
func (d *Detector) Process(frame []int16) (*wakeword.Detection, error) {
	idx, err := d.engine.Process(frame)
	if err != nil {
		return nil, fmt.Errorf("porcupine: process: %w", err)
	}
	if idx < 0 {
		return nil, nil
	}
	name := ""
	if idx < len(d.names) {
		name = d.names[idx]
	}
	return &wakeword.Detection{Keyword: name, Index: idx}, nil
}

// FrameLength returns Porcupine's required frame length.
func (d *Detector) FrameLength() int { return pv.FrameLength }

// SampleRate returns Porcupine's required sample rate.
func (d *Detector) SampleRate() int { return pv.SampleRate }

// Close releases the Porcupine handle.
func (d *Detector) Close() error {
	if err := d.engine.Delete(); err != nil {
		return fmt.Errorf("porcupine: delete: %w", err)
	}
	return nil
}

// keywordName derives a display name from a .ppn path such as
// "hey-zinnia_en_linux_v3_0_0.ppn" → "hey zinnia".
func keywordName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.IndexByte(base, '_'); i > 0 {
		base = base[:i]
	}
	return strings.ReplaceAll(base, "-", " ")
}
