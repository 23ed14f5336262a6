// Package aplay plays PCM through the ALSA aplay utility.
package aplay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/MrWong99/zinnia/pkg/audio"
)

// waitDelay bounds how long Play waits for output pipes after aplay is killed.
const waitDelay = time.Second

var _ audio.Player = (*Player)(nil)

// Option is a functional option for [New].
type Option func(*Player)

// WithBinary sets the aplay executable. Defaults to "aplay" on PATH.
func WithBinary(path string) Option {
	return func(p *Player) {
		if path != "" {
			p.binary = path
		}
	}
}

// WithDevice selects an ALSA PCM device such as "plughw:1,0".
func WithDevice(device string) Option {
	return func(p *Player) { p.device = device }
}

// Player runs one aplay process per Play call. It is safe for concurrent
// use, although overlapping calls will mix at the ALSA level.
type Player struct {
	binary string
	device string
}

// New returns a Player.
func New(opts ...Option) *Player {
	p := &Player{binary: "aplay"}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Play implements audio.Player. Cancelling ctx kills aplay.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("aplay: invalid sample rate %d", sampleRate)
	}
	if len(pcm) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, p.binary, p.args(sampleRate)...)
	cmd.Stdin = bytes.NewReader(pcm)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("aplay: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("aplay: exited with code %d: %s", exitErr.ExitCode(), bytes.TrimSpace(stderr.Bytes()))
		}
		return fmt.Errorf("aplay: run %s: %w", p.binary, err)
	}
	return nil
}

func (p *Player) args(sampleRate int) []string {
	args := []string{"-q", "-r", strconv.Itoa(sampleRate), "-f", "S16_LE", "-t", "raw", "-c", "1"}
	if p.device != "" {
		args = append(args, "-D", p.device)
	}
	return args
}
