package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// Player plays decoded audio on the default output sink, one stream at a time.
type Player struct {
	rate   beep.SampleRate
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
	mu       sync.Mutex
}

func NewPlayer(sampleRate int, logger *slog.Logger) *Player {
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	return &Player{rate: beep.SampleRate(sampleRate), logger: logger}
}

func (p *Player) init() error {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(p.rate, p.rate.N(100*time.Millisecond))
		if p.initErr == nil {
			p.logger.Debug("speaker initialized", "sample_rate", int(p.rate))
		}
	})
	return p.initErr
}

// Play decodes a WAV stream and blocks until it ends or ctx is cancelled.
func (p *Player) Play(ctx context.Context, r io.Reader) error {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return fmt.Errorf("decoding wav: %w", err)
	}
	defer streamer.Close()

	return p.play(ctx, streamer, format)
}

// PlayFile plays a .wav or .mp3 file, such as the listening cue.
func (p *Player) PlayFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		f.Close()
		return fmt.Errorf("unsupported audio file: %s", path)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	defer streamer.Close()

	return p.play(ctx, streamer, format)
}

func (p *Player) play(ctx context.Context, s beep.Streamer, format beep.Format) error {
	if err := p.init(); err != nil {
		return fmt.Errorf("initializing speaker: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if format.SampleRate != p.rate {
		s = beep.Resample(4, format.SampleRate, p.rate, s)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
