package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"wear-voice/internal/domain"
)

// Runner runs a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Playback plays a rendered WAV stream, blocking until it ends.
type Playback interface {
	Play(ctx context.Context, r io.Reader) error
}

// Espeak renders speech with espeak-ng (or espeak) and plays it through a Playback.
type Espeak struct {
	binaries []string
	rate     int
	player   Playback
	run      Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger

	mu     sync.Mutex
	binary string
	voice  string
	closed bool
}

func NewEspeak(binary string, rate int, player Playback, logger *slog.Logger) *Espeak {
	binaries := []string{"espeak-ng", "espeak"}
	if binary != "" {
		binaries = []string{binary}
	}
	return &Espeak{
		binaries: binaries,
		rate:     rate,
		player:   player,
		run:      execRun,
		lookPath: exec.LookPath,
		logger:   logger,
	}
}

// WithRunner replaces process execution, for tests.
func (e *Espeak) WithRunner(run Runner, lookPath func(string) (string, error)) *Espeak {
	e.run = run
	e.lookPath = lookPath
	return e
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// VoiceFor maps a BCP 47 tag such as pt-BR to an espeak voice name.
func VoiceFor(language string) string {
	return strings.ToLower(strings.ReplaceAll(language, "_", "-"))
}

func (e *Espeak) Init(ctx context.Context, language string) error {
	var binary string
	for _, b := range e.binaries {
		if path, err := e.lookPath(b); err == nil {
			binary = path
			break
		}
	}
	if binary == "" {
		return fmt.Errorf("no speech engine found (tried %s)", strings.Join(e.binaries, ", "))
	}

	voice := VoiceFor(language)
	family, _, _ := strings.Cut(voice, "-")

	out, err := e.run(ctx, binary, "--voices="+family)
	if err != nil {
		return fmt.Errorf("listing voices: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.binary = binary
	e.closed = false

	if !hasVoice(string(out), voice) {
		e.voice = ""
		e.logger.Warn("voice not installed, using engine default", "language", language, "voice", voice)
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, language)
	}

	e.voice = voice
	e.logger.Debug("speech engine ready", "binary", binary, "voice", voice)
	return nil
}

// hasVoice scans `espeak --voices` output, whose second column is the language.
func hasVoice(listing, voice string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] == "Pty" {
			continue
		}
		if strings.EqualFold(fields[1], voice) {
			return true
		}
	}
	return false
}

func (e *Espeak) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	binary, voice, closed := e.binary, e.voice, e.closed
	e.mu.Unlock()

	if closed {
		return domain.ErrReleased
	}
	if binary == "" {
		return domain.ErrEngineNotReady
	}

	args := []string{"--stdout"}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	if e.rate > 0 {
		args = append(args, "-s", strconv.Itoa(e.rate))
	}
	args = append(args, "--", text)

	wav, err := e.run(ctx, binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rendering speech: %w", err)
	}

	if err := e.player.Play(ctx, bytes.NewReader(wav)); err != nil {
		return fmt.Errorf("playing speech: %w", err)
	}
	return nil
}

func (e *Espeak) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
