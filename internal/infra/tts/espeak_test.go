package tts_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"wear-voice/internal/domain"
	"wear-voice/internal/infra/tts"
)

const voicesPT = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  pt               --/M      Portuguese_(Portugal) roa/pt
 5  pt-br            --/M      Portuguese_(Brazil) roa/pt-BR
`

type fakeExec struct {
	mu     sync.Mutex
	voices string
	calls  [][]string
}

func (f *fakeExec) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(args) == 1 && strings.HasPrefix(args[0], "--voices") {
		return []byte(f.voices), nil
	}
	return []byte("RIFF-rendered"), nil
}

func found(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

type recordingPlayer struct {
	played []string
}

func (p *recordingPlayer) Play(_ context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	p.played = append(p.played, string(data))
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVoiceFor(t *testing.T) {
	for in, want := range map[string]string{"pt-BR": "pt-br", "pt_BR": "pt-br", "en": "en"} {
		if got := tts.VoiceFor(in); got != want {
			t.Errorf("VoiceFor(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestEspeak_SpeakBeforeInit(t *testing.T) {
	e := tts.NewEspeak("", 0, &recordingPlayer{}, discardLogger())

	if err := e.Speak(context.Background(), "olá"); !errors.Is(err, domain.ErrEngineNotReady) {
		t.Errorf("got %v, want ErrEngineNotReady", err)
	}
}

func TestEspeak_InitAndSpeak(t *testing.T) {
	fake := &fakeExec{voices: voicesPT}
	player := &recordingPlayer{}
	e := tts.NewEspeak("", 160, player, discardLogger()).WithRunner(fake.run, found)

	if err := e.Init(context.Background(), "pt-BR"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := e.Speak(context.Background(), "Pronto para ouvir"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	got := strings.Join(fake.calls[len(fake.calls)-1], " ")
	want := "/usr/bin/espeak-ng --stdout -v pt-br -s 160 -- Pronto para ouvir"
	if got != want {
		t.Errorf("command: got %q, want %q", got, want)
	}
	if len(player.played) != 1 || player.played[0] != "RIFF-rendered" {
		t.Errorf("played: got %v", player.played)
	}
}

func TestEspeak_UnsupportedLanguageFallsBackToDefaultVoice(t *testing.T) {
	fake := &fakeExec{voices: "Pty Language Age/Gender VoiceName File Other Languages\n 5 pt --/M Portuguese roa/pt\n"}
	e := tts.NewEspeak("", 0, &recordingPlayer{}, discardLogger()).WithRunner(fake.run, found)

	err := e.Init(context.Background(), "pt-BR")
	if !errors.Is(err, domain.ErrUnsupportedLanguage) {
		t.Fatalf("Init: got %v, want ErrUnsupportedLanguage", err)
	}

	if err := e.Speak(context.Background(), "teste"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	for _, arg := range fake.calls[len(fake.calls)-1] {
		if arg == "-v" {
			t.Error("default voice should not pass -v")
		}
	}
}

func TestEspeak_MissingBinary(t *testing.T) {
	e := tts.NewEspeak("", 0, &recordingPlayer{}, discardLogger()).WithRunner(
		(&fakeExec{}).run,
		func(string) (string, error) { return "", errors.New("not found") },
	)

	err := e.Init(context.Background(), "pt-BR")
	if err == nil || errors.Is(err, domain.ErrUnsupportedLanguage) {
		t.Errorf("got %v, want engine failure", err)
	}
}

func TestEspeak_SpeakAfterClose(t *testing.T) {
	fake := &fakeExec{voices: voicesPT}
	e := tts.NewEspeak("", 0, &recordingPlayer{}, discardLogger()).WithRunner(fake.run, found)

	if err := e.Init(context.Background(), "pt-BR"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	e.Close()

	if err := e.Speak(context.Background(), "x"); !errors.Is(err, domain.ErrReleased) {
		t.Errorf("got %v, want ErrReleased", err)
	}
}
