package application

import (
	"context"
	"fmt"
)

type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// NoopSTT is a no-op speech-to-text client for text-only sources.
// It returns an error if called with actual audio data.
type NoopSTT struct{}

func (n *NoopSTT) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return "", fmt.Errorf("speech-to-text not configured: set stt.api_key to enable audio transcription")
}

// Synthesizer is a text-to-speech engine.
type Synthesizer interface {
	// Init prepares the engine for the given BCP 47 language tag.
	// It returns domain.ErrUnsupportedLanguage when the engine works but lacks the language.
	Init(ctx context.Context, language string) error
	// Speak blocks until the utterance finishes or ctx is cancelled.
	Speak(ctx context.Context, text string) error
	Close() error
}
