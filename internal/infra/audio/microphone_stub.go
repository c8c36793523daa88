//go:build !portaudio

package audio

import (
	"context"
	"errors"
	"log/slog"
)

var errNoPortAudio = errors.New("microphone capture needs a build with -tags portaudio")

// MicrophoneSource stands in for the portaudio recorder and fails on use.
type MicrophoneSource struct {
	logger *slog.Logger
}

func NewMicrophoneSource(_, _ int, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{logger: logger}
}

func (m *MicrophoneSource) Name() string { return "microphone" }

func (m *MicrophoneSource) Start(_ context.Context) error {
	m.logger.Error("microphone source selected", "error", errNoPortAudio)
	return errNoPortAudio
}

func (m *MicrophoneSource) Stop() error { return nil }

func (m *MicrophoneSource) NextCommand(_ context.Context) ([]byte, error) {
	return nil, errNoPortAudio
}
