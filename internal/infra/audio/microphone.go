//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// MicrophoneSource records one utterance per NextCommand call from the
// default input device, ending on a second of silence or after maxSeconds.
type MicrophoneSource struct {
	sampleRate int
	maxSeconds int
	logger     *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	frame  []int16
}

func NewMicrophoneSource(sampleRate, maxSeconds int, logger *slog.Logger) *MicrophoneSource {
	if maxSeconds <= 0 {
		maxSeconds = 10
	}
	return &MicrophoneSource{
		sampleRate: sampleRate,
		maxSeconds: maxSeconds,
		logger:     logger,
		frame:      make([]int16, framesPerBuffer),
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), framesPerBuffer, m.frame)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting stream: %w", err)
	}

	m.stream = stream
	m.logger.Info("microphone started", "sampleRate", m.sampleRate)
	return nil
}

func (m *MicrophoneSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}
	m.stream.Stop()
	m.stream.Close()
	m.stream = nil
	return portaudio.Terminate()
}

func (m *MicrophoneSource) NextCommand(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil, fmt.Errorf("microphone not started")
	}

	samples := make([]int, 0, m.sampleRate*2)
	silenceThreshold := int16(500)
	silence := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := m.stream.Read(); err != nil {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}

		isSilent := true
		for _, sample := range m.frame {
			samples = append(samples, int(sample))
			if sample > silenceThreshold || sample < -silenceThreshold {
				isSilent = false
			}
		}

		if isSilent {
			silence += len(m.frame)
		} else {
			silence = 0
		}

		if silence > m.sampleRate && len(samples) > m.sampleRate {
			break
		}
		if len(samples) > m.sampleRate*m.maxSeconds {
			break
		}
	}

	return EncodeWAV(samples, m.sampleRate)
}
