package audio_test

import (
	"errors"
	"testing"
	"time"

	"wear-voice/internal/infra/audio"
)

func TestEncodeWAV_Levels(t *testing.T) {
	const rate = 16000

	samples := make([]int, rate)
	for i := rate / 2; i < rate; i++ {
		if i%2 == 0 {
			samples[i] = 16384
		} else {
			samples[i] = -16384
		}
	}

	data, err := audio.EncodeWAV(samples, rate)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("bad header: %q", data[:12])
	}

	levels, err := audio.Levels(data, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("windows: got %d, want 2", len(levels))
	}
	if levels[0] != -100 {
		t.Errorf("silent window: got %v dB", levels[0])
	}
	if levels[1] < -7 || levels[1] > -5 {
		t.Errorf("loud window: got %v dB, want about -6", levels[1])
	}
}

func TestLevels_RejectsNonWAV(t *testing.T) {
	_, err := audio.Levels([]byte("definitely not audio"), time.Second)
	if !errors.Is(err, audio.ErrNotWAV) {
		t.Errorf("got %v, want ErrNotWAV", err)
	}
}
