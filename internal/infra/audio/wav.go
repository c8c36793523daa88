package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

var ErrNotWAV = errors.New("not a valid WAV stream")

// silenceDB is reported for windows with no signal.
const silenceDB = -100

// EncodeWAV wraps mono 16-bit samples in a RIFF/WAVE container.
func EncodeWAV(samples []int, sampleRate int) ([]byte, error) {
	f, err := os.CreateTemp("", "utterance-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating temp wav: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	enc := gowav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wav: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding wav: %w", err)
	}
	return io.ReadAll(f)
}

// Levels returns the RMS level in dBFS of each window of a WAV utterance.
func Levels(data []byte, window time.Duration) ([]float32, error) {
	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}
	if len(buf.Data) == 0 {
		return nil, nil
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	size := int(float64(dec.SampleRate)*window.Seconds()) * channels
	if size <= 0 {
		size = len(buf.Data)
	}
	full := math.Pow(2, float64(dec.BitDepth-1))

	var levels []float32
	for start := 0; start < len(buf.Data); start += size {
		end := min(start+size, len(buf.Data))
		levels = append(levels, rmsDB(buf.Data[start:end], full))
	}
	return levels, nil
}

func rmsDB(samples []int, full float64) float32 {
	var sum float64
	for _, s := range samples {
		v := float64(s) / full
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return silenceDB
	}
	return float32(max(20*math.Log10(rms), silenceDB))
}
