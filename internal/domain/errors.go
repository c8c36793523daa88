package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied    = errors.New("microphone permission denied")
	ErrEngineInit          = errors.New("speech engine initialization failed")
	ErrUnsupportedLanguage = errors.New("speech engine language not supported")
	ErrEngineNotReady      = errors.New("speech engine not ready")
	ErrOutputUnavailable   = errors.New("audio output not available")
	ErrUnrecognizedCommand = errors.New("command not recognized")
	ErrRecognizerBusy      = errors.New("recognizer busy")
	ErrReleased            = errors.New("audio helper released")
)

// Recognition error codes, numbered as the platform recognizer numbers them.
const (
	RecognitionNetworkTimeout = 1
	RecognitionNetwork        = 2
	RecognitionAudio          = 3
	RecognitionServer         = 4
	RecognitionClient         = 5
	RecognitionSpeechTimeout  = 6
	RecognitionNoMatch        = 7
	RecognitionBusy           = 8
)

type RecognitionError struct {
	Code int
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recognition error %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("recognition error %d", e.Code)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}
