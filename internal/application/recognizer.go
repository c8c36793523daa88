package application

import "context"

type LanguageModel string

const ModelFreeForm LanguageModel = "free_form"

type RecognitionRequest struct {
	Language string
	Model    LanguageModel
}

// RecognitionListener receives the events of one recognition session.
// Only OnResults and OnError end the session.
type RecognitionListener interface {
	OnReadyForSpeech()
	OnBeginningOfSpeech()
	OnRmsChanged(rmsDB float32)
	OnBufferReceived(buffer []byte)
	OnEndOfSpeech()
	OnError(code int)
	OnResults(matches []string)
	OnPartialResults(partial []string)
	OnEvent(eventType int)
}

// Recognizer runs recognition sessions. A session ends when the listener
// receives OnResults or OnError, or when ctx is cancelled.
type Recognizer interface {
	StartListening(ctx context.Context, req RecognitionRequest, listener RecognitionListener) error
	Close() error
}
