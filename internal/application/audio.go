package application

import "context"

// AudioSource delivers one captured utterance per call to NextCommand.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	NextCommand(ctx context.Context) ([]byte, error)
	Name() string
}
