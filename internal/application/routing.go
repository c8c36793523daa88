package application

import (
	"context"

	"wear-voice/internal/domain"
)

// OutputDevices is the live view of attached audio outputs.
type OutputDevices interface {
	// HasAudioOutput reports whether the host can play audio at all.
	HasAudioOutput() bool
	Outputs(ctx context.Context) ([]domain.OutputDevice, error)
}

// Router mutates the process-wide routing mode.
type Router interface {
	SetMode(ctx context.Context, mode domain.RoutingMode) error
}

// DeviceWatcher streams hot-plug events until ctx is cancelled.
// The returned channel is closed when the watch ends.
type DeviceWatcher interface {
	Watch(ctx context.Context) (<-chan domain.DeviceEvent, error)
}
