package pulse

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"wear-voice/internal/domain"
)

// SubscribeFunc opens the event stream of `pactl subscribe`.
type SubscribeFunc func(ctx context.Context) (io.ReadCloser, error)

// Watcher turns pactl sink events into DeviceEvents by diffing sink snapshots.
type Watcher struct {
	client    *Client
	subscribe SubscribeFunc
}

func NewWatcher(client *Client) *Watcher {
	w := &Watcher{client: client}
	w.subscribe = w.execSubscribe
	return w
}

// NewWatcherWithSubscribe is used by tests to feed a fake event stream.
func NewWatcherWithSubscribe(client *Client, subscribe SubscribeFunc) *Watcher {
	return &Watcher{client: client, subscribe: subscribe}
}

func (w *Watcher) execSubscribe(ctx context.Context) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, w.client.binary, "subscribe")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening pactl subscribe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting pactl subscribe: %w", err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return stdout, nil
}

func (w *Watcher) Watch(ctx context.Context) (<-chan domain.DeviceEvent, error) {
	initial, err := w.client.Outputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial sink snapshot: %w", err)
	}

	stream, err := w.subscribe(ctx)
	if err != nil {
		return nil, err
	}

	events := make(chan domain.DeviceEvent)

	go func() {
		<-ctx.Done()
		stream.Close()
	}()

	go func() {
		defer close(events)

		prev := initial
		err := scanEvents(stream, func() {
			next, err := w.client.Outputs(ctx)
			if err != nil {
				w.client.logger.Warn("refreshing sinks", "error", err)
				return
			}

			ev := Diff(prev, next)
			prev = next
			if len(ev.Added) == 0 && len(ev.Removed) == 0 {
				return
			}

			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		if err != nil && ctx.Err() == nil {
			w.client.logger.Error("reading pactl events", "error", err)
		}
	}()

	return events, nil
}

// Diff reports the sinks present in next but not prev, and the reverse.
// Sinks are matched by name since pactl reuses indexes.
func Diff(prev, next []domain.OutputDevice) domain.DeviceEvent {
	before := make(map[string]bool, len(prev))
	for _, d := range prev {
		before[d.Name] = true
	}
	after := make(map[string]bool, len(next))
	for _, d := range next {
		after[d.Name] = true
	}

	var ev domain.DeviceEvent
	for _, d := range next {
		if !before[d.Name] {
			ev.Added = append(ev.Added, d)
		}
	}
	for _, d := range prev {
		if !after[d.Name] {
			ev.Removed = append(ev.Removed, d)
		}
	}
	return ev
}
