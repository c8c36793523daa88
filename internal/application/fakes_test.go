package application_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"wear-voice/internal/application"
	"wear-voice/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOutputs struct {
	mu        sync.Mutex
	hasOutput bool
	devices   []domain.OutputDevice
	err       error
}

func (f *fakeOutputs) HasAudioOutput() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasOutput
}

func (f *fakeOutputs) Outputs(_ context.Context) ([]domain.OutputDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OutputDevice(nil), f.devices...), f.err
}

func (f *fakeOutputs) set(devices ...domain.OutputDevice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
}

type fakeRouter struct {
	mu    sync.Mutex
	modes []domain.RoutingMode
	set   chan domain.RoutingMode
}

func (f *fakeRouter) SetMode(_ context.Context, mode domain.RoutingMode) error {
	f.mu.Lock()
	f.modes = append(f.modes, mode)
	f.mu.Unlock()
	if f.set != nil {
		f.set <- mode
	}
	return nil
}

func (f *fakeRouter) Modes() []domain.RoutingMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RoutingMode(nil), f.modes...)
}

type fakeWatcher struct {
	events chan domain.DeviceEvent
	err    error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan domain.DeviceEvent)}
}

func (f *fakeWatcher) Watch(ctx context.Context) (<-chan domain.DeviceEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan domain.DeviceEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-f.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// fakeSynth blocks each utterance until it is cancelled or released via finish.
type fakeSynth struct {
	initErr error
	// linger delays the return of a cancelled utterance.
	linger time.Duration

	mu        sync.Mutex
	started   []string
	cancelled []string
	finished  []string
	closed    int
	active    int
	maxActive int

	startCh chan string
	finish  chan struct{}
}

func newFakeSynth() *fakeSynth {
	return &fakeSynth{
		startCh: make(chan string, 16),
		finish:  make(chan struct{}),
	}
}

func (f *fakeSynth) Init(_ context.Context, _ string) error { return f.initErr }

func (f *fakeSynth) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.started = append(f.started, text)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	f.startCh <- text

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		f.mu.Lock()
		f.cancelled = append(f.cancelled, text)
		f.mu.Unlock()
		time.Sleep(f.linger)
		return ctx.Err()
	case <-f.finish:
		f.mu.Lock()
		f.finished = append(f.finished, text)
		f.mu.Unlock()
		return nil
	}
}

func (f *fakeSynth) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSynth) snapshot() (started, cancelled []string, maxActive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...), append([]string(nil), f.cancelled...), f.maxActive
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	ch       chan string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan string, 16)}
}

func (r *recordingNotifier) Notify(_ context.Context, message string) error {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
	select {
	case r.ch <- message:
	default:
	}
	return nil
}

func (r *recordingNotifier) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *recordingNotifier) waitFor(want string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case got := <-r.ch:
			if got == want {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

type fakePermissions struct {
	granted bool
	// immediate answers Request with granted before it returns.
	immediate bool
	requests  int
	pending   func(bool)
}

func (f *fakePermissions) Granted(_ domain.Permission) bool { return f.granted }

func (f *fakePermissions) Request(_ context.Context, _ domain.Permission, onResult func(bool)) error {
	f.requests++
	if f.immediate {
		onResult(f.granted)
		return nil
	}
	f.pending = onResult
	return nil
}

func (f *fakePermissions) answer(granted bool) {
	f.granted = granted
	if f.pending != nil {
		cb := f.pending
		f.pending = nil
		cb(granted)
	}
}

type fakeRecognizer struct {
	mu        sync.Mutex
	sessions  int
	requests  []application.RecognitionRequest
	listeners []application.RecognitionListener
	err       error
}

func (f *fakeRecognizer) StartListening(_ context.Context, req application.RecognitionRequest, listener application.RecognitionListener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sessions++
	f.requests = append(f.requests, req)
	f.listeners = append(f.listeners, listener)
	return nil
}

func (f *fakeRecognizer) Close() error { return nil }

func (f *fakeRecognizer) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

func (f *fakeRecognizer) last() application.RecognitionListener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listeners[len(f.listeners)-1]
}

// fakeOutput records controller calls without running an engine.
type fakeOutput struct {
	available map[domain.OutputKind]bool
	spoken    []string
	stops     int
	speakErr  error
}

func (f *fakeOutput) IsOutputAvailable(_ context.Context, kind domain.OutputKind) bool {
	return f.available[kind]
}

func (f *fakeOutput) Speak(text string) error {
	if f.speakErr != nil {
		return f.speakErr
	}
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeOutput) StopSpeaking() { f.stops++ }
