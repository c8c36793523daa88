package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"wear-voice/internal/domain"
)

const noticeBluetoothDisconnected = "Fone de ouvido Bluetooth desconectado."

type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// AudioHelper wraps output enumeration, the routing mode and the speech engine.
// At most one utterance is active; Speak flushes whatever is playing.
type AudioHelper struct {
	outputs  OutputDevices
	router   Router
	watcher  DeviceWatcher
	synth    Synthesizer
	notifier Notifier
	language string
	logger   *slog.Logger

	mu       sync.Mutex
	ready    bool
	released bool
	current  *utterance
	stopped  chan struct{}
	watches  map[int]context.CancelFunc
	nextID   int
	wg       sync.WaitGroup
}

func NewAudioHelper(
	outputs OutputDevices,
	router Router,
	watcher DeviceWatcher,
	synth Synthesizer,
	notifier Notifier,
	language string,
	logger *slog.Logger,
) *AudioHelper {
	return &AudioHelper{
		outputs:  outputs,
		router:   router,
		watcher:  watcher,
		synth:    synth,
		notifier: notifier,
		language: language,
		logger:   logger,
		watches:  make(map[int]context.CancelFunc),
	}
}

// Init brings up the speech engine. An unsupported language leaves the
// engine usable with its default voice.
func (h *AudioHelper) Init(ctx context.Context) error {
	err := h.synth.Init(ctx, h.language)

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case err == nil:
		h.ready = true
		h.logger.Debug("speech engine initialized", "language", h.language)
		return nil
	case errors.Is(err, domain.ErrUnsupportedLanguage):
		h.ready = true
		h.logger.Error("language not supported", "language", h.language, "error", err)
		return err
	default:
		h.logger.Error("failed to initialize speech engine", "error", err)
		return fmt.Errorf("%w: %v", domain.ErrEngineInit, err)
	}
}

func (h *AudioHelper) IsOutputAvailable(ctx context.Context, kind domain.OutputKind) bool {
	if !h.outputs.HasAudioOutput() {
		return false
	}

	devices, err := h.outputs.Outputs(ctx)
	if err != nil {
		h.logger.Warn("listing audio outputs", "error", err)
		return false
	}

	return domain.HasKind(devices, kind)
}

// Speak starts text in the background, cancelling the utterance in progress.
// The new utterance begins only after the old one has stopped.
func (h *AudioHelper) Speak(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return domain.ErrReleased
	}
	if !h.ready {
		h.logger.Warn("speech engine not ready, dropping utterance", "text", text)
		return domain.ErrEngineNotReady
	}
	if text == "" {
		return nil
	}

	h.logger.Debug("speaking", "text", text)

	prev := h.stopped
	h.stopped = nil
	if h.current != nil {
		h.current.cancel()
		prev = h.current.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	u := &utterance{cancel: cancel, done: make(chan struct{})}
	h.current = u

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer close(u.done)
		defer cancel()

		if prev != nil {
			<-prev
		}
		if ctx.Err() != nil {
			return
		}

		if err := h.synth.Speak(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Error("speaking", "error", err)
		}

		h.mu.Lock()
		if h.current == u {
			h.current = nil
		}
		h.mu.Unlock()
	}()

	return nil
}

func (h *AudioHelper) StopSpeaking() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

func (h *AudioHelper) stopLocked() {
	if h.current == nil {
		return
	}
	h.current.cancel()
	// the next utterance must wait for this one to return
	h.stopped = h.current.done
	h.current = nil
}

// OnDeviceChange watches output hot-plug events until the returned func is
// called, ctx is cancelled, or the helper is released. onAdded receives the
// kind of every Bluetooth output that appears. A Bluetooth output that
// disappears sends routing back to normal when the built-in speaker is there.
func (h *AudioHelper) OnDeviceChange(ctx context.Context, onAdded func(domain.OutputKind)) (func(), error) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil, domain.ErrReleased
	}
	watchCtx, cancel := context.WithCancel(ctx)
	id := h.nextID
	h.nextID++
	h.watches[id] = cancel
	h.mu.Unlock()

	events, err := h.watcher.Watch(watchCtx)
	if err != nil {
		h.dropWatch(id)
		return nil, fmt.Errorf("watching audio devices: %w", err)
	}

	done := make(chan struct{})
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer close(done)
		for ev := range events {
			h.handleDeviceEvent(watchCtx, ev, onAdded)
		}
	}()

	unregister := func() {
		h.dropWatch(id)
		<-done
	}
	return unregister, nil
}

func (h *AudioHelper) dropWatch(id int) {
	h.mu.Lock()
	cancel, ok := h.watches[id]
	delete(h.watches, id)
	h.mu.Unlock()
	if ok {
		cancel()
	}
}

func (h *AudioHelper) handleDeviceEvent(ctx context.Context, ev domain.DeviceEvent, onAdded func(domain.OutputKind)) {
	for _, d := range ev.Added {
		if d.Kind == domain.OutputBluetoothA2DP && onAdded != nil {
			h.logger.Info("bluetooth output connected", "device", d.Name)
			onAdded(domain.OutputBluetoothA2DP)
		}
	}

	for _, d := range ev.Removed {
		if d.Kind != domain.OutputBluetoothA2DP {
			continue
		}

		h.logger.Info("bluetooth output disconnected", "device", d.Name)
		if err := h.notifier.Notify(ctx, noticeBluetoothDisconnected); err != nil {
			h.logger.Error("notifying disconnect", "error", err)
		}

		if h.IsOutputAvailable(ctx, domain.OutputBuiltinSpeaker) {
			h.logger.Info("switching to built-in speaker")
			if err := h.router.SetMode(ctx, domain.ModeNormal); err != nil {
				h.logger.Error("setting routing mode", "mode", domain.ModeNormal, "error", err)
			}
		}
	}
}

// Release stops speech, ends every device watch and shuts the engine down.
// It must be called once; later calls return domain.ErrReleased.
func (h *AudioHelper) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return domain.ErrReleased
	}
	h.released = true
	h.stopLocked()
	for id, cancel := range h.watches {
		cancel()
		delete(h.watches, id)
	}
	h.mu.Unlock()

	h.wg.Wait()

	if err := h.synth.Close(); err != nil {
		return fmt.Errorf("closing speech engine: %w", err)
	}
	return nil
}
