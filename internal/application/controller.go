package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"wear-voice/internal/domain"
)

const (
	noticeReady               = "Pronto para ouvir"
	noticeOutputUnavailable   = "Dispositivo de áudio não disponível."
	noticeNotRecognized       = "Comando não reconhecido"
	noticePermissionDenied    = "Permissão para uso do microfone negada"
	noticeBluetoothConnected  = "Fone de ouvido Bluetooth conectado!"
	noticeAlreadyListening    = "Já estou ouvindo"
	noticeEngineNotReady      = "Mecanismo de voz indisponível."
	noticeRecognitionErrorFmt = "Erro de reconhecimento: %d"
)

// VoiceOutput is the slice of AudioHelper the controller drives.
type VoiceOutput interface {
	IsOutputAvailable(ctx context.Context, kind domain.OutputKind) bool
	Speak(text string) error
	StopSpeaking()
}

// Content holds the fixed sentences the controller can speak.
type Content struct {
	News    []string
	Help    string
	Message domain.Message
}

type Controller struct {
	output      VoiceOutput
	recognizer  Recognizer
	permissions PermissionGate
	parser      IntentParser
	notifier    Notifier
	content     Content
	language    string
	logger      *slog.Logger

	// pick returns an index in [0, n).
	pick func(n int) int

	mu            sync.Mutex
	state         domain.RecognitionState
	sessionID     uint64
	cancelSession context.CancelFunc
	closed        bool
}

func NewController(
	output VoiceOutput,
	recognizer Recognizer,
	permissions PermissionGate,
	parser IntentParser,
	notifier Notifier,
	content Content,
	language string,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		output:      output,
		recognizer:  recognizer,
		permissions: permissions,
		parser:      parser,
		notifier:    notifier,
		content:     content,
		language:    language,
		logger:      logger,
		pick:        rand.IntN,
		state:       domain.StateIdle,
	}
}

// WithPicker replaces the random news selector. Tests use it to pin the choice.
func (c *Controller) WithPicker(pick func(n int) int) *Controller {
	c.pick = pick
	return c
}

func (c *Controller) State() domain.RecognitionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartVoiceCommand is the voice-command button. Without microphone
// permission it asks first and defers the session to OnPermissionResult.
func (c *Controller) StartVoiceCommand(ctx context.Context) error {
	if c.State() == domain.StateListening {
		c.notify(ctx, noticeAlreadyListening)
		return domain.ErrRecognizerBusy
	}

	if c.permissions.Granted(domain.PermissionMicrophone) {
		return c.startListening(ctx)
	}

	c.logger.Info("requesting microphone permission")
	answered := make(chan error, 1)
	err := c.permissions.Request(ctx, domain.PermissionMicrophone, func(granted bool) {
		select {
		case answered <- c.OnPermissionResult(context.WithoutCancel(ctx), granted):
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("requesting permission: %w", err)
	}

	// An answer given inside Request is reported to the caller.
	select {
	case err := <-answered:
		return err
	default:
		return nil
	}
}

func (c *Controller) OnPermissionResult(ctx context.Context, granted bool) error {
	if !granted {
		c.logger.Warn("voice command aborted", "error", domain.ErrPermissionDenied)
		c.notify(ctx, noticePermissionDenied)
		return domain.ErrPermissionDenied
	}
	if err := c.startListening(ctx); err != nil {
		c.logger.Error("starting voice recognition", "error", err)
		return err
	}
	return nil
}

func (c *Controller) startListening(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("controller closed")
	}
	if c.state == domain.StateListening {
		c.mu.Unlock()
		return domain.ErrRecognizerBusy
	}
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.sessionID++
	id := c.sessionID
	c.state = domain.StateListening
	c.cancelSession = cancel
	c.mu.Unlock()

	c.logger.Info("starting voice recognition", "language", c.language)

	req := RecognitionRequest{Language: c.language, Model: ModelFreeForm}
	if err := c.recognizer.StartListening(sessionCtx, req, &sessionListener{c: c, id: id}); err != nil {
		c.finishSession(id)
		var recErr *domain.RecognitionError
		if errors.As(err, &recErr) {
			c.notify(ctx, fmt.Sprintf(noticeRecognitionErrorFmt, recErr.Code))
		}
		return fmt.Errorf("starting recognizer: %w", err)
	}
	return nil
}

// finishSession moves session id back to Idle. It reports false when id is
// no longer the current session.
func (c *Controller) finishSession(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.sessionID || c.state != domain.StateListening {
		return false
	}
	c.cancelSession()
	c.cancelSession = nil
	c.state = domain.StateIdle
	return true
}

func (c *Controller) onError(id uint64, code int) {
	if !c.finishSession(id) {
		c.logger.Debug("dropping error from stale session", "code", code)
		return
	}
	c.logger.Error("recognition error", "code", code)
	c.notify(context.Background(), fmt.Sprintf(noticeRecognitionErrorFmt, code))
}

func (c *Controller) onResults(id uint64, matches []string) {
	if !c.finishSession(id) {
		c.logger.Debug("dropping results from stale session")
		return
	}
	if len(matches) == 0 {
		c.logger.Warn("recognizer returned no matches")
		return
	}

	c.logger.Info("command recognized", "text", matches[0])
	if _, err := c.HandleVoiceCommand(context.Background(), matches[0]); err != nil {
		c.logger.Warn("handling voice command", "text", matches[0], "error", err)
	}
}

// sessionListener binds recognizer callbacks to one session.
type sessionListener struct {
	c  *Controller
	id uint64
}

func (l *sessionListener) OnReadyForSpeech() {
	l.c.logger.Debug("ready for speech")
	l.c.notify(context.Background(), noticeReady)
}

func (l *sessionListener) OnBeginningOfSpeech() {
	l.c.logger.Debug("beginning of speech")
}

func (l *sessionListener) OnRmsChanged(rmsDB float32) {
	l.c.logger.Debug("rms changed", "rms_db", rmsDB)
}

func (l *sessionListener) OnBufferReceived(buffer []byte) {
	l.c.logger.Debug("buffer received", "bytes", len(buffer))
}

func (l *sessionListener) OnEndOfSpeech() {
	l.c.logger.Debug("end of speech")
}

func (l *sessionListener) OnPartialResults(partial []string) {
	l.c.logger.Debug("partial results", "count", len(partial))
}

func (l *sessionListener) OnEvent(eventType int) {
	l.c.logger.Debug("recognizer event", "type", eventType)
}

func (l *sessionListener) OnError(code int) { l.c.onError(l.id, code) }

func (l *sessionListener) OnResults(matches []string) { l.c.onResults(l.id, matches) }

// HandleVoiceCommand dispatches one transcript and returns what it matched.
func (c *Controller) HandleVoiceCommand(ctx context.Context, transcript string) (*domain.Command, error) {
	cmd, err := c.parser.Parse(ctx, transcript)
	if err != nil {
		return nil, fmt.Errorf("parsing command: %w", err)
	}

	switch cmd.Action {
	case domain.ActionNews:
		return cmd, c.speakIfAvailable(ctx, c.randomNews())
	case domain.ActionStop:
		c.output.StopSpeaking()
		return cmd, nil
	default:
		c.notify(ctx, noticeNotRecognized)
		return cmd, domain.ErrUnrecognizedCommand
	}
}

func (c *Controller) randomNews() string {
	if len(c.content.News) == 0 {
		return ""
	}
	return c.content.News[c.pick(len(c.content.News))]
}

// ReadMessage is the read-message button.
func (c *Controller) ReadMessage(ctx context.Context) error {
	return c.speakIfAvailable(ctx, c.content.Message.Sentence())
}

// Help is the help button.
func (c *Controller) Help(ctx context.Context) error {
	return c.speakIfAvailable(ctx, c.content.Help)
}

func (c *Controller) speakIfAvailable(ctx context.Context, text string) error {
	if !c.output.IsOutputAvailable(ctx, domain.OutputBuiltinSpeaker) {
		c.notify(ctx, noticeOutputUnavailable)
		return domain.ErrOutputUnavailable
	}

	if err := c.output.Speak(text); err != nil {
		if errors.Is(err, domain.ErrEngineNotReady) {
			c.notify(ctx, noticeEngineNotReady)
		}
		return fmt.Errorf("speaking: %w", err)
	}
	return nil
}

// OnOutputAdded is registered with AudioHelper.OnDeviceChange.
func (c *Controller) OnOutputAdded(kind domain.OutputKind) {
	if kind == domain.OutputBluetoothA2DP {
		c.notify(context.Background(), noticeBluetoothConnected)
	}
}

// Close cancels any running session. The controller accepts no new sessions afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancelSession != nil {
		c.cancelSession()
		c.cancelSession = nil
	}
	c.state = domain.StateIdle
}

func (c *Controller) notify(ctx context.Context, message string) {
	if err := c.notifier.Notify(ctx, message); err != nil {
		c.logger.Error("notifying", "message", message, "error", err)
	}
}
