package speech

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"wear-voice/internal/application"
	"wear-voice/internal/domain"
	"wear-voice/internal/infra/audio"
	"wear-voice/internal/infra/openai"
)

const (
	DefaultTimeout = 10 * time.Second
	levelWindow    = 100 * time.Millisecond
)

// CuePlayer plays the short sound that tells the user to start talking.
type CuePlayer interface {
	PlayFile(ctx context.Context, path string) error
}

// SessionRecognizer runs one recognition session at a time: it captures an
// utterance from an AudioSource and transcribes it with a SpeechToText backend.
type SessionRecognizer struct {
	source  application.AudioSource
	stt     application.SpeechToText
	timeout time.Duration
	logger  *slog.Logger

	cue     CuePlayer
	cuePath string

	mu     sync.Mutex
	busy   bool
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSessionRecognizer(source application.AudioSource, stt application.SpeechToText, timeout time.Duration, logger *slog.Logger) *SessionRecognizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SessionRecognizer{
		source:  source,
		stt:     stt,
		timeout: timeout,
		logger:  logger,
	}
}

// WithCue plays path through player before each session.
func (r *SessionRecognizer) WithCue(player CuePlayer, path string) *SessionRecognizer {
	r.cue = player
	r.cuePath = path
	return r
}

func (r *SessionRecognizer) StartListening(ctx context.Context, req application.RecognitionRequest, listener application.RecognitionListener) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return &domain.RecognitionError{Code: domain.RecognitionClient, Err: domain.ErrReleased}
	}
	if r.busy {
		return &domain.RecognitionError{Code: domain.RecognitionBusy, Err: domain.ErrRecognizerBusy}
	}

	r.busy = true
	sessionCtx, cancel := context.WithTimeout(ctx, r.timeout)
	r.cancel = cancel

	r.logger.Debug("recognition session started",
		"language", req.Language,
		"model", req.Model,
		"source", r.source.Name(),
	)

	r.wg.Add(1)
	go r.run(sessionCtx, cancel, listener)
	return nil
}

func (r *SessionRecognizer) run(ctx context.Context, cancel context.CancelFunc, l application.RecognitionListener) {
	defer r.wg.Done()
	defer cancel()

	text, code := r.session(ctx, l)

	r.mu.Lock()
	r.busy = false
	r.cancel = nil
	r.mu.Unlock()

	switch {
	case code == 0 && text != "":
		l.OnResults([]string{text})
	case code != 0:
		l.OnError(code)
	}
}

// session returns the transcript, or an error code. A zero code with an
// empty transcript means the session was cancelled and gets no callback.
func (r *SessionRecognizer) session(ctx context.Context, l application.RecognitionListener) (string, int) {
	if r.cue != nil && r.cuePath != "" {
		if err := r.cue.PlayFile(ctx, r.cuePath); err != nil && ctx.Err() == nil {
			r.logger.Warn("playing ready cue", "path", r.cuePath, "error", err)
		}
	}

	l.OnReadyForSpeech()

	data, err := r.source.NextCommand(ctx)
	if err != nil {
		if code, cancelled := contextCode(ctx, domain.RecognitionSpeechTimeout); code != 0 || cancelled {
			return "", code
		}
		r.logger.Error("capturing utterance", "source", r.source.Name(), "error", err)
		return "", domain.RecognitionAudio
	}

	l.OnBeginningOfSpeech()

	if text, ok := audio.IsTextCommand(data); ok {
		l.OnEndOfSpeech()
		return matchOrCode(text)
	}

	l.OnBufferReceived(data)
	if levels, err := audio.Levels(data, levelWindow); err == nil {
		for _, db := range levels {
			l.OnRmsChanged(db)
		}
	} else {
		r.logger.Debug("skipping level metering", "error", err)
	}

	l.OnEndOfSpeech()

	text, err := r.stt.Transcribe(ctx, data)
	if err != nil {
		if code, cancelled := contextCode(ctx, domain.RecognitionNetworkTimeout); code != 0 || cancelled {
			return "", code
		}
		code := transcriptionCode(err)
		r.logger.Error("transcribing utterance", "code", code, "error", err)
		return "", code
	}

	r.logger.Info("utterance transcribed", "text", text)
	return matchOrCode(text)
}

func matchOrCode(text string) (string, int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.RecognitionNoMatch
	}
	return text, 0
}

// contextCode maps an expired session to onTimeout and reports whether
// the session was cancelled by its owner.
func contextCode(ctx context.Context, onTimeout int) (int, bool) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return onTimeout, false
	case ctx.Err() != nil:
		return 0, true
	}
	return 0, false
}

func transcriptionCode(err error) int {
	var statusErr *openai.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return domain.RecognitionBusy
		case statusErr.StatusCode >= 500:
			return domain.RecognitionServer
		default:
			return domain.RecognitionClient
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.RecognitionNetworkTimeout
		}
		return domain.RecognitionNetwork
	}

	return domain.RecognitionClient
}

func (r *SessionRecognizer) Close() error {
	r.mu.Lock()
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}
