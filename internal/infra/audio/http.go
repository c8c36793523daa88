package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"wear-voice/internal/domain"
)

// HTTPSource queues utterances posted by a companion device: raw WAV on
// POST /audio, or an already-transcribed command on POST /text.
type HTTPSource struct {
	audioChan chan []byte
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
	closeOnce sync.Once
	authToken string
}

func NewHTTPSource(authToken string, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		audioChan: make(chan []byte, 10),
		logger:    logger,
		authToken: authToken,
	}
}

func (h *HTTPSource) Name() string {
	return "http"
}

// Register mounts the capture endpoints on mux.
func (h *HTTPSource) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /audio", h.authorize(h.handleAudio))
	mux.HandleFunc("POST /text", h.authorize(h.handleText))
}

func (h *HTTPSource) Start(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = true
	return nil
}

func (h *HTTPSource) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return nil
	}

	h.closeOnce.Do(func() {
		close(h.audioChan)
	})
	h.running = false
	return nil
}

func (h *HTTPSource) QueueSize() int {
	return len(h.audioChan)
}

func (h *HTTPSource) NextCommand(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case audio, ok := <-h.audioChan:
		if !ok {
			return nil, fmt.Errorf("audio channel closed")
		}
		return audio, nil
	}
}

func (h *HTTPSource) InjectAudio(data []byte) {
	select {
	case h.audioChan <- data:
	default:
	}
}

func (h *HTTPSource) authorize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.authToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}

			if token != h.authToken {
				h.logger.Warn("unauthorized capture request", "remote_addr", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (h *HTTPSource) handleAudio(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 10*1024*1024))
	if err != nil {
		h.logger.Error("reading audio body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(data) == 0 {
		http.Error(w, "empty audio", http.StatusBadRequest)
		return
	}

	select {
	case h.audioChan <- data:
		h.logger.Info("received audio via HTTP", "bytes", len(data))
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, `{"status":"received","bytes":%d}`, len(data))
	default:
		http.Error(w, "queue full, try again", http.StatusServiceUnavailable)
	}
}

func (h *HTTPSource) handleText(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	text := string(data)
	if text == "" {
		http.Error(w, "empty text", http.StatusBadRequest)
		return
	}

	marker := []byte(domain.TextCommandPrefix + text)

	select {
	case h.audioChan <- marker:
		h.logger.Info("received text command via HTTP", "text", text)
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"status":"received"}`)
	default:
		http.Error(w, "queue full, try again", http.StatusServiceUnavailable)
	}
}

// IsTextCommand reports whether data is a text capture. A bare marker is an
// empty transcript.
func IsTextCommand(data []byte) (string, bool) {
	if !bytes.HasPrefix(data, []byte(domain.TextCommandPrefix)) {
		return "", false
	}
	return string(data[len(domain.TextCommandPrefix):]), true
}
