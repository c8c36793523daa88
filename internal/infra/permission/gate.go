package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"wear-voice/internal/application"
	"wear-voice/internal/domain"
)

type Policy string

const (
	PolicyGranted Policy = "granted"
	PolicyDenied  Policy = "denied"
	PolicyPrompt  Policy = "prompt"
)

const noticePrompt = "Permitir uso do microfone?"

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyGranted, PolicyDenied, PolicyPrompt:
		return p, nil
	case "":
		return PolicyPrompt, nil
	default:
		return "", fmt.Errorf("unknown permission policy: %q", s)
	}
}

// Gate answers permission requests from a configured policy. In prompt mode
// the answer comes later through Resolve and is remembered.
type Gate struct {
	policy   Policy
	notifier application.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	answers map[domain.Permission]bool
	pending map[domain.Permission][]func(bool)
}

func NewGate(policy Policy, notifier application.Notifier, logger *slog.Logger) *Gate {
	return &Gate{
		policy:   policy,
		notifier: notifier,
		logger:   logger,
		answers:  make(map[domain.Permission]bool),
		pending:  make(map[domain.Permission][]func(bool)),
	}
}

func (g *Gate) Granted(p domain.Permission) bool {
	switch g.policy {
	case PolicyGranted:
		return true
	case PolicyDenied:
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.answers[p]
}

func (g *Gate) Request(ctx context.Context, p domain.Permission, onResult func(granted bool)) error {
	switch g.policy {
	case PolicyGranted:
		onResult(true)
		return nil
	case PolicyDenied:
		onResult(false)
		return nil
	}

	g.mu.Lock()
	if granted, ok := g.answers[p]; ok && granted {
		g.mu.Unlock()
		onResult(true)
		return nil
	}
	first := len(g.pending[p]) == 0
	g.pending[p] = append(g.pending[p], onResult)
	g.mu.Unlock()

	if first {
		g.logger.Info("permission requested", "permission", p)
		if err := g.notifier.Notify(ctx, noticePrompt); err != nil {
			g.logger.Warn("sending permission prompt", "error", err)
		}
	}
	return nil
}

// Resolve records the user's answer for p and fires the parked callbacks.
// It reports how many requests were waiting.
func (g *Gate) Resolve(p domain.Permission, granted bool) int {
	g.mu.Lock()
	g.answers[p] = granted
	callbacks := g.pending[p]
	delete(g.pending, p)
	g.mu.Unlock()

	g.logger.Info("permission resolved", "permission", p, "granted", granted, "waiting", len(callbacks))

	for _, cb := range callbacks {
		cb(granted)
	}
	return len(callbacks)
}
