package application

import (
	"context"
	"log/slog"
)

// Notifier shows a short user-visible notice.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ string) error {
	return nil
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, message string) error {
	n.logger.Info("notice", "message", message)
	return nil
}

// MultiNotifier fans a notice out to every sink. A failing sink is logged
// and does not stop delivery to the rest.
type MultiNotifier struct {
	sinks  []Notifier
	logger *slog.Logger
}

func NewMultiNotifier(logger *slog.Logger, sinks ...Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks, logger: logger}
}

func (m *MultiNotifier) Notify(ctx context.Context, message string) error {
	for _, s := range m.sinks {
		if err := s.Notify(ctx, message); err != nil {
			m.logger.Warn("notice delivery failed", "error", err)
		}
	}
	return nil
}
