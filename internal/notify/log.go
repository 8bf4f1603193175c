package notify

import (
	"context"
	"log/slog"
)

// LogNotifier emits each Event as a structured log line. It is the only
// notifier when no Slack token is configured, and runs alongside Slack
// otherwise.
type LogNotifier struct {
	Logger *slog.Logger
}

// NewLogNotifier builds a LogNotifier. logger may be nil to use slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, ev Event) {
	n.Logger.Warn("sector health critical",
		slog.String("sim_run_id", ev.SimRunID),
		slog.String("city", ev.City),
		slog.String("sector", ev.Sector),
		slog.Int("pct", ev.Pct),
	)
}
