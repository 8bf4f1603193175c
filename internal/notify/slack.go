package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// SlackNotifier posts a message to a configured channel whenever a sector's
// health first crosses the critical threshold for a run.
type SlackNotifier struct {
	client  *slack.Client
	channel string
	logger  *slog.Logger
}

// NewSlackNotifier builds a SlackNotifier posting to channel using token.
// logger may be nil to use slog.Default().
func NewSlackNotifier(token, channel string, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{client: slack.New(token), channel: channel, logger: logger}
}

func (n *SlackNotifier) Notify(ctx context.Context, ev Event) {
	text := fmt.Sprintf(":rotating_light: %s/%s sector health at %d%% (run %s)", ev.City, ev.Sector, ev.Pct, ev.SimRunID)
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		n.logger.Error("slack notification failed",
			slog.String("sim_run_id", ev.SimRunID),
			slog.String("error", err.Error()),
		)
	}
}
