// Package narrative optionally phrases a tick's recommendation line through
// an LLM call, behind a nil-safe interface the caller wires in only when
// configured. No RAG index is built; this is a single phrasing call, not a
// retrieval system.
package narrative

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Narrator turns a tick's bare status-change summary into an operator-facing
// sentence. Implementations must be best-effort: a failure should fall back
// to the caller's original line, never abort the tick.
type Narrator interface {
	Phrase(ctx context.Context, baseLine string, sectorsBelowThreshold []string) (string, error)
}

// AnthropicNarrator calls the Anthropic Messages API for phrasing.
type AnthropicNarrator struct {
	client *anthropic.Client
	model  anthropic.Model
	logger *slog.Logger
}

// NewAnthropicNarrator builds a Narrator backed by apiKey. logger defaults
// to slog.Default() when nil.
func NewAnthropicNarrator(apiKey string, logger *slog.Logger) *AnthropicNarrator {
	if logger == nil {
		logger = slog.Default()
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicNarrator{client: &client, model: anthropic.ModelClaude3_5HaikuLatest, logger: logger}
}

// Phrase asks the model for a one-sentence operator summary of baseLine and
// the sectors currently below the critical-health threshold.
func (n *AnthropicNarrator) Phrase(ctx context.Context, baseLine string, sectorsBelowThreshold []string) (string, error) {
	prompt := fmt.Sprintf(
		"One short sentence for a crisis-response dashboard. Status: %s. Sectors below critical threshold: %v. No preamble.",
		baseLine, sectorsBelowThreshold,
	)
	msg, err := n.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     n.model,
		MaxTokens: 80,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("phrase tick narrative: %w", err)
	}
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			return text, nil
		}
	}
	return baseLine, nil
}

// PhraseOrFallback calls n.Phrase and logs+falls back to baseLine on error,
// so callers on the tick-precomputation hot path never block on, or fail
// from, a flaky LLM call.
func PhraseOrFallback(ctx context.Context, n Narrator, logger *slog.Logger, baseLine string, sectorsBelowThreshold []string) string {
	if n == nil {
		return baseLine
	}
	phrased, err := n.Phrase(ctx, baseLine, sectorsBelowThreshold)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("narrative phrasing failed, using fallback line", slog.String("error", err.Error()))
		return baseLine
	}
	return phrased
}
