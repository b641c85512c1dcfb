package driven

import (
	"context"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

// Summarizer condenses a conversation into a structured summary using an LLM
type Summarizer interface {
	// Summarize returns the summary text, key topics, importance (1-10) and emotion
	// for the given messages in chronological order.
	Summarize(ctx context.Context, messages []*domain.Message) (*domain.SummaryDraft, error)

	// Model returns the model name being used
	Model() string
}
