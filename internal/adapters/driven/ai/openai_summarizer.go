package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Ensure OpenAISummarizer implements Summarizer
var _ driven.Summarizer = (*OpenAISummarizer)(nil)

const summarySystemPrompt = `You condense chat conversations into durable memories.
Respond with a single JSON object with exactly these fields:
  "summary": 2-4 sentences covering the facts, decisions and preferences worth remembering,
  "key_topics": an array of 1-5 short topic labels,
  "importance_score": an integer from 1 (trivial) to 10 (critical to remember),
  "emotion": one word describing the user's overall tone.`

// maxTranscriptChars bounds the transcript sent to the model; older messages are dropped first.
const maxTranscriptChars = 24000

// OpenAISummarizer implements Summarizer with chat completions in JSON mode
type OpenAISummarizer struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAISummarizer creates a summarizer against an OpenAI-compatible API
func NewOpenAISummarizer(apiKey, model, baseURL string, logger *slog.Logger) (*OpenAISummarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAISummarizer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}, nil
}

// Model returns the model name being used
func (s *OpenAISummarizer) Model() string {
	return s.model
}

// Summarize asks the model for a structured summary of the conversation
func (s *OpenAISummarizer) Summarize(ctx context.Context, messages []*domain.Message) (*domain.SummaryDraft, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no messages to summarize", domain.ErrInvalidInput)
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript(messages)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, s.providerError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewProviderError(providerOpenAI, "chat.completions", 0, errors.New("no choices returned"))
	}

	s.logger.Debug("summary generated",
		"model", s.model,
		"messages", len(messages),
		"finish_reason", resp.Choices[0].FinishReason,
		"total_tokens", resp.Usage.TotalTokens)

	return ParseSummaryDraft(resp.Choices[0].Message.Content)
}

func (s *OpenAISummarizer) providerError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return domain.NewProviderError(providerOpenAI, "chat.completions", status, err)
}

// ParseSummaryDraft decodes the model's JSON answer, tolerating a fenced code block,
// and clamps importance into range.
func ParseSummaryDraft(content string) (*domain.SummaryDraft, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var draft domain.SummaryDraft
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &draft); err != nil {
		return nil, domain.NewProviderError(providerOpenAI, "chat.completions", 0,
			fmt.Errorf("malformed summary JSON: %w", err))
	}
	draft.Summary = strings.TrimSpace(draft.Summary)
	if draft.Summary == "" {
		return nil, domain.NewProviderError(providerOpenAI, "chat.completions", 0, errors.New("empty summary"))
	}
	draft.Importance = domain.ClampImportance(draft.Importance)
	draft.Emotion = strings.ToLower(strings.TrimSpace(draft.Emotion))

	topics := draft.Topics[:0]
	for _, t := range draft.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	draft.Topics = topics
	return &draft, nil
}

// transcript renders messages as "role: content" lines, keeping the newest
// messages when the conversation exceeds maxTranscriptChars.
func transcript(messages []*domain.Message) string {
	lines := make([]string, 0, len(messages))
	total := 0
	for i := len(messages) - 1; i >= 0; i-- {
		line := fmt.Sprintf("%s: %s", messages[i].Role, strings.TrimSpace(messages[i].Content))
		if total+len(line) > maxTranscriptChars && len(lines) > 0 {
			break
		}
		total += len(line) + 1
		lines = append(lines, line)
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}
