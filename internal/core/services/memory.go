package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driving"
	"github.com/Allerac/allerac-one-sub001/internal/metrics"
	"github.com/Allerac/allerac-one-sub001/internal/runtime"
)

// Memory defaults
const (
	DefaultSummaryMinMessages   = 4
	DefaultRecentSummaryLimit   = 5
	DefaultCorrectionImportance = 5
)

const memoryHeader = "What you remember from previous conversations with this user:"

// Ensure memoryService implements MemoryService
var _ driving.MemoryService = (*memoryService)(nil)

// MemoryConfig holds the collaborators of the memory service.
type MemoryConfig struct {
	Summaries     driven.SummaryStore
	Conversations driven.ConversationReader
	Queue         driven.TaskQueue
	Services      *runtime.Services
	Logger        *slog.Logger

	// MinMessages is the message count at which a conversation becomes
	// eligible for summarization (default: 4)
	MinMessages int
}

// memoryService implements the MemoryService interface
type memoryService struct {
	summaries     driven.SummaryStore
	conversations driven.ConversationReader
	queue         driven.TaskQueue
	services      *runtime.Services
	logger        *slog.Logger
	minMessages   int
}

// NewMemoryService creates a new MemoryService
func NewMemoryService(cfg MemoryConfig) driving.MemoryService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	minMessages := cfg.MinMessages
	if minMessages <= 0 {
		minMessages = DefaultSummaryMinMessages
	}
	return &memoryService{
		summaries:     cfg.Summaries,
		conversations: cfg.Conversations,
		queue:         cfg.Queue,
		services:      cfg.Services,
		logger:        logger,
		minMessages:   minMessages,
	}
}

// ShouldSummarize reports whether the conversation is unsummarized and long enough
func (s *memoryService) ShouldSummarize(ctx context.Context, conversationID string) (bool, error) {
	e, err := s.Eligibility(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return e.ShouldSummarize, nil
}

// Eligibility explains the summarization decision
func (s *memoryService) Eligibility(ctx context.Context, conversationID string) (*domain.SummaryEligibility, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}
	exists, err := s.summaries.Exists(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	count, err := s.conversations.CountMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &domain.SummaryEligibility{
		ConversationID:  conversationID,
		ShouldSummarize: !exists && count >= s.minMessages,
		SummaryExists:   exists,
		MessageCount:    count,
		MinMessages:     s.minMessages,
	}, nil
}

// SummaryExists reports whether the conversation already has a summary
func (s *memoryService) SummaryExists(ctx context.Context, conversationID string) (bool, error) {
	if conversationID == "" {
		return false, fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}
	return s.summaries.Exists(ctx, conversationID)
}

// GenerateSummary summarizes the user's conversation and stores the result.
// Losing the creation race to another writer appends instead.
func (s *memoryService) GenerateSummary(ctx context.Context, conversationID, userID string) (*domain.ConversationSummary, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}
	summarizer := s.services.Summarizer()
	if summarizer == nil {
		return nil, fmt.Errorf("%w: no summarization model configured", domain.ErrServiceUnavailable)
	}
	logger := s.logger.With("conversation_id", conversationID, "user_id", userID)

	messages, err := s.conversations.ListMessages(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		logger.Debug("conversation has no messages to summarize")
		return nil, nil
	}

	draft, err := summarizer.Summarize(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("summarize conversation: %w", err)
	}
	text := strings.TrimSpace(draft.Summary)
	if text == "" {
		return nil, domain.NewProviderError(summarizer.Model(), "summarize", 0, errors.New("empty summary"))
	}

	summary := domain.NewConversationSummary(userID, conversationID, text,
		draft.Topics, draft.Importance, draft.Emotion, len(messages))
	err = s.summaries.Create(ctx, summary)
	if err == nil {
		metrics.SummaryWritten(metrics.SummaryPathCreate)
		logger.Info("conversation summarized",
			"messages", len(messages),
			"importance", summary.Importance,
		)
		return summary, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, fmt.Errorf("create summary: %w", err)
	}

	// Another writer created the summary first; the same messages are not counted twice
	if _, err := s.ownedSummary(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	merged, err := s.summaries.Append(ctx, conversationID, userID, domain.SummaryAppend{
		Content:    text,
		Topics:     draft.Topics,
		Importance: domain.ClampImportance(draft.Importance),
		Emotion:    draft.Emotion,
	})
	if err != nil {
		return nil, fmt.Errorf("append summary: %w", err)
	}
	metrics.SummaryWritten(metrics.SummaryPathAppend)
	logger.Info("summary already existed, appended")
	return merged, nil
}

// ScheduleSummary enqueues background summarization for an eligible conversation
func (s *memoryService) ScheduleSummary(ctx context.Context, conversationID, userID string) (bool, error) {
	if userID == "" {
		return false, domain.ErrUnauthorized
	}
	should, err := s.ShouldSummarize(ctx, conversationID)
	if err != nil || !should {
		return false, err
	}
	if s.queue == nil {
		return false, fmt.Errorf("%w: no task queue configured", domain.ErrServiceUnavailable)
	}

	task := domain.NewSummarizeConversationTask(userID, conversationID)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return false, fmt.Errorf("enqueue summarization: %w", err)
	}
	s.logger.Debug("summarization scheduled", "conversation_id", conversationID, "task_id", task.ID)
	return true, nil
}

// RecordCorrection stores a user correction as the conversation's summary,
// or appends it to the existing one. Importance and emotion are last-write-wins.
func (s *memoryService) RecordCorrection(ctx context.Context, conversationID, userID, content string, importance int, emotion string) (*domain.ConversationSummary, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: correction content is required", domain.ErrInvalidInput)
	}
	if importance == 0 {
		importance = DefaultCorrectionImportance
	}
	importance = domain.ClampImportance(importance)
	logger := s.logger.With("conversation_id", conversationID, "user_id", userID)

	summary := domain.NewConversationSummary(userID, conversationID, content, nil, importance, emotion, 1)
	err := s.summaries.Create(ctx, summary)
	if err == nil {
		metrics.SummaryWritten(metrics.SummaryPathCorrection)
		logger.Info("correction recorded as new summary")
		return summary, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, fmt.Errorf("create summary: %w", err)
	}

	if _, err := s.ownedSummary(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	merged, err := s.summaries.Append(ctx, conversationID, userID, domain.SummaryAppend{
		Content:      content,
		Importance:   importance,
		Emotion:      emotion,
		MessageCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("append correction: %w", err)
	}
	metrics.SummaryWritten(metrics.SummaryPathCorrection)
	logger.Info("correction appended to summary")
	return merged, nil
}

// GetRecentSummaries returns the user's most recently updated summaries
func (s *memoryService) GetRecentSummaries(ctx context.Context, userID string, limit, minImportance int) ([]*domain.ConversationSummary, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if limit <= 0 {
		limit = DefaultRecentSummaryLimit
	}
	if minImportance <= 0 {
		minImportance = domain.MinImportance
	}
	return s.summaries.ListRecent(ctx, userID, limit, domain.ClampImportance(minImportance))
}

// FormatMemoryContext renders summaries as a labelled prompt block
func (s *memoryService) FormatMemoryContext(summaries []*domain.ConversationSummary) string {
	return FormatMemoryContext(summaries)
}

// FormatMemoryContext renders one block per summary, most recent first.
// No summaries yields "".
func FormatMemoryContext(summaries []*domain.ConversationSummary) string {
	if len(summaries) == 0 {
		return ""
	}

	blocks := make([]string, len(summaries))
	for i, m := range summaries {
		var b strings.Builder
		fmt.Fprintf(&b, "[Memory %d: %s] (Importance: %d/%d)", i+1,
			m.UpdatedAt.Format("2006-01-02"), m.Importance, domain.MaxImportance)
		if len(m.Topics) > 0 {
			fmt.Fprintf(&b, "\nTopics: %s", strings.Join(m.Topics, ", "))
		}
		if m.Emotion != "" {
			fmt.Fprintf(&b, "\nTone: %s", m.Emotion)
		}
		b.WriteString("\n")
		b.WriteString(m.Summary)
		blocks[i] = b.String()
	}
	return memoryHeader + "\n\n" + strings.Join(blocks, contextSeparator)
}

// ownedSummary loads the conversation's summary if userID owns it
func (s *memoryService) ownedSummary(ctx context.Context, conversationID, userID string) (*domain.ConversationSummary, error) {
	summary, err := s.summaries.GetByConversation(ctx, conversationID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, err
	}
	return domain.Authorize(summary, userID)
}

// DeleteSummary removes one of the user's summaries
func (s *memoryService) DeleteSummary(ctx context.Context, conversationID, userID string) error {
	if _, err := s.ownedSummary(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.summaries.Delete(ctx, conversationID, userID); err != nil {
		return err
	}
	s.logger.Info("summary deleted", "conversation_id", conversationID, "user_id", userID)
	return nil
}
