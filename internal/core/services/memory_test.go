package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven/mocks"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driving"
	"github.com/Allerac/allerac-one-sub001/internal/runtime"
)

type memoryFixture struct {
	summaries     *mocks.MockSummaryStore
	conversations *mocks.MockConversationReader
	queue         *mocks.MockTaskQueue
	summarizer    *mocks.MockSummarizer
	services      *runtime.Services
	svc           driving.MemoryService
}

func newMemoryFixture() *memoryFixture {
	f := &memoryFixture{
		summaries:     mocks.NewMockSummaryStore(),
		conversations: mocks.NewMockConversationReader(),
		queue:         mocks.NewMockTaskQueue(),
		summarizer:    mocks.NewMockSummarizer(),
		services:      runtime.NewServices(8),
	}
	f.services.SetSummarizer(f.summarizer)
	f.svc = NewMemoryService(MemoryConfig{
		Summaries:     f.summaries,
		Conversations: f.conversations,
		Queue:         f.queue,
		Services:      f.services,
	})
	return f
}

func TestMemory_ShouldSummarizeThreshold(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	f.conversations.AddMessages("short", "user-1", "hi", "hello", "how are you")
	f.conversations.AddMessages("enough", "user-1", "hi", "hello", "how are you", "fine")

	should, err := f.svc.ShouldSummarize(ctx, "short")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if should {
		t.Error("expected false for 3 messages")
	}

	should, err = f.svc.ShouldSummarize(ctx, "enough")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !should {
		t.Error("expected true for exactly 4 messages and no summary")
	}

	should, _ = f.svc.ShouldSummarize(ctx, "empty")
	if should {
		t.Error("expected false for a conversation without messages")
	}
}

func TestMemory_ShouldSummarizeFalseOnceSummarized(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()
	f.conversations.AddMessages("conv-1", "user-1", "a", "b", "c", "d", "e")
	f.summaries.Put(domain.NewConversationSummary("user-1", "conv-1", "earlier", nil, 5, "", 4))

	e, err := f.svc.Eligibility(ctx, "conv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ShouldSummarize {
		t.Error("expected false when a summary exists")
	}
	if !e.SummaryExists || e.MessageCount != 5 || e.MinMessages != DefaultSummaryMinMessages {
		t.Errorf("unexpected eligibility: %+v", e)
	}

	exists, err := f.svc.SummaryExists(ctx, "conv-1")
	if err != nil || !exists {
		t.Errorf("expected summary to exist, got %v %v", exists, err)
	}
}

func TestMemory_CustomMinMessages(t *testing.T) {
	f := newMemoryFixture()
	svc := NewMemoryService(MemoryConfig{
		Summaries:     f.summaries,
		Conversations: f.conversations,
		Services:      f.services,
		MinMessages:   2,
	})
	f.conversations.AddMessages("conv-1", "user-1", "a", "b")

	should, err := svc.ShouldSummarize(context.Background(), "conv-1")
	if err != nil || !should {
		t.Errorf("expected true with MinMessages 2, got %v %v", should, err)
	}
}

func TestMemory_GenerateSummary(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()
	f.conversations.AddMessages("conv-1", "user-1", "I prefer tea", "Noted", "Also green tea", "Got it")
	f.summarizer.SummarizeFn = func(messages []*domain.Message) (*domain.SummaryDraft, error) {
		return &domain.SummaryDraft{
			Summary:    "  User likes green tea.  ",
			Topics:     []string{"preferences", "tea"},
			Importance: 14,
			Emotion:    "positive",
		}, nil
	}

	summary, err := f.svc.GenerateSummary(ctx, "conv-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Summary != "User likes green tea." {
		t.Errorf("unexpected summary %q", summary.Summary)
	}
	if summary.Importance != domain.MaxImportance {
		t.Errorf("expected importance clamped to %d, got %d", domain.MaxImportance, summary.Importance)
	}
	if summary.MessageCount != 4 || summary.UserID != "user-1" || len(summary.Topics) != 2 {
		t.Errorf("unexpected summary fields: %+v", summary)
	}
	if f.summaries.Count("conv-1") != 1 {
		t.Error("expected exactly one stored summary")
	}

	should, _ := f.svc.ShouldSummarize(ctx, "conv-1")
	if should {
		t.Error("expected conversation to no longer be eligible")
	}
}

func TestMemory_GenerateSummaryNoMessages(t *testing.T) {
	f := newMemoryFixture()

	summary, err := f.svc.GenerateSummary(context.Background(), "conv-1", "user-1")
	if err != nil || summary != nil {
		t.Errorf("expected nil, nil for an empty conversation, got %+v, %v", summary, err)
	}
	if f.summarizer.Calls() != 0 {
		t.Error("expected the model not to be called")
	}
}

func TestMemory_GenerateSummaryOtherUsersConversation(t *testing.T) {
	f := newMemoryFixture()
	f.conversations.AddMessages("conv-1", "user-2", "a", "b", "c", "d")

	summary, err := f.svc.GenerateSummary(context.Background(), "conv-1", "user-1")
	if err != nil || summary != nil {
		t.Errorf("expected nothing to summarize for a foreign conversation, got %+v, %v", summary, err)
	}
	if f.summaries.Count("conv-1") != 0 {
		t.Error("expected no summary to be written")
	}
}

func TestMemory_GenerateSummaryProviderError(t *testing.T) {
	f := newMemoryFixture()
	f.conversations.AddMessages("conv-1", "user-1", "a", "b", "c", "d")
	f.summarizer.SummarizeFn = func([]*domain.Message) (*domain.SummaryDraft, error) {
		return nil, domain.NewProviderError("openai", "chat", 429, errors.New("rate limited"))
	}

	_, err := f.svc.GenerateSummary(context.Background(), "conv-1", "user-1")
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || !pe.RateLimited() {
		t.Errorf("expected a rate-limited ProviderError, got %v", err)
	}
	if f.summaries.Count("conv-1") != 0 {
		t.Error("expected no summary to be written")
	}
}

func TestMemory_GenerateSummaryEmptyDraft(t *testing.T) {
	f := newMemoryFixture()
	f.conversations.AddMessages("conv-1", "user-1", "a", "b", "c", "d")
	f.summarizer.SummarizeFn = func([]*domain.Message) (*domain.SummaryDraft, error) {
		return &domain.SummaryDraft{Summary: "   "}, nil
	}

	if _, err := f.svc.GenerateSummary(context.Background(), "conv-1", "user-1"); !errors.Is(err, domain.ErrProvider) {
		t.Errorf("expected provider error for an empty summary, got %v", err)
	}
}

func TestMemory_GenerateSummaryWithoutSummarizer(t *testing.T) {
	f := newMemoryFixture()
	f.services.SetSummarizer(nil)

	if _, err := f.svc.GenerateSummary(context.Background(), "conv-1", "user-1"); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestMemory_GenerateSummaryLosesCreationRace(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()
	f.conversations.AddMessages("conv-1", "user-1", "a", "b", "c", "d")

	// A correction lands between the eligibility check and the insert
	f.summaries.BeforeCreate = func(s *domain.ConversationSummary) {
		f.summaries.BeforeCreate = nil
		f.summaries.Put(domain.NewConversationSummary("user-1", "conv-1", "User prefers metric units.", nil, 8, "firm", 1))
	}

	summary, err := f.svc.GenerateSummary(ctx, "conv-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.summaries.Count("conv-1") != 1 {
		t.Fatalf("expected exactly one summary, got %d", f.summaries.Count("conv-1"))
	}
	want := "User prefers metric units.\n\nDiscussed: a; b; c; d"
	if summary.Summary != want {
		t.Errorf("expected merged summary %q, got %q", want, summary.Summary)
	}
	if summary.Importance != 5 || summary.Emotion != "neutral" {
		t.Errorf("expected latest importance and emotion, got %d %q", summary.Importance, summary.Emotion)
	}
	if summary.MessageCount != 1 {
		t.Errorf("expected message count unchanged by the race, got %d", summary.MessageCount)
	}
	creates, appends := f.summaries.Calls()
	if creates != 1 || appends != 1 {
		t.Errorf("expected 1 create and 1 append, got %d and %d", creates, appends)
	}
}

func TestMemory_TwoCorrections(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	first, err := f.svc.RecordCorrection(ctx, "conv-1", "user-1", "Call me Sam.", 6, "calm")
	if err != nil {
		t.Fatalf("first correction: %v", err)
	}
	if first.MessageCount != 1 || first.Summary != "Call me Sam." {
		t.Errorf("unexpected seeded summary: %+v", first)
	}

	if _, err := f.svc.RecordCorrection(ctx, "conv-1", "user-1", "I live in Lisbon.", 9, "annoyed"); err != nil {
		t.Fatalf("second correction: %v", err)
	}

	stored, err := f.summaries.GetByConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.summaries.Count("conv-1") != 1 {
		t.Fatal("expected exactly one summary")
	}
	if stored.Summary != "Call me Sam.\n\nI live in Lisbon." {
		t.Errorf("unexpected body %q", stored.Summary)
	}
	if stored.Importance != 9 || stored.Emotion != "annoyed" {
		t.Errorf("expected second call's importance and emotion, got %d %q", stored.Importance, stored.Emotion)
	}
}

func TestMemory_CorrectionThenSummaryKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()
	f.conversations.AddMessages("conv-1", "user-1", "a", "b", "c", "d")

	if _, err := f.svc.RecordCorrection(ctx, "conv-1", "user-1", "Use British spelling.", 7, ""); err != nil {
		t.Fatalf("correction: %v", err)
	}
	if _, err := f.svc.GenerateSummary(ctx, "conv-1", "user-1"); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if _, err := f.svc.RecordCorrection(ctx, "conv-1", "user-1", "Actually American spelling.", 8, ""); err != nil {
		t.Fatalf("correction: %v", err)
	}

	if f.summaries.Count("conv-1") != 1 {
		t.Fatalf("expected exactly one summary, got %d", f.summaries.Count("conv-1"))
	}
	stored, _ := f.summaries.GetByConversation(ctx, "conv-1")
	if !strings.HasPrefix(stored.Summary, "Use British spelling.\n\n") ||
		!strings.HasSuffix(stored.Summary, "\n\nActually American spelling.") {
		t.Errorf("unexpected body %q", stored.Summary)
	}
}

func TestMemory_CorrectionValidation(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	if _, err := f.svc.RecordCorrection(ctx, "conv-1", "user-1", "  ", 5, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank content, got %v", err)
	}
	if _, err := f.svc.RecordCorrection(ctx, "", "user-1", "x", 5, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing conversation, got %v", err)
	}
	if _, err := f.svc.RecordCorrection(ctx, "conv-1", "", "x", 5, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized without user, got %v", err)
	}

	s, err := f.svc.RecordCorrection(ctx, "conv-2", "user-1", "x", 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Importance != DefaultCorrectionImportance {
		t.Errorf("expected default importance, got %d", s.Importance)
	}
}

func TestMemory_CorrectionOnOtherUsersSummary(t *testing.T) {
	f := newMemoryFixture()
	f.summaries.Put(domain.NewConversationSummary("user-2", "conv-1", "theirs", nil, 5, "", 4))

	_, err := f.svc.RecordCorrection(context.Background(), "conv-1", "user-1", "mine", 5, "")
	if !errors.Is(err, domain.ErrNotFoundOrForbidden) {
		t.Fatalf("expected ErrNotFoundOrForbidden, got %v", err)
	}
	if _, appends := f.summaries.Calls(); appends != 0 {
		t.Errorf("expected ownership to be checked before appending, got %d appends", appends)
	}
	stored, _ := f.summaries.GetByConversation(context.Background(), "conv-1")
	if stored.Summary != "theirs" {
		t.Errorf("expected foreign summary untouched, got %q", stored.Summary)
	}
}

func TestMemory_ScheduleSummary(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()
	f.conversations.AddMessages("short", "user-1", "a")
	f.conversations.AddMessages("long", "user-1", "a", "b", "c", "d")

	scheduled, err := f.svc.ScheduleSummary(ctx, "short", "user-1")
	if err != nil || scheduled {
		t.Errorf("expected nothing scheduled for a short conversation, got %v %v", scheduled, err)
	}

	scheduled, err = f.svc.ScheduleSummary(ctx, "long", "user-1")
	if err != nil || !scheduled {
		t.Fatalf("expected task to be scheduled, got %v %v", scheduled, err)
	}
	pending := f.queue.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending task, got %d", len(pending))
	}
	if pending[0].Type != domain.TaskTypeSummarizeConversation || pending[0].ConversationID() != "long" || pending[0].UserID != "user-1" {
		t.Errorf("unexpected task: %+v", pending[0])
	}
}

func TestMemory_GetRecentSummaries(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	base := time.Now().Add(-time.Hour)
	for i, importance := range []int{2, 7, 5, 9, 1, 6, 8} {
		s := domain.NewConversationSummary("user-1", domain.GenerateID(), "memory", nil, importance, "", 4)
		s.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		f.summaries.Put(s)
	}
	f.summaries.Put(domain.NewConversationSummary("user-2", "foreign", "not mine", nil, 10, "", 4))

	all, err := f.svc.GetRecentSummaries(ctx, "user-1", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != DefaultRecentSummaryLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultRecentSummaryLimit, len(all))
	}
	if all[0].Importance != 8 {
		t.Errorf("expected most recent first, got importance %d", all[0].Importance)
	}

	important, err := f.svc.GetRecentSummaries(ctx, "user-1", 10, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(important) != 3 {
		t.Errorf("expected 3 summaries with importance >= 7, got %d", len(important))
	}
	for _, s := range important {
		if s.UserID != "user-1" || s.Importance < 7 {
			t.Errorf("unexpected summary %+v", s)
		}
	}
}

func TestMemory_FormatMemoryContext(t *testing.T) {
	f := newMemoryFixture()

	if got := f.svc.FormatMemoryContext(nil); got != "" {
		t.Errorf("expected empty string for no summaries, got %q", got)
	}

	s := domain.NewConversationSummary("user-1", "conv-1", "User prefers tea.", []string{"drinks", "preferences"}, 7, "warm", 4)
	s.UpdatedAt = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	got := f.svc.FormatMemoryContext([]*domain.ConversationSummary{s, s})

	if !strings.HasPrefix(got, memoryHeader) {
		t.Errorf("expected header, got %q", got)
	}
	block := "[Memory 1: 2026-03-14] (Importance: 7/10)\nTopics: drinks, preferences\nTone: warm\nUser prefers tea."
	if !strings.Contains(got, block) {
		t.Errorf("expected block %q in %q", block, got)
	}
	if !strings.Contains(got, "\n\n---\n\n[Memory 2: 2026-03-14]") {
		t.Errorf("expected separated second block, got %q", got)
	}
}

func TestMemory_DeleteSummary(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()
	f.summaries.Put(domain.NewConversationSummary("user-1", "conv-1", "mine", nil, 5, "", 4))

	if err := f.svc.DeleteSummary(ctx, "conv-1", "user-2"); !errors.Is(err, domain.ErrNotFoundOrForbidden) {
		t.Errorf("expected ErrNotFoundOrForbidden for another user, got %v", err)
	}
	if err := f.svc.DeleteSummary(ctx, "conv-1", "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.summaries.Count("conv-1") != 0 {
		t.Error("expected summary to be deleted")
	}
}
