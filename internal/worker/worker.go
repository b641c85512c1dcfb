package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driving"
	"github.com/Allerac/allerac-one-sub001/internal/core/services"
	"github.com/Allerac/allerac-one-sub001/internal/metrics"
)

const (
	outcomeSuccess = "success"
	outcomeRetry   = "retry"

	maxDequeueBackoff = 30 * time.Second
)

type handlerFunc func(ctx context.Context, task *domain.Task) error

// Worker drains the task queue with a fixed number of goroutines. A failed
// handler nacks its task so the queue can retry it with backoff.
type Worker struct {
	taskQueue driven.TaskQueue
	documents driving.DocumentService
	memory    driving.MemoryService
	sweeper   *services.StaleDocumentSweeper
	logger    *slog.Logger
	handlers  map[domain.TaskType]handlerFunc

	concurrency    int
	dequeueTimeout int // seconds

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Documents      driving.DocumentService
	Memory         driving.MemoryService
	Sweeper        *services.StaleDocumentSweeper // runs on its own ticker alongside the worker
	Logger         *slog.Logger
	Concurrency    int // default 1
	DequeueTimeout int // seconds, default 5
}

func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		taskQueue:      cfg.TaskQueue,
		documents:      cfg.Documents,
		memory:         cfg.Memory,
		sweeper:        cfg.Sweeper,
		logger:         cfg.Logger,
		concurrency:    max(cfg.Concurrency, 1),
		dequeueTimeout: cfg.DequeueTimeout,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.dequeueTimeout <= 0 {
		w.dequeueTimeout = 5
	}
	w.handlers = map[domain.TaskType]handlerFunc{
		domain.TaskTypeProcessDocument:       w.processDocument,
		domain.TaskTypeSummarizeConversation: w.summarizeConversation,
		domain.TaskTypeSweepStaleDocuments:   w.sweep,
	}
	return w
}

// Start launches the dequeue loops and the sweeper. Calling it on a running
// worker does nothing.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	// Stop cancels dequeueing only; a task already claimed runs on ctx.
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.logger.Info("worker starting", "concurrency", w.concurrency, "dequeue_timeout", w.dequeueTimeout)

	if w.sweeper != nil {
		w.sweeper.Start(ctx)
	}
	for i := range w.concurrency {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.loop(ctx, loopCtx, w.logger.With("worker_id", i))
		}()
	}
	return nil
}

// Stop halts dequeueing and waits for claimed tasks to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.mu.Unlock()

	if w.sweeper != nil {
		w.sweeper.Stop()
	}
	w.wg.Wait()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.logger.Info("worker stopped")
}

func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) loop(taskCtx, loopCtx context.Context, logger *slog.Logger) {
	backoff := time.Duration(0)
	for loopCtx.Err() == nil {
		task, err := w.taskQueue.DequeueWithTimeout(loopCtx, w.dequeueTimeout)
		if err != nil {
			if loopCtx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			backoff = min(max(2*backoff, time.Second), maxDequeueBackoff)
			logger.Error("dequeue failed", "error", err, "retry_in", backoff)
			select {
			case <-loopCtx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		if task != nil {
			w.processTask(taskCtx, task, logger)
		}
	}
}

// processTask runs the handler for task and settles it with the queue.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "user_id", task.UserID)
	start := time.Now()

	err := w.dispatch(ctx, task)
	if err != nil {
		logger.Error("task failed", "attempt", task.Attempts, "duration", time.Since(start), "error", err)
		metrics.TaskProcessed(task.Type, outcomeRetry)
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("nack failed", "error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", time.Since(start))
	metrics.TaskProcessed(task.Type, outcomeSuccess)
	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("ack failed", "error", ackErr)
	}
}

func (w *Worker) dispatch(ctx context.Context, task *domain.Task) error {
	h, ok := w.handlers[task.Type]
	if !ok {
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
	return h(ctx, task)
}

func (w *Worker) processDocument(ctx context.Context, task *domain.Task) error {
	id := task.DocumentID()
	if id == "" {
		return errors.New("task payload has no document_id")
	}
	if w.documents == nil {
		return fmt.Errorf("%w: document service not configured", domain.ErrServiceUnavailable)
	}
	return w.documents.ProcessStaged(ctx, id)
}

// summarizeConversation checks eligibility again: the same conversation may
// have been queued twice, or summarized inline since.
func (w *Worker) summarizeConversation(ctx context.Context, task *domain.Task) error {
	id := task.ConversationID()
	if id == "" {
		return errors.New("task payload has no conversation_id")
	}
	if w.memory == nil {
		return fmt.Errorf("%w: memory service not configured", domain.ErrServiceUnavailable)
	}

	eligible, err := w.memory.ShouldSummarize(ctx, id)
	if err != nil {
		return err
	}
	if !eligible {
		w.logger.Debug("conversation not eligible, skipping summary", "conversation_id", id)
		return nil
	}
	_, err = w.memory.GenerateSummary(ctx, id, task.UserID)
	return err
}

func (w *Worker) sweep(ctx context.Context, _ *domain.Task) error {
	if w.sweeper == nil {
		return fmt.Errorf("%w: sweeper not configured", domain.ErrServiceUnavailable)
	}
	_, err := w.sweeper.Sweep(ctx)
	return err
}
