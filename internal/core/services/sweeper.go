package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driving"
	"github.com/Allerac/allerac-one-sub001/internal/metrics"
)

// Sweeper defaults
const (
	DefaultStaleDocumentTimeout = 30 * time.Minute
	DefaultSweepInterval        = time.Minute
	DefaultTaskRetention        = 7 * 24 * time.Hour

	// StaleDocumentMessage is recorded on documents failed by the sweeper
	StaleDocumentMessage = "processing timed out"

	sweepLockName = "stale-documents"
)

// Ensure StaleDocumentSweeper implements DocumentSweeper
var _ driving.DocumentSweeper = (*StaleDocumentSweeper)(nil)

// StaleDocumentSweeper periodically fails documents that have been processing
// for longer than a timeout, e.g. after a provider outage or a worker crash.
//
// For multi-instance deployments, configure a DistributedLock so that only one
// instance sweeps per tick.
type StaleDocumentSweeper struct {
	documents driven.DocumentStore
	queue     driven.TaskQueue
	lock      driven.DistributedLock
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
	timeout  time.Duration
	lockTTL  time.Duration
	retain   time.Duration
}

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	Documents driven.DocumentStore
	Queue     driven.TaskQueue       // Optional; finished tasks are purged when set
	Lock      driven.DistributedLock // Optional
	Logger    *slog.Logger
	Interval  time.Duration // How often to sweep (default: 1m)
	Timeout   time.Duration // How long a document may stay processing (default: 30m)
	LockTTL   time.Duration // TTL for the distributed lock (default: 2x Interval)

	// TaskRetention is how long completed and failed tasks are kept (default: 7d)
	TaskRetention time.Duration
}

// NewStaleDocumentSweeper creates a new sweeper.
func NewStaleDocumentSweeper(cfg SweeperConfig) *StaleDocumentSweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultStaleDocumentTimeout
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * interval
	}

	retain := cfg.TaskRetention
	if retain <= 0 {
		retain = DefaultTaskRetention
	}

	return &StaleDocumentSweeper{
		documents: cfg.Documents,
		queue:     cfg.Queue,
		lock:      cfg.Lock,
		logger:    logger,
		now:       time.Now,
		interval:  interval,
		timeout:   timeout,
		lockTTL:   lockTTL,
		retain:    retain,
	}
}

// Start begins the sweep loop.
// It runs until Stop is called or context is cancelled.
func (s *StaleDocumentSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("stale document sweeper starting", "interval", s.interval, "timeout", s.timeout)

	go s.run(ctx)
}

// Stop stops the loop and waits for an in-flight sweep to finish.
func (s *StaleDocumentSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stale document sweeper stopped")
}

func (s *StaleDocumentSweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *StaleDocumentSweeper) tick(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("stale document sweep failed", "error", err)
	}
	if s.queue == nil {
		return
	}
	purged, err := s.queue.PurgeTasks(ctx, int(s.retain.Seconds()))
	if err != nil {
		s.logger.Error("task purge failed", "error", err)
		return
	}
	if purged > 0 {
		s.logger.Info("purged finished tasks", "count", purged, "older_than", s.retain)
	}
}

// Sweep fails every document processing for longer than the timeout.
// It returns 0 without error when another instance holds the sweep lock.
func (s *StaleDocumentSweeper) Sweep(ctx context.Context) (int, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, sweepLockName, s.lockTTL)
		if err != nil {
			return 0, err
		}
		if !acquired {
			s.logger.Debug("sweep lock held by another instance, skipping")
			return 0, nil
		}
		defer func() {
			if err := s.lock.Release(ctx, sweepLockName); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	cutoff := s.now().Add(-s.timeout)
	ids, err := s.documents.FailStale(ctx, cutoff, StaleDocumentMessage)
	if err != nil {
		return 0, err
	}

	if len(ids) > 0 {
		metrics.StaleDocumentsSwept(len(ids))
		s.logger.Warn("failed stale documents",
			"count", len(ids),
			"document_ids", ids,
			"cutoff", cutoff,
		)
	}
	return len(ids), nil
}
