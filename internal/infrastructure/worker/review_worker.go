package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// AnalysisRecorder stores the outcome of a review
type AnalysisRecorder interface {
	RecordAnalysis(ctx context.Context, expenseID int64, analysis entity.AIAnalysis) error
}

// ReviewWorkerConfig holds configuration for the review worker
type ReviewWorkerConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	ProcessTimeout time.Duration
}

// DefaultReviewWorkerConfig returns default configuration
func DefaultReviewWorkerConfig() ReviewWorkerConfig {
	return ReviewWorkerConfig{
		PollInterval:   30 * time.Second,
		BatchSize:      10,
		ProcessTimeout: 60 * time.Second,
	}
}

// ReviewStats reports the worker's progress
type ReviewStats struct {
	Processed int
	Failed    int
	LastRun   time.Time
	LastError error
}

// ReviewWorker polls pending expenses without advisory metadata and asks the
// advisor to score them. Results never change an expense's status.
type ReviewWorker struct {
	config   ReviewWorkerConfig
	expenses port.ExpenseRepository
	advisor  port.ExpenseAdvisor
	recorder AnalysisRecorder
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	stats  ReviewStats
}

// NewReviewWorker creates a new review worker
func NewReviewWorker(
	config ReviewWorkerConfig,
	expenses port.ExpenseRepository,
	advisor port.ExpenseAdvisor,
	recorder AnalysisRecorder,
	logger *zap.Logger,
) *ReviewWorker {
	defaults := DefaultReviewWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.ProcessTimeout <= 0 {
		config.ProcessTimeout = defaults.ProcessTimeout
	}

	return &ReviewWorker{
		config:   config,
		expenses: expenses,
		advisor:  advisor,
		recorder: recorder,
		logger:   logger,
	}
}

// Name returns the worker name for identification
func (w *ReviewWorker) Name() string {
	return "ReviewWorker"
}

// Start begins the polling loop
func (w *ReviewWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return fmt.Errorf("review worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	w.logger.Info("ReviewWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(ctx, w.done)
	return nil
}

// Stop cancels the loop and waits for the current batch to finish
func (w *ReviewWorker) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("ReviewWorker stopped",
		zap.Int("processed_count", stats.Processed),
		zap.Int("failed_count", stats.Failed))
	return nil
}

// Stats returns a snapshot of the worker's counters
func (w *ReviewWorker) Stats() ReviewStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *ReviewWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("Review batch failed", zap.Error(err))
			}
		}
	}
}

// RunOnce reviews one batch and returns how many expenses were scored. A
// failing expense is counted and skipped; it is retried on the next batch.
func (w *ReviewWorker) RunOnce(ctx context.Context) (int, error) {
	batch, err := w.expenses.ListAwaitingAnalysis(ctx, w.config.BatchSize)
	if err != nil {
		w.record(0, 0, err)
		return 0, fmt.Errorf("failed to list expenses awaiting review: %w", err)
	}

	processed, failed := 0, 0
	for _, expense := range batch {
		if ctx.Err() != nil {
			break
		}
		if err := w.review(ctx, expense); err != nil {
			failed++
			w.logger.Warn("Expense review failed", zap.Int64("expense_id", expense.ID), zap.Error(err))
			continue
		}
		processed++
	}

	w.record(processed, failed, nil)
	return processed, nil
}

func (w *ReviewWorker) review(ctx context.Context, expense *entity.Expense) error {
	reviewCtx, cancel := context.WithTimeout(ctx, w.config.ProcessTimeout)
	defer cancel()

	analysis, err := w.advisor.Analyze(reviewCtx, expense)
	if err != nil {
		return fmt.Errorf("advisor: %w", err)
	}
	if err := w.recorder.RecordAnalysis(ctx, expense.ID, *analysis); err != nil {
		return fmt.Errorf("record: %w", err)
	}

	w.logger.Info("Expense reviewed",
		zap.Int64("expense_id", expense.ID),
		zap.Float64("confidence", analysis.Confidence),
		zap.Bool("flagged", analysis.Flagged))
	return nil
}

func (w *ReviewWorker) record(processed, failed int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Processed += processed
	w.stats.Failed += failed
	w.stats.LastRun = time.Now()
	w.stats.LastError = err
}
