package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// AuditService records and reads the expense status change log
type AuditService interface {
	// RecordTransition appends one entry. It joins the transaction carried by ctx.
	RecordTransition(ctx context.Context, expenseID int64, previous, next workflow.State, actorID int64, comment string) (*entity.AuditEntry, error)
	// GetHistory returns entries oldest first
	GetHistory(ctx context.Context, expenseID int64) ([]*entity.AuditEntryView, error)
}

type auditServiceImpl struct {
	auditRepo port.AuditRepository
	now       func() time.Time
	logger    Logger
}

// AuditOption configures the audit service
type AuditOption func(*auditServiceImpl)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) AuditOption {
	return func(s *auditServiceImpl) {
		s.now = now
	}
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo port.AuditRepository, logger Logger, opts ...AuditOption) AuditService {
	s := &auditServiceImpl{
		auditRepo: auditRepo,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *auditServiceImpl) RecordTransition(ctx context.Context, expenseID int64, previous, next workflow.State, actorID int64, comment string) (*entity.AuditEntry, error) {
	if !previous.IsValid() || !next.IsValid() {
		return nil, apperr.Invalid("audit entry needs valid statuses, got %q -> %q", previous, next)
	}
	if next == workflow.StateRejected && strings.TrimSpace(comment) == "" {
		return nil, apperr.Invalid("a rejection must carry a comment")
	}

	entry := &entity.AuditEntry{
		ExpenseID:      expenseID,
		PreviousStatus: previous,
		NewStatus:      next,
		ChangedAt:      s.now(),
		Comment:        comment,
		ActorID:        actorID,
	}

	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to record audit entry", "error", err, "expense_id", expenseID)
		return nil, fmt.Errorf("record audit entry: %w", err)
	}

	return entry, nil
}

func (s *auditServiceImpl) GetHistory(ctx context.Context, expenseID int64) ([]*entity.AuditEntryView, error) {
	entries, err := s.auditRepo.ListByExpense(ctx, expenseID)
	if err != nil {
		s.logger.Error("Failed to load audit history", "error", err, "expense_id", expenseID)
		return nil, fmt.Errorf("get history: %w", err)
	}
	return entries, nil
}
