package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry
func (r *AuditRepository) Create(ctx context.Context, entry *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			expense_id, previous_status, new_status, changed_at, comment, actor_id
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		entry.ExpenseID,
		string(entry.PreviousStatus),
		string(entry.NewStatus),
		formatTime(entry.ChangedAt),
		entry.Comment,
		entry.ActorID,
	)
	if err != nil {
		r.logger.Error("Failed to create audit entry",
			zap.Int64("expense_id", entry.ExpenseID),
			zap.Error(err))
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByExpense returns the expense's audit trail in chronological order
func (r *AuditRepository) ListByExpense(ctx context.Context, expenseID int64) ([]*entity.AuditEntryView, error) {
	query := `
		SELECT a.id, a.expense_id, a.previous_status, a.new_status,
			a.changed_at, a.comment, a.actor_id, COALESCE(u.name, '')
		FROM audit_entries a
		LEFT JOIN users u ON u.id = a.actor_id
		WHERE a.expense_id = ?
		ORDER BY a.changed_at ASC, a.id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*entity.AuditEntryView{}
	for rows.Next() {
		var v entity.AuditEntryView
		var previous, next, changedAt string

		if err := rows.Scan(
			&v.ID,
			&v.ExpenseID,
			&previous,
			&next,
			&changedAt,
			&v.Comment,
			&v.ActorID,
			&v.ActorName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		v.PreviousStatus = workflow.State(previous)
		v.NewStatus = workflow.State(next)
		if v.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &v)
	}

	return entries, rows.Err()
}

// DeleteByExpense removes every audit entry of the expense
func (r *AuditRepository) DeleteByExpense(ctx context.Context, expenseID int64) (int64, error) {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM audit_entries WHERE expense_id = ?`, expenseID)
	if err != nil {
		r.logger.Error("Failed to delete audit entries", zap.Int64("expense_id", expenseID), zap.Error(err))
		return 0, fmt.Errorf("failed to delete audit entries: %w", err)
	}
	return result.RowsAffected()
}

var _ port.AuditRepository = (*AuditRepository)(nil)
