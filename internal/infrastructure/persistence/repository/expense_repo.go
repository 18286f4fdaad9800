package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/query"
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqlite"
)

const expenseColumns = `
	e.id, e.description, e.original_amount, e.original_currency,
	e.reference_amount, e.conversion_rate, e.expense_date, e.created_at,
	e.category_id, e.owner_id, e.department_id, e.receipt_ref, e.status,
	e.ai_confidence, e.ai_flagged, e.version`

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new expense and sets its ID
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	query := `
		INSERT INTO expenses (
			description, original_amount, original_currency, reference_amount,
			conversion_rate, expense_date, created_at, category_id, owner_id,
			department_id, receipt_ref, status, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		expense.Description,
		expense.OriginalAmount.StringFixed(2),
		expense.OriginalCurrency,
		expense.ReferenceAmount.StringFixed(2),
		expense.ConversionRate.StringFixed(6),
		expense.ExpenseDate.Format(dateLayout),
		formatTime(expense.CreatedAt),
		nullInt64(expense.CategoryID),
		expense.OwnerID,
		expense.DepartmentID,
		expense.ReceiptRef,
		string(expense.Status),
		expense.Version,
	)
	if err != nil {
		r.logger.Error("Failed to create expense", zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	expense.ID = id
	return nil
}

// GetByID retrieves an expense by ID
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses e WHERE e.id = ?`

	row := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id)
	expense, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// GetView retrieves an expense together with its owner's name and manager
func (r *ExpenseRepository) GetView(ctx context.Context, id int64) (*entity.ExpenseView, error) {
	query := `
		SELECT ` + expenseColumns + `, u.name, u.manager_id
		FROM expenses e JOIN users u ON u.id = e.owner_id
		WHERE e.id = ?
	`

	row := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id)
	view, err := scanExpenseView(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense view", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return view, nil
}

// UpdateStatus moves the expense to status if its version still matches
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, id int64, status workflow.State, expectedVersion int64) error {
	query := `
		UPDATE expenses
		SET status = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, string(status), id, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update expense status",
			zap.Int64("id", id),
			zap.String("status", status.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update expense status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("expense %d at version %d: %w", id, expectedVersion, apperr.ErrConcurrentModification)
	}
	return nil
}

// SetReceipt stores the receipt storage key on the expense
func (r *ExpenseRepository) SetReceipt(ctx context.Context, id int64, receiptRef string) error {
	return r.exec(ctx, "set receipt", `UPDATE expenses SET receipt_ref = ? WHERE id = ?`, receiptRef, id)
}

// SetAIAnalysis records the advisory review result
func (r *ExpenseRepository) SetAIAnalysis(ctx context.Context, id int64, analysis entity.AIAnalysis) error {
	return r.exec(ctx, "set ai analysis",
		`UPDATE expenses SET ai_confidence = ?, ai_flagged = ? WHERE id = ?`,
		analysis.Confidence, boolToInt(analysis.Flagged), id)
}

// ListAwaitingAnalysis returns pending expenses that have not been reviewed yet, oldest first
func (r *ExpenseRepository) ListAwaitingAnalysis(ctx context.Context, limit int) ([]*entity.Expense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM expenses e
		WHERE e.status = ? AND e.ai_confidence IS NULL
		ORDER BY e.created_at ASC, e.id ASC
		LIMIT ?
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, string(workflow.StatePendingApproval), limit)
	if err != nil {
		r.logger.Error("Failed to list expenses awaiting analysis", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

// Search returns the expense views matching every predicate, newest first
func (r *ExpenseRepository) Search(ctx context.Context, preds []query.Predicate) ([]*entity.ExpenseView, error) {
	where, args := query.Where(preds)
	stmt := `
		SELECT ` + expenseColumns + `, u.name, u.manager_id
		FROM expenses e JOIN users u ON u.id = e.owner_id
		WHERE ` + where + `
		ORDER BY ` + query.OrderBy

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, stmt, args...)
	if err != nil {
		r.logger.Error("Failed to search expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to search expenses: %w", err)
	}
	defer rows.Close()

	views := []*entity.ExpenseView{}
	for rows.Next() {
		view, err := scanExpenseView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

// Delete removes the expense row. Audit entries must be removed first.
func (r *ExpenseRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete expense", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *ExpenseRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	if _, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

type expenseRow struct {
	originalAmount  string
	referenceAmount string
	rate            string
	expenseDate     string
	createdAt       string
	categoryID      sql.NullInt64
	status          string
	aiConfidence    sql.NullFloat64
	aiFlagged       sql.NullBool
}

func (row *expenseRow) targets(e *entity.Expense) []interface{} {
	return []interface{}{
		&e.ID,
		&e.Description,
		&row.originalAmount,
		&e.OriginalCurrency,
		&row.referenceAmount,
		&row.rate,
		&row.expenseDate,
		&row.createdAt,
		&row.categoryID,
		&e.OwnerID,
		&e.DepartmentID,
		&e.ReceiptRef,
		&row.status,
		&row.aiConfidence,
		&row.aiFlagged,
		&e.Version,
	}
}

func (row *expenseRow) decode(e *entity.Expense) error {
	var err error
	if e.OriginalAmount, err = parseDecimal(row.originalAmount); err != nil {
		return err
	}
	if e.ReferenceAmount, err = parseDecimal(row.referenceAmount); err != nil {
		return err
	}
	if e.ConversionRate, err = parseDecimal(row.rate); err != nil {
		return err
	}
	if e.ExpenseDate, err = parseDate(row.expenseDate); err != nil {
		return err
	}
	if e.CreatedAt, err = parseTime(row.createdAt); err != nil {
		return err
	}
	e.CategoryID = int64Ptr(row.categoryID)
	e.Status = workflow.State(row.status)
	if row.aiConfidence.Valid {
		confidence := row.aiConfidence.Float64
		e.AIConfidence = &confidence
	}
	if row.aiFlagged.Valid {
		flagged := row.aiFlagged.Bool
		e.AIFlagged = &flagged
	}
	return nil
}

func scanExpense(s scanner) (*entity.Expense, error) {
	var e entity.Expense
	var row expenseRow
	if err := s.Scan(row.targets(&e)...); err != nil {
		return nil, err
	}
	if err := row.decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanExpenseView(s scanner) (*entity.ExpenseView, error) {
	var v entity.ExpenseView
	var row expenseRow
	var managerID sql.NullInt64

	targets := append(row.targets(&v.Expense), &v.OwnerName, &managerID)
	if err := s.Scan(targets...); err != nil {
		return nil, err
	}
	if err := row.decode(&v.Expense); err != nil {
		return nil, err
	}
	v.OwnerManagerID = int64Ptr(managerID)
	return &v, nil
}

var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
