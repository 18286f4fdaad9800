package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/application/query"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// Lookups return (nil, nil) when the record does not exist.

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id int64) (*entity.Expense, error)
	GetView(ctx context.Context, id int64) (*entity.ExpenseView, error)
	// UpdateStatus fails with apperr.ErrConcurrentModification when the stored
	// version differs from expectedVersion.
	UpdateStatus(ctx context.Context, id int64, status workflow.State, expectedVersion int64) error
	SetReceipt(ctx context.Context, id int64, receiptRef string) error
	SetAIAnalysis(ctx context.Context, id int64, analysis entity.AIAnalysis) error
	ListAwaitingAnalysis(ctx context.Context, limit int) ([]*entity.Expense, error)
	Search(ctx context.Context, preds []query.Predicate) ([]*entity.ExpenseView, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// AuditRepository defines persistence operations for AuditEntry
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error
	ListByExpense(ctx context.Context, expenseID int64) ([]*entity.AuditEntryView, error)
	DeleteByExpense(ctx context.Context, expenseID int64) (int64, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	ListByManager(ctx context.Context, managerID int64) ([]*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
}

// CategoryRepository defines persistence operations for Category
type CategoryRepository interface {
	Create(ctx context.Context, category *entity.Category) error
	GetByID(ctx context.Context, id int64) (*entity.Category, error)
	GetByName(ctx context.Context, name string) (*entity.Category, error)
	List(ctx context.Context, activeOnly bool) ([]*entity.Category, error)
	Update(ctx context.Context, category *entity.Category) error
}

// DepartmentRepository defines persistence operations for Department
type DepartmentRepository interface {
	Create(ctx context.Context, dept *entity.Department) error
	GetByID(ctx context.Context, id int64) (*entity.Department, error)
	List(ctx context.Context) ([]*entity.Department, error)
	UpdateBudget(ctx context.Context, id int64, monthly, annual decimal.Decimal) error
}

// TransactionManager runs fn in a transaction carried by its context argument
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
