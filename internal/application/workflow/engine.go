package workflow

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/application/query"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// CreateExpenseInput carries the caller-supplied fields of a new expense
type CreateExpenseInput struct {
	Description string          `json:"description" validate:"required,max=500"`
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Currency    string          `json:"currency" validate:"required,currency"`
	CategoryID  *int64          `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	ExpenseDate string          `json:"expense_date" validate:"required,datetime=2006-01-02"`
}

// ReceiptUpload is a receipt file attached to a draft expense
type ReceiptUpload struct {
	FileName string
	Content  []byte
}

// Engine drives expenses through their approval lifecycle. Every mutation
// is authorized against the acting user and every status change writes
// exactly one audit entry in the same transaction.
type Engine interface {
	// Create stores a new DRAFT expense owned by actor
	Create(ctx context.Context, actor entity.Actor, input CreateExpenseInput) (*entity.Expense, error)

	// SubmitForReview moves the actor's own DRAFT expense to PENDING_APPROVAL
	SubmitForReview(ctx context.Context, expenseID int64, actor entity.Actor) (*entity.Expense, error)

	// Approve moves a non-terminal expense to APPROVED
	Approve(ctx context.Context, expenseID int64, actor entity.Actor) (*entity.Expense, error)

	// Reject moves a non-terminal expense to REJECTED. comment must not be blank.
	Reject(ctx context.Context, expenseID int64, actor entity.Actor, comment string) (*entity.Expense, error)

	// Delete removes an expense and its audit entries regardless of status
	Delete(ctx context.Context, expenseID int64) error

	// DeleteBatch removes every listed expense that exists and returns how many were removed
	DeleteBatch(ctx context.Context, ids []int64) (int, error)

	// Get returns one expense the actor is allowed to see
	Get(ctx context.Context, expenseID int64, actor entity.Actor) (*entity.ExpenseView, error)

	// Search returns the expenses within the actor's scope matching filter
	Search(ctx context.Context, actor entity.Actor, filter query.Filter) ([]*entity.ExpenseView, error)

	// ListAll returns every expense. Admin only.
	ListAll(ctx context.Context, actor entity.Actor) ([]*entity.ExpenseView, error)

	// ListByOwner returns ownerID's expenses that the actor may see
	ListByOwner(ctx context.Context, actor entity.Actor, ownerID int64) ([]*entity.ExpenseView, error)

	// ListByTeam returns the expenses of managerID's direct reports
	ListByTeam(ctx context.Context, actor entity.Actor, managerID int64) ([]*entity.ExpenseView, error)

	// History returns the audit trail of an expense the actor may see, oldest first
	History(ctx context.Context, expenseID int64, actor entity.Actor) ([]*entity.AuditEntryView, error)

	// AttachReceipt stores a receipt for the actor's own DRAFT expense
	AttachReceipt(ctx context.Context, expenseID int64, actor entity.Actor, upload ReceiptUpload) (*entity.Expense, error)

	// RecordAnalysis stores advisory review metadata. It never changes status.
	RecordAnalysis(ctx context.Context, expenseID int64, analysis entity.AIAnalysis) error
}
