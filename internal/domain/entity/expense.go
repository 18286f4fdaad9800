package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// Expense is a single expense claim owned by one user
type Expense struct {
	ID               int64           `json:"id"`
	Description      string          `json:"description"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	OriginalCurrency string          `json:"original_currency"`
	ReferenceAmount  decimal.Decimal `json:"reference_amount"`
	ConversionRate   decimal.Decimal `json:"conversion_rate"`
	ExpenseDate      time.Time       `json:"expense_date"`
	CreatedAt        time.Time       `json:"created_at"`
	CategoryID       *int64          `json:"category_id,omitempty"`
	OwnerID          int64           `json:"owner_id"`
	DepartmentID     int64           `json:"department_id"`
	ReceiptRef       string          `json:"receipt_ref,omitempty"`
	Status           workflow.State  `json:"status"`
	AIConfidence     *float64        `json:"ai_confidence,omitempty"`
	AIFlagged        *bool           `json:"ai_flagged,omitempty"`
	Version          int64           `json:"version"`
}

// HasAIAnalysis reports whether the advisory review already ran
func (e *Expense) HasAIAnalysis() bool {
	return e.AIConfidence != nil
}

// ExpenseView pairs an expense with the owner attributes needed for scoping
type ExpenseView struct {
	Expense
	OwnerName      string `json:"owner_name"`
	OwnerManagerID *int64 `json:"owner_manager_id,omitempty"`
}

// AIAnalysis is the informational result of an automated expense review
type AIAnalysis struct {
	Confidence float64 `json:"confidence"`
	Flagged    bool    `json:"flagged"`
	Reasoning  string  `json:"reasoning"`
}
