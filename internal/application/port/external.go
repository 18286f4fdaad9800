package port

import (
	"context"
	"io"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// RateResolver returns the multiplier converting one unit of currency into
// the reference currency. Implementations never fail; they fall back to 1.
type RateResolver interface {
	RateToReference(ctx context.Context, currency string) decimal.Decimal
}

// RateCache stores resolved rates keyed by currency and day
type RateCache interface {
	Get(currency, day string) (decimal.Decimal, bool, error)
	Put(currency, day string, rate decimal.Decimal) error
}

// ExpenseAdvisor produces an informational review of an expense
type ExpenseAdvisor interface {
	Analyze(ctx context.Context, expense *entity.Expense) (*entity.AIAnalysis, error)
}

// MessageSender delivers a plain text message to a chat receiver
type MessageSender interface {
	SendText(ctx context.Context, receiverID, text string) error
}

// ExpenseExporter writes expense views as a spreadsheet
type ExpenseExporter interface {
	Export(ctx context.Context, views []*entity.ExpenseView, w io.Writer) error
}
