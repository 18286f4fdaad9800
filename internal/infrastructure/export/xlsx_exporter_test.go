package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

func TestXLSXExporter_Export(t *testing.T) {
	confidence := 0.75
	views := []*entity.ExpenseView{
		{
			Expense: entity.Expense{
				ID:               2,
				Description:      "Hotel Berlin",
				OriginalAmount:   decimal.RequireFromString("150"),
				OriginalCurrency: "USD",
				ConversionRate:   decimal.RequireFromString("0.92"),
				ReferenceAmount:  decimal.RequireFromString("138"),
				ExpenseDate:      time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
				Status:           workflow.StatePendingApproval,
				ReceiptRef:       "receipts/2/x.png",
				AIConfidence:     &confidence,
			},
			OwnerName: "Erik",
		},
		{
			Expense: entity.Expense{
				ID:               1,
				Description:      "Taxi",
				OriginalAmount:   decimal.RequireFromString("20.5"),
				OriginalCurrency: "EUR",
				ConversionRate:   decimal.NewFromInt(1),
				ReferenceAmount:  decimal.RequireFromString("20.5"),
				ExpenseDate:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				Status:           workflow.StateDraft,
			},
			OwnerName: "Olga",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewXLSXExporter(zap.NewNop()).Export(context.Background(), views, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Amount (EUR)", rows[0][8])

	assert.Equal(t, []string{"2", "2024-02-10", "Hotel Berlin", "Erik", "PENDING_APPROVAL", "150", "USD", "0.92", "138", "yes", "0.75"}, rows[1][:11])
	assert.Equal(t, "Taxi", rows[2][2])
	assert.Equal(t, "20.5", rows[2][8])
	assert.Equal(t, "no", rows[2][9])
}

func TestXLSXExporter_EmptyAndCancelled(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXExporter(zap.NewNop()).Export(context.Background(), nil, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	views := []*entity.ExpenseView{{Expense: entity.Expense{ID: 1}}}
	assert.ErrorIs(t, NewXLSXExporter(zap.NewNop()).Export(ctx, views, &bytes.Buffer{}), context.Canceled)
}
