// Package export writes expense listings as spreadsheets.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// SheetName is the worksheet holding the exported rows
const SheetName = "Expenses"

// ContentType is the MIME type of the generated workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []interface{}{
	"ID", "Date", "Description", "Owner", "Status",
	"Amount", "Currency", "Rate", "Amount (" + entity.ReferenceCurrency + ")",
	"Receipt", "AI confidence", "AI flagged",
}

var columnWidths = map[string]float64{
	"A": 8, "B": 12, "C": 40, "D": 20, "E": 18,
	"F": 12, "G": 10, "H": 12, "I": 14, "J": 10, "K": 14, "L": 10,
}

// XLSXExporter implements port.ExpenseExporter with excelize
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// Export writes one header row and one row per view, in the given order
func (x *XLSXExporter) Export(ctx context.Context, views []*entity.ExpenseView, w io.Writer) (err error) {
	f := excelize.NewFile()
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "L1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, v := range views {
		if err := ctx.Err(); err != nil {
			return err
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := rowFor(v)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row for expense %d: %w", v.ID, err)
		}
	}

	if n := len(views); n > 0 {
		last := n + 1
		if err := f.SetCellStyle(SheetName, "F2", fmt.Sprintf("F%d", last), moneyStyle); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, "I2", fmt.Sprintf("I%d", last), moneyStyle); err != nil {
			return err
		}
	}

	for col, width := range columnWidths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return err
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		x.logger.Error("Failed to write workbook", zap.Error(err))
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Info("Expenses exported", zap.Int("rows", len(views)))
	return nil
}

func rowFor(v *entity.ExpenseView) []interface{} {
	amount, _ := v.OriginalAmount.Round(2).Float64()
	reference, _ := v.ReferenceAmount.Round(2).Float64()

	receipt := "no"
	if v.ReceiptRef != "" {
		receipt = "yes"
	}

	var confidence, flagged interface{} = "", ""
	if v.AIConfidence != nil {
		confidence = *v.AIConfidence
	}
	if v.AIFlagged != nil {
		flagged = *v.AIFlagged
	}

	return []interface{}{
		v.ID,
		v.ExpenseDate.Format("2006-01-02"),
		v.Description,
		v.OwnerName,
		v.Status.String(),
		amount,
		v.OriginalCurrency,
		v.ConversionRate.String(),
		reference,
		receipt,
		confidence,
		flagged,
	}
}

var _ port.ExpenseExporter = (*XLSXExporter)(nil)
