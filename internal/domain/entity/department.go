package entity

import "github.com/shopspring/decimal"

// Department groups users and carries spending budgets
type Department struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
	AnnualBudget  decimal.Decimal `json:"annual_budget"`
}
