package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/query"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

const (
	uncategorizedName  = "Uncategorized"
	uncategorizedColor = "#9e9e9e"
)

var (
	warningThreshold  = decimal.NewFromInt(80)
	criticalThreshold = decimal.NewFromInt(100)
	hundred           = decimal.NewFromInt(100)
)

// Dashboard summarizes spending visible to the caller
type Dashboard struct {
	TotalExpenses           int               `json:"total_expenses"`
	PendingReimbursement    decimal.Decimal   `json:"pending_reimbursement"`
	ApprovedTotal           decimal.Decimal   `json:"approved_total"`
	CurrentMonthTotal       decimal.Decimal   `json:"current_month_total"`
	PreviousMonthTotal      decimal.Decimal   `json:"previous_month_total"`
	MonthlyVariationPercent *float64          `json:"monthly_variation_percent,omitempty"`
	PendingCount            int               `json:"pending_count"`
	ApprovedCount           int               `json:"approved_count"`
	RejectedCount           int               `json:"rejected_count"`
	ByDepartment            []DepartmentSpend `json:"by_department"`
	BudgetAlerts            []BudgetAlert     `json:"budget_alerts"`
	ByCategory              []CategorySpend   `json:"by_category"`
}

// DepartmentSpend is the reference total charged to one department
type DepartmentSpend struct {
	Department    string          `json:"department"`
	Total         decimal.Decimal `json:"total"`
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
	Count         int             `json:"count"`
}

// BudgetAlert flags a department whose current month spend nears its budget
type BudgetAlert struct {
	Department    string          `json:"department"`
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
	MonthSpend    decimal.Decimal `json:"month_spend"`
	Percent       float64         `json:"percent"`
	Level         string          `json:"level"`
}

// CategorySpend is the reference total of one category
type CategorySpend struct {
	Category string          `json:"category"`
	Color    string          `json:"color"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// DashboardService computes spending summaries
type DashboardService interface {
	// Build summarizes the expenses actor may see. When userID is set, the
	// pending reimbursement only counts that user's approved expenses.
	Build(ctx context.Context, actor entity.Actor, userID *int64) (*Dashboard, error)
}

type dashboardServiceImpl struct {
	expenseRepo    port.ExpenseRepository
	departmentRepo port.DepartmentRepository
	categoryRepo   port.CategoryRepository
	now            func() time.Time
	logger         Logger
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(
	expenseRepo port.ExpenseRepository,
	departmentRepo port.DepartmentRepository,
	categoryRepo port.CategoryRepository,
	now func() time.Time,
	logger Logger,
) DashboardService {
	if now == nil {
		now = time.Now
	}
	return &dashboardServiceImpl{
		expenseRepo:    expenseRepo,
		departmentRepo: departmentRepo,
		categoryRepo:   categoryRepo,
		now:            now,
		logger:         logger,
	}
}

func (s *dashboardServiceImpl) Build(ctx context.Context, actor entity.Actor, userID *int64) (*Dashboard, error) {
	var (
		expenses    []*entity.ExpenseView
		departments []*entity.Department
		categories  []*entity.Category
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.expenseRepo.Search(gctx, query.Build(query.Scope{Actor: actor}, query.Filter{}))
		return err
	})
	g.Go(func() error {
		var err error
		departments, err = s.departmentRepo.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.categoryRepo.List(gctx, true)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to load dashboard data", "error", err, "actor_id", actor.ID)
		return nil, fmt.Errorf("load dashboard data: %w", err)
	}

	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevMonthStart := monthStart.AddDate(0, -1, 0)
	nextMonthStart := monthStart.AddDate(0, 1, 0)
	inMonth := func(day, start, end time.Time) bool {
		return !day.Before(start) && day.Before(end)
	}

	d := &Dashboard{
		TotalExpenses:        len(expenses),
		PendingReimbursement: decimal.Zero,
		ApprovedTotal:        decimal.Zero,
		CurrentMonthTotal:    decimal.Zero,
		PreviousMonthTotal:   decimal.Zero,
		ByDepartment:         []DepartmentSpend{},
		BudgetAlerts:         []BudgetAlert{},
		ByCategory:           []CategorySpend{},
	}

	for _, e := range expenses {
		amount := e.ReferenceAmount
		switch e.Status {
		case workflow.StateApproved:
			d.ApprovedCount++
			d.ApprovedTotal = d.ApprovedTotal.Add(amount)
			if userID == nil || e.OwnerID == *userID {
				d.PendingReimbursement = d.PendingReimbursement.Add(amount)
			}
		case workflow.StatePendingApproval:
			d.PendingCount++
		case workflow.StateRejected:
			d.RejectedCount++
		}

		switch {
		case inMonth(e.ExpenseDate, monthStart, nextMonthStart):
			d.CurrentMonthTotal = d.CurrentMonthTotal.Add(amount)
		case inMonth(e.ExpenseDate, prevMonthStart, monthStart):
			d.PreviousMonthTotal = d.PreviousMonthTotal.Add(amount)
		}
	}

	if d.PreviousMonthTotal.IsPositive() {
		variation, _ := d.CurrentMonthTotal.Sub(d.PreviousMonthTotal).
			Div(d.PreviousMonthTotal).Round(4).Mul(hundred).Float64()
		d.MonthlyVariationPercent = &variation
	}

	for _, dept := range departments {
		spend := DepartmentSpend{Department: dept.Name, Total: decimal.Zero, MonthlyBudget: dept.MonthlyBudget}
		monthSpend := decimal.Zero
		for _, e := range expenses {
			if e.DepartmentID != dept.ID {
				continue
			}
			spend.Count++
			spend.Total = spend.Total.Add(e.ReferenceAmount)
			if inMonth(e.ExpenseDate, monthStart, nextMonthStart) {
				monthSpend = monthSpend.Add(e.ReferenceAmount)
			}
		}
		d.ByDepartment = append(d.ByDepartment, spend)

		if alert, ok := budgetAlert(dept, monthSpend); ok {
			d.BudgetAlerts = append(d.BudgetAlerts, alert)
		}
	}

	d.ByCategory = categorySpend(categories, expenses)
	return d, nil
}

func budgetAlert(dept *entity.Department, monthSpend decimal.Decimal) (BudgetAlert, bool) {
	if !dept.MonthlyBudget.IsPositive() {
		return BudgetAlert{}, false
	}

	percent := monthSpend.Div(dept.MonthlyBudget).Round(4).Mul(hundred)
	if percent.LessThan(warningThreshold) {
		return BudgetAlert{}, false
	}

	level := entity.AlertLevelWarning
	if percent.GreaterThanOrEqual(criticalThreshold) {
		level = entity.AlertLevelCritical
	}

	pct, _ := percent.Float64()
	return BudgetAlert{
		Department:    dept.Name,
		MonthlyBudget: dept.MonthlyBudget,
		MonthSpend:    monthSpend,
		Percent:       pct,
		Level:         level,
	}, true
}

func categorySpend(categories []*entity.Category, expenses []*entity.ExpenseView) []CategorySpend {
	byID := make(map[int64]*CategorySpend)
	uncategorized := CategorySpend{Category: uncategorizedName, Color: uncategorizedColor, Total: decimal.Zero}

	for _, e := range expenses {
		if e.CategoryID == nil {
			uncategorized.Count++
			uncategorized.Total = uncategorized.Total.Add(e.ReferenceAmount)
			continue
		}
		spend, ok := byID[*e.CategoryID]
		if !ok {
			spend = &CategorySpend{Total: decimal.Zero}
			byID[*e.CategoryID] = spend
		}
		spend.Count++
		spend.Total = spend.Total.Add(e.ReferenceAmount)
	}

	out := []CategorySpend{}
	for _, c := range categories {
		spend, ok := byID[c.ID]
		if !ok {
			continue
		}
		spend.Category = c.Name
		spend.Color = c.Color
		out = append(out, *spend)
	}
	if uncategorized.Count > 0 {
		out = append(out, uncategorized)
	}
	return out
}
