package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

func dashView(id, owner, dept int64, status workflow.State, amount string, date time.Time, cat *int64) entity.ExpenseView {
	return entity.ExpenseView{Expense: entity.Expense{
		ID:              id,
		OwnerID:         owner,
		DepartmentID:    dept,
		Status:          status,
		ReferenceAmount: decimal.RequireFromString(amount),
		ExpenseDate:     date,
		CreatedAt:       date,
		CategoryID:      cat,
	}}
}

func TestDashboardService_Build(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	thisMonth := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	travel := int64(1)

	expenses := &mockExpenseRepo{views: []entity.ExpenseView{
		dashView(1, 10, 1, workflow.StateApproved, "500.00", thisMonth, &travel),
		dashView(2, 11, 1, workflow.StateApproved, "350.00", thisMonth, nil),
		dashView(3, 10, 2, workflow.StatePendingApproval, "100.00", lastMonth, &travel),
		dashView(4, 11, 2, workflow.StateRejected, "100.00", lastMonth, nil),
		dashView(5, 10, 2, workflow.StateDraft, "50.00", thisMonth, nil),
	}}
	depts := &mockDepartmentRepo{depts: []*entity.Department{
		{ID: 1, Name: "Engineering", MonthlyBudget: decimal.NewFromInt(1000)},
		{ID: 2, Name: "Sales", MonthlyBudget: decimal.NewFromInt(50)},
		{ID: 3, Name: "Legal", MonthlyBudget: decimal.Zero},
	}}
	cats := newMockCategoryRepo(&entity.Category{Name: "Travel", Color: "#64b5f6", Active: true})

	svc := NewDashboardService(expenses, depts, cats, func() time.Time { return now }, &mockLogger{})
	admin := entity.Actor{ID: 99, Role: entity.RoleAdmin}

	d, err := svc.Build(context.Background(), admin, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, d.TotalExpenses)
	assert.Equal(t, 2, d.ApprovedCount)
	assert.Equal(t, 1, d.PendingCount)
	assert.Equal(t, 1, d.RejectedCount)
	assert.True(t, d.ApprovedTotal.Equal(decimal.NewFromInt(850)))
	assert.True(t, d.PendingReimbursement.Equal(decimal.NewFromInt(850)))
	assert.True(t, d.CurrentMonthTotal.Equal(decimal.NewFromInt(900)))
	assert.True(t, d.PreviousMonthTotal.Equal(decimal.NewFromInt(200)))
	require.NotNil(t, d.MonthlyVariationPercent)
	assert.InDelta(t, 350.0, *d.MonthlyVariationPercent, 1e-9)

	require.Len(t, d.ByDepartment, 3)
	assert.Equal(t, 2, d.ByDepartment[0].Count)
	assert.True(t, d.ByDepartment[1].Total.Equal(decimal.NewFromInt(250)))

	// Engineering spent 850/1000 this month, Sales 50/50, Legal has no budget.
	require.Len(t, d.BudgetAlerts, 2)
	assert.Equal(t, "Engineering", d.BudgetAlerts[0].Department)
	assert.Equal(t, entity.AlertLevelWarning, d.BudgetAlerts[0].Level)
	assert.InDelta(t, 85.0, d.BudgetAlerts[0].Percent, 1e-9)
	assert.Equal(t, entity.AlertLevelCritical, d.BudgetAlerts[1].Level)

	require.Len(t, d.ByCategory, 2)
	assert.Equal(t, "Travel", d.ByCategory[0].Category)
	assert.Equal(t, 2, d.ByCategory[0].Count)
	assert.Equal(t, uncategorizedName, d.ByCategory[1].Category)
	assert.True(t, d.ByCategory[1].Total.Equal(decimal.NewFromInt(500)))
}

func TestDashboardService_MonthWindowsAreBounded(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

	expenses := &mockExpenseRepo{views: []entity.ExpenseView{
		dashView(1, 10, 1, workflow.StateApproved, "60.00", day(time.March, 31), nil),
		dashView(2, 10, 1, workflow.StateApproved, "500.00", day(time.April, 1), nil),
		dashView(3, 10, 1, workflow.StateApproved, "40.00", day(time.February, 1), nil),
		dashView(4, 10, 1, workflow.StateApproved, "70.00", day(time.January, 31), nil),
	}}
	depts := &mockDepartmentRepo{depts: []*entity.Department{
		{ID: 1, Name: "Engineering", MonthlyBudget: decimal.NewFromInt(100)},
	}}
	svc := NewDashboardService(expenses, depts, newMockCategoryRepo(), func() time.Time { return now }, &mockLogger{})

	d, err := svc.Build(context.Background(), entity.Actor{ID: 1, Role: entity.RoleAdmin}, nil)
	require.NoError(t, err)

	assert.True(t, d.CurrentMonthTotal.Equal(decimal.NewFromInt(60)), d.CurrentMonthTotal.String())
	assert.True(t, d.PreviousMonthTotal.Equal(decimal.NewFromInt(40)), d.PreviousMonthTotal.String())
	assert.Empty(t, d.BudgetAlerts, "expenses dated next month do not count toward this month's budget")
	require.Len(t, d.ByDepartment, 1)
	assert.True(t, d.ByDepartment[0].Total.Equal(decimal.NewFromInt(670)))
}

func TestDashboardService_PendingReimbursementForUser(t *testing.T) {
	date := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	expenses := &mockExpenseRepo{views: []entity.ExpenseView{
		dashView(1, 10, 1, workflow.StateApproved, "500.00", date, nil),
		dashView(2, 11, 1, workflow.StateApproved, "350.00", date, nil),
	}}
	svc := NewDashboardService(expenses, &mockDepartmentRepo{}, newMockCategoryRepo(), nil, &mockLogger{})

	user := int64(11)
	d, err := svc.Build(context.Background(), entity.Actor{ID: 1, Role: entity.RoleAdmin}, &user)
	require.NoError(t, err)
	assert.True(t, d.PendingReimbursement.Equal(decimal.NewFromInt(350)))
	assert.Nil(t, d.MonthlyVariationPercent)
}

func TestDashboardService_ScopedToCaller(t *testing.T) {
	date := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	expenses := &mockExpenseRepo{views: []entity.ExpenseView{
		dashView(1, 10, 1, workflow.StateApproved, "500.00", date, nil),
		dashView(2, 11, 1, workflow.StateApproved, "350.00", date, nil),
	}}
	svc := NewDashboardService(expenses, &mockDepartmentRepo{}, newMockCategoryRepo(), nil, &mockLogger{})

	d, err := svc.Build(context.Background(), entity.Actor{ID: 10, Role: entity.RoleEmployee}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalExpenses)
}

func TestDashboardService_LoadError(t *testing.T) {
	boom := errors.New("db down")
	svc := NewDashboardService(&mockExpenseRepo{}, &mockDepartmentRepo{listErr: boom}, newMockCategoryRepo(), nil, &mockLogger{})

	_, err := svc.Build(context.Background(), entity.Actor{ID: 1, Role: entity.RoleAdmin}, nil)
	assert.ErrorIs(t, err, boom)
}
