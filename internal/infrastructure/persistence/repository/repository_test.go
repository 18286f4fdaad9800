package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/query"
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-workflow/migrations"
	"github.com/garyjia/expense-workflow/pkg/database"
)

type fixture struct {
	db       *database.DB
	tx       *sqlite.TxManager
	expenses *ExpenseRepository
	audits   *AuditRepository
	users    *UserRepository
	depts    *DepartmentRepository
	cats     *CategoryRepository
	dept     *entity.Department
	manager  *entity.User
	employee *entity.User
	outsider *entity.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "repo.db"), MaxOpenConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = database.NewMigrator(db, logger).Run(migrations.FS)
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		tx:       sqlite.NewTxManager(db.DB, logger),
		expenses: NewExpenseRepository(db.DB, logger).(*ExpenseRepository),
		audits:   NewAuditRepository(db.DB, logger).(*AuditRepository),
		users:    NewUserRepository(db.DB, logger).(*UserRepository),
		depts:    NewDepartmentRepository(db.DB, logger).(*DepartmentRepository),
		cats:     NewCategoryRepository(db.DB, logger).(*CategoryRepository),
	}

	ctx := context.Background()
	f.dept = &entity.Department{Name: "Engineering", MonthlyBudget: decimal.NewFromInt(1000), AnnualBudget: decimal.NewFromInt(12000)}
	require.NoError(t, f.depts.Create(ctx, f.dept))

	f.manager = f.createUser(t, "Marta", "marta@example.com", entity.RoleManager, nil)
	f.employee = f.createUser(t, "Erik", "erik@example.com", entity.RoleEmployee, &f.manager.ID)
	f.outsider = f.createUser(t, "Olga", "olga@example.com", entity.RoleEmployee, nil)
	return f
}

func (f *fixture) createUser(t *testing.T, name, email string, role entity.Role, managerID *int64) *entity.User {
	t.Helper()
	u := &entity.User{
		Name:         name,
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
		DepartmentID: f.dept.ID,
		ManagerID:    managerID,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) createExpense(t *testing.T, owner *entity.User, desc, amount string, created time.Time) *entity.Expense {
	t.Helper()
	e := &entity.Expense{
		Description:      desc,
		OriginalAmount:   decimal.RequireFromString(amount),
		OriginalCurrency: "EUR",
		ReferenceAmount:  decimal.RequireFromString(amount),
		ConversionRate:   decimal.NewFromInt(1),
		ExpenseDate:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:        created,
		OwnerID:          owner.ID,
		DepartmentID:     owner.DepartmentID,
		Status:           workflow.StateDraft,
	}
	require.NoError(t, f.expenses.Create(context.Background(), e))
	return e
}

func TestExpenseRepository_CreateAndGet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 10, 30, 0, 123000, time.UTC)

	e := &entity.Expense{
		Description:      "Conference ticket",
		OriginalAmount:   decimal.RequireFromString("100"),
		OriginalCurrency: "USD",
		ReferenceAmount:  decimal.RequireFromString("92.00"),
		ConversionRate:   decimal.RequireFromString("0.92"),
		ExpenseDate:      time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
		CreatedAt:        created,
		OwnerID:          f.employee.ID,
		DepartmentID:     f.dept.ID,
		Status:           workflow.StateDraft,
	}
	require.NoError(t, f.expenses.Create(ctx, e))
	require.NotZero(t, e.ID)

	got, err := f.expenses.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Conference ticket", got.Description)
	assert.True(t, got.ReferenceAmount.Equal(decimal.RequireFromString("92")))
	assert.True(t, got.ConversionRate.Equal(decimal.RequireFromString("0.92")))
	assert.Equal(t, "2024-02-28", got.ExpenseDate.Format("2006-01-02"))
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Nil(t, got.CategoryID)
	assert.False(t, got.HasAIAnalysis())

	view, err := f.expenses.GetView(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Erik", view.OwnerName)
	require.NotNil(t, view.OwnerManagerID)
	assert.Equal(t, f.manager.ID, *view.OwnerManagerID)

	missing, err := f.expenses.GetByID(ctx, 9999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExpenseRepository_UpdateStatusVersionCheck(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	e := f.createExpense(t, f.employee, "Taxi", "20", time.Now())

	require.NoError(t, f.expenses.UpdateStatus(ctx, e.ID, workflow.StatePendingApproval, 0))

	err := f.expenses.UpdateStatus(ctx, e.ID, workflow.StateApproved, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConcurrentModification))

	got, err := f.expenses.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePendingApproval, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestExpenseRepository_Search(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first := f.createExpense(t, f.employee, "Taxi to airport", "92.00", base)
	second := f.createExpense(t, f.employee, "Hotel", "150.00", base.Add(time.Hour))
	other := f.createExpense(t, f.outsider, "Office TAXI", "30.00", base.Add(2*time.Hour))

	tests := []struct {
		name   string
		actor  entity.Actor
		filter query.Filter
		want   []int64
	}{
		{"employee scope", f.employee.Actor(), query.Filter{}, []int64{second.ID, first.ID}},
		{"manager scope", f.manager.Actor(), query.Filter{}, []int64{second.ID, first.ID}},
		{"outsider scope", f.outsider.Actor(), query.Filter{}, []int64{other.ID}},
		{"admin text", entity.Actor{ID: 0, Role: entity.RoleAdmin}, query.Filter{Text: "taxi"}, []int64{other.ID, first.ID}},
		{"admin amount", entity.Actor{ID: 0, Role: entity.RoleAdmin}, query.Filter{AmountMin: decPtr("92.00"), AmountMax: decPtr("150")}, []int64{second.ID, first.ID}},
		{"like wildcard escaped", entity.Actor{ID: 0, Role: entity.RoleAdmin}, query.Filter{Text: "%"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, err := f.expenses.Search(ctx, query.Build(query.Scope{Actor: tt.actor}, tt.filter))
			require.NoError(t, err)
			got := []int64{}
			for _, v := range views {
				got = append(got, v.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpenseRepository_SearchTextNonASCII(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	truck := f.createExpense(t, f.employee, "CAMIÓN ÁVILA", "80.00", base)
	f.createExpense(t, f.employee, "Camion Avila", "20.00", base.Add(time.Hour))
	admin := query.Scope{Actor: entity.Actor{ID: 0, Role: entity.RoleAdmin}}

	for _, text := range []string{"camión ávila", "CAMIÓN", "ávila", "Ión"} {
		t.Run(text, func(t *testing.T) {
			preds := query.Build(admin, query.Filter{Text: text})

			views, err := f.expenses.Search(ctx, preds)
			require.NoError(t, err)
			require.Len(t, views, 1)
			assert.Equal(t, truck.ID, views[0].ID)

			assert.True(t, query.MatchAll(preds, views[0]), "in-memory match must agree with SQL")
		})
	}
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestExpenseRepository_AIAnalysis(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	e := f.createExpense(t, f.employee, "Dinner", "80", time.Now())

	pending, err := f.expenses.ListAwaitingAnalysis(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "drafts are not reviewed")

	require.NoError(t, f.expenses.UpdateStatus(ctx, e.ID, workflow.StatePendingApproval, 0))
	pending, err = f.expenses.ListAwaitingAnalysis(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, f.expenses.SetAIAnalysis(ctx, e.ID, entity.AIAnalysis{Confidence: 0.4, Flagged: true}))
	got, err := f.expenses.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, got.HasAIAnalysis())
	assert.InDelta(t, 0.4, *got.AIConfidence, 1e-9)
	assert.True(t, *got.AIFlagged)

	pending, err = f.expenses.ListAwaitingAnalysis(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAuditRepository_ChronologicalWithActorName(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	e := f.createExpense(t, f.employee, "Taxi", "20", time.Now())
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	later := &entity.AuditEntry{ExpenseID: e.ID, PreviousStatus: workflow.StatePendingApproval, NewStatus: workflow.StateRejected, ChangedAt: at.Add(time.Minute), Comment: "missing receipt", ActorID: f.manager.ID}
	earlier := &entity.AuditEntry{ExpenseID: e.ID, PreviousStatus: workflow.StateDraft, NewStatus: workflow.StatePendingApproval, ChangedAt: at, Comment: entity.CommentSubmitted, ActorID: f.employee.ID}
	require.NoError(t, f.audits.Create(ctx, later))
	require.NoError(t, f.audits.Create(ctx, earlier))

	entries, err := f.audits.ListByExpense(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, workflow.StateDraft, entries[0].PreviousStatus)
	assert.Equal(t, "Erik", entries[0].ActorName)
	assert.Equal(t, "missing receipt", entries[1].Comment)
	assert.Equal(t, "Marta", entries[1].ActorName)
}

func TestDelete_AuditRowsThenExpenseInTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	e := f.createExpense(t, f.employee, "Taxi", "20", time.Now())
	require.NoError(t, f.audits.Create(ctx, &entity.AuditEntry{
		ExpenseID: e.ID, PreviousStatus: workflow.StateDraft, NewStatus: workflow.StatePendingApproval,
		ChangedAt: time.Now(), ActorID: f.employee.ID,
	}))

	// Expense rows are referenced by audit rows, so the order matters.
	_, err := f.expenses.Delete(ctx, e.ID)
	require.Error(t, err)

	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		removed, err := f.audits.DeleteByExpense(txCtx, e.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), removed)
		ok, err := f.expenses.Delete(txCtx, e.ID)
		assert.True(t, ok)
		return err
	})
	require.NoError(t, err)

	got, err := f.expenses.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTxManager_RollbackOnError(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	e := f.createExpense(t, f.employee, "Taxi", "20", time.Now())
	boom := errors.New("boom")

	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NotNil(t, sqlite.TxFromContext(txCtx))
		if err := f.expenses.UpdateStatus(txCtx, e.ID, workflow.StatePendingApproval, 0); err != nil {
			return err
		}
		return f.audits.Create(txCtx, &entity.AuditEntry{
			ExpenseID: e.ID, PreviousStatus: workflow.StateDraft, NewStatus: workflow.StatePendingApproval,
			ChangedAt: time.Now(), ActorID: f.employee.ID,
		})
	})
	require.NoError(t, err)

	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := f.expenses.UpdateStatus(txCtx, e.ID, workflow.StateApproved, 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := f.expenses.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePendingApproval, got.Status)
	entries, err := f.audits.ListByExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUserRepository(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	got, err := f.users.GetByEmail(ctx, "erik@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.RoleEmployee, got.Role)
	assert.True(t, got.Active)

	team, err := f.users.ListByManager(ctx, f.manager.ID)
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, f.employee.ID, team[0].ID)

	got.Active = false
	got.Role = entity.RoleManager
	require.NoError(t, f.users.Update(ctx, got))
	updated, err := f.users.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, entity.RoleManager, updated.Role)

	all, err := f.users.List(ctx)
	require.NoError(t, err)
	names := []string{}
	for _, u := range all {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"Erik", "Marta", "Olga"}, names, "inactive users are listed too")

	missing, err := f.users.GetByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCategoryAndDepartmentRepositories(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	travel, err := f.cats.GetByName(ctx, "Travel")
	require.NoError(t, err)
	require.NotNil(t, travel)

	travel.Active = false
	require.NoError(t, f.cats.Update(ctx, travel))

	active, err := f.cats.List(ctx, true)
	require.NoError(t, err)
	all, err := f.cats.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, len(active)+1)

	require.NoError(t, f.depts.UpdateBudget(ctx, f.dept.ID, decimal.RequireFromString("2500.50"), decimal.NewFromInt(30000)))
	dept, err := f.depts.GetByID(ctx, f.dept.ID)
	require.NoError(t, err)
	assert.True(t, dept.MonthlyBudget.Equal(decimal.RequireFromString("2500.5")))
}
