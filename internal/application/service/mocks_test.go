package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/application/query"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type mockValidator struct {
	validateFunc func(v interface{}) error
}

func (m *mockValidator) Validate(v interface{}) error {
	if m.validateFunc != nil {
		return m.validateFunc(v)
	}
	return nil
}

type mockAuditRepo struct {
	entries    []*entity.AuditEntry
	createFunc func(ctx context.Context, entry *entity.AuditEntry) error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *entity.AuditEntry) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, entry)
	}
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByExpense(ctx context.Context, expenseID int64) ([]*entity.AuditEntryView, error) {
	var out []*entity.AuditEntryView
	for _, e := range m.entries {
		if e.ExpenseID == expenseID {
			out = append(out, &entity.AuditEntryView{AuditEntry: *e})
		}
	}
	return out, nil
}

func (m *mockAuditRepo) DeleteByExpense(ctx context.Context, expenseID int64) (int64, error) {
	return 0, nil
}

type mockCategoryRepo struct {
	categories map[int64]*entity.Category
	nextID     int64
}

func newMockCategoryRepo(cats ...*entity.Category) *mockCategoryRepo {
	m := &mockCategoryRepo{categories: make(map[int64]*entity.Category)}
	for _, c := range cats {
		m.nextID++
		c.ID = m.nextID
		m.categories[c.ID] = c
	}
	return m
}

func (m *mockCategoryRepo) Create(ctx context.Context, category *entity.Category) error {
	m.nextID++
	category.ID = m.nextID
	copied := *category
	m.categories[category.ID] = &copied
	return nil
}

func (m *mockCategoryRepo) GetByID(ctx context.Context, id int64) (*entity.Category, error) {
	if c, ok := m.categories[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (m *mockCategoryRepo) GetByName(ctx context.Context, name string) (*entity.Category, error) {
	for _, c := range m.categories {
		if c.Name == name {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockCategoryRepo) List(ctx context.Context, activeOnly bool) ([]*entity.Category, error) {
	var out []*entity.Category
	for id := int64(1); id <= m.nextID; id++ {
		c, ok := m.categories[id]
		if ok && (!activeOnly || c.Active) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCategoryRepo) Update(ctx context.Context, category *entity.Category) error {
	copied := *category
	m.categories[category.ID] = &copied
	return nil
}

type mockDepartmentRepo struct {
	depts   []*entity.Department
	listErr error
}

func (m *mockDepartmentRepo) Create(ctx context.Context, dept *entity.Department) error {
	dept.ID = int64(len(m.depts) + 1)
	m.depts = append(m.depts, dept)
	return nil
}

func (m *mockDepartmentRepo) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	for _, d := range m.depts {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

func (m *mockDepartmentRepo) List(ctx context.Context) ([]*entity.Department, error) {
	return m.depts, m.listErr
}

func (m *mockDepartmentRepo) UpdateBudget(ctx context.Context, id int64, monthly, annual decimal.Decimal) error {
	for _, d := range m.depts {
		if d.ID == id {
			d.MonthlyBudget, d.AnnualBudget = monthly, annual
			return nil
		}
	}
	return fmt.Errorf("department %d missing", id)
}

type mockUserRepo struct {
	users []*entity.User
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error {
	user.ID = int64(len(m.users) + 1)
	m.users = append(m.users, user)
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) ListByManager(ctx context.Context, managerID int64) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range m.users {
		if u.ManagerID != nil && *u.ManagerID == managerID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]*entity.User, error) {
	return append([]*entity.User(nil), m.users...), nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *entity.User) error {
	for i, u := range m.users {
		if u.ID == user.ID {
			copied := *user
			m.users[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("user %d missing", user.ID)
}

// mockExpenseRepo only supports Search, evaluated with the in-memory predicates.
type mockExpenseRepo struct {
	views []entity.ExpenseView
}

func (m *mockExpenseRepo) Search(ctx context.Context, preds []query.Predicate) ([]*entity.ExpenseView, error) {
	matched := query.Apply(preds, m.views)
	out := make([]*entity.ExpenseView, 0, len(matched))
	for i := range matched {
		out = append(out, &matched[i])
	}
	return out, nil
}

func (m *mockExpenseRepo) Create(ctx context.Context, expense *entity.Expense) error { return nil }

func (m *mockExpenseRepo) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	return nil, nil
}

func (m *mockExpenseRepo) GetView(ctx context.Context, id int64) (*entity.ExpenseView, error) {
	return nil, nil
}

func (m *mockExpenseRepo) UpdateStatus(ctx context.Context, id int64, status workflow.State, expectedVersion int64) error {
	return nil
}

func (m *mockExpenseRepo) SetReceipt(ctx context.Context, id int64, receiptRef string) error {
	return nil
}

func (m *mockExpenseRepo) SetAIAnalysis(ctx context.Context, id int64, analysis entity.AIAnalysis) error {
	return nil
}

func (m *mockExpenseRepo) ListAwaitingAnalysis(ctx context.Context, limit int) ([]*entity.Expense, error) {
	return nil, nil
}

func (m *mockExpenseRepo) Delete(ctx context.Context, id int64) (bool, error) { return false, nil }
