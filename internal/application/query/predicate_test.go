package query

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

func ptr[T any](v T) *T { return &v }

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// Two teams: manager 10 manages employees 1 and 2, manager 20 manages 3.
func fixtures() []entity.ExpenseView {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mk := func(id, owner int64, mgr int64, status workflow.State, amount, desc, date string, cat *int64) entity.ExpenseView {
		return entity.ExpenseView{
			Expense: entity.Expense{
				ID:              id,
				OwnerID:         owner,
				DepartmentID:    owner % 2,
				CategoryID:      cat,
				Status:          status,
				Description:     desc,
				ReferenceAmount: decimal.RequireFromString(amount),
				ExpenseDate:     day(date),
				CreatedAt:       base.Add(time.Duration(id) * time.Hour),
			},
			OwnerManagerID: ptr(mgr),
		}
	}
	return []entity.ExpenseView{
		mk(1, 1, 10, workflow.StateDraft, "92.00", "Taxi to airport", "2024-02-01", ptr(int64(5))),
		mk(2, 1, 10, workflow.StatePendingApproval, "150.00", "Hotel Berlin", "2024-02-10", nil),
		mk(3, 2, 10, workflow.StateApproved, "40.50", "Team lunch", "2024-02-15", ptr(int64(5))),
		mk(4, 3, 20, workflow.StateRejected, "999.99", "TAXI night ride", "2024-03-01", nil),
	}
}

func ids(views []entity.ExpenseView) []int64 {
	out := make([]int64, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestApply_ScopeIsolation(t *testing.T) {
	tests := []struct {
		name  string
		actor entity.Actor
		want  []int64
	}{
		{"employee sees own", entity.Actor{ID: 1, Role: entity.RoleEmployee}, []int64{2, 1}},
		{"manager sees team", entity.Actor{ID: 10, Role: entity.RoleManager}, []int64{3, 2, 1}},
		{"other manager sees own team", entity.Actor{ID: 20, Role: entity.RoleManager}, []int64{4}},
		{"admin sees all", entity.Actor{ID: 99, Role: entity.RoleAdmin}, []int64{4, 3, 2, 1}},
		{"unknown role sees nothing", entity.Actor{ID: 1, Role: "GUEST"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(Build(Scope{Actor: tt.actor}, Filter{}), fixtures())
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApply_Criteria(t *testing.T) {
	admin := Scope{Actor: entity.Actor{ID: 99, Role: entity.RoleAdmin}}

	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"status", Filter{Status: ptr(workflow.StatePendingApproval)}, []int64{2}},
		{"owner", Filter{OwnerID: ptr(int64(1))}, []int64{2, 1}},
		{"department", Filter{DepartmentID: ptr(int64(0))}, []int64{3}},
		{"category", Filter{CategoryID: ptr(int64(5))}, []int64{3, 1}},
		{"date range inclusive", Filter{DateFrom: ptr(day("2024-02-10")), DateTo: ptr(day("2024-02-15"))}, []int64{3, 2}},
		{"amount min inclusive", Filter{AmountMin: ptr(decimal.RequireFromString("150"))}, []int64{4, 2}},
		{"amount range", Filter{AmountMin: ptr(decimal.RequireFromString("40")), AmountMax: ptr(decimal.RequireFromString("92.00"))}, []int64{3, 1}},
		{"text case insensitive", Filter{Text: "taxi"}, []int64{4, 1}},
		{"blank text ignored", Filter{Text: "   "}, []int64{4, 3, 2, 1}},
		{"combined", Filter{Text: "taxi", Status: ptr(workflow.StateDraft)}, []int64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(Build(admin, tt.filter), fixtures())
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestBuild_ScopeFirstAndAbsentSkipped(t *testing.T) {
	scope := Scope{Actor: entity.Actor{ID: 1, Role: entity.RoleEmployee}}

	preds := Build(scope, Filter{})
	require.Len(t, preds, 1)
	sql, args := preds[0].SQL()
	assert.Equal(t, "e.owner_id = ?", sql)
	assert.Equal(t, []interface{}{int64(1)}, args)

	preds = Build(scope, Filter{Status: ptr(workflow.StateDraft), Text: "Taxi"})
	require.Len(t, preds, 3)
}

func TestWhere_RendersConjunction(t *testing.T) {
	scope := Scope{Actor: entity.Actor{ID: 10, Role: entity.RoleManager}}
	filter := Filter{
		Status:    ptr(workflow.StateApproved),
		DateFrom:  ptr(day("2024-01-01")),
		AmountMax: ptr(decimal.RequireFromString("100.50")),
		Text:      "50%_off",
	}

	sql, args := Where(Build(scope, filter))

	assert.Equal(t,
		`(u.manager_id = ?) AND (e.status = ?) AND (e.expense_date >= ?) AND (CAST(e.reference_amount AS REAL) <= ?) AND (unicode_lower(e.description) LIKE ? ESCAPE '\')`,
		sql)
	assert.Equal(t, []interface{}{int64(10), "APPROVED", "2024-01-01", 100.5, `%50\%\_off%`}, args)
}

func TestAnd_EmptyMatchesEverything(t *testing.T) {
	p := And()
	sql, args := p.SQL()
	assert.Equal(t, "1 = 1", sql)
	assert.Empty(t, args)

	v := fixtures()[0]
	assert.True(t, p.Match(&v))
}
