package query

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// Predicate is one search condition
type Predicate interface {
	// Match evaluates the condition against an in-memory view
	Match(v *entity.ExpenseView) bool

	// SQL renders the condition as a WHERE fragment with positional args
	SQL() (string, []interface{})
}

type predicate struct {
	match func(v *entity.ExpenseView) bool
	sql   string
	args  []interface{}
}

func (p predicate) Match(v *entity.ExpenseView) bool { return p.match(v) }

func (p predicate) SQL() (string, []interface{}) { return p.sql, p.args }

// ScopePredicate limits results by role: employees see their own expenses,
// managers see their direct reports' expenses and admins see everything.
func ScopePredicate(actor entity.Actor) Predicate {
	switch actor.Role {
	case entity.RoleAdmin:
		return predicate{
			match: func(*entity.ExpenseView) bool { return true },
			sql:   "1 = 1",
		}
	case entity.RoleManager:
		return ReportsTo(actor.ID)
	case entity.RoleEmployee:
		return OwnedBy(actor.ID)
	default:
		return predicate{
			match: func(*entity.ExpenseView) bool { return false },
			sql:   "1 = 0",
		}
	}
}

// ReportsTo matches expenses whose owner's direct manager is managerID
func ReportsTo(managerID int64) Predicate {
	return predicate{
		match: func(v *entity.ExpenseView) bool {
			return v.OwnerManagerID != nil && *v.OwnerManagerID == managerID
		},
		sql:  "u.manager_id = ?",
		args: []interface{}{managerID},
	}
}

// StatusIs matches expenses in status
func StatusIs(status workflow.State) Predicate {
	return predicate{
		match: func(v *entity.ExpenseView) bool { return v.Status == status },
		sql:   "e.status = ?",
		args:  []interface{}{string(status)},
	}
}

// OwnedBy matches expenses owned by userID
func OwnedBy(userID int64) Predicate {
	return predicate{
		match: func(v *entity.ExpenseView) bool { return v.OwnerID == userID },
		sql:   "e.owner_id = ?",
		args:  []interface{}{userID},
	}
}

// InDepartment matches expenses charged to departmentID
func InDepartment(departmentID int64) Predicate {
	return predicate{
		match: func(v *entity.ExpenseView) bool { return v.DepartmentID == departmentID },
		sql:   "e.department_id = ?",
		args:  []interface{}{departmentID},
	}
}

// InCategory matches expenses classified under categoryID
func InCategory(categoryID int64) Predicate {
	return predicate{
		match: func(v *entity.ExpenseView) bool {
			return v.CategoryID != nil && *v.CategoryID == categoryID
		},
		sql:  "e.category_id = ?",
		args: []interface{}{categoryID},
	}
}

// DateOnOrAfter matches expenses dated on or after from (inclusive, date only)
func DateOnOrAfter(from time.Time) Predicate {
	day := from.Format(DateLayout)
	return predicate{
		match: func(v *entity.ExpenseView) bool { return v.ExpenseDate.Format(DateLayout) >= day },
		sql:   "e.expense_date >= ?",
		args:  []interface{}{day},
	}
}

// DateOnOrBefore matches expenses dated on or before to (inclusive, date only)
func DateOnOrBefore(to time.Time) Predicate {
	day := to.Format(DateLayout)
	return predicate{
		match: func(v *entity.ExpenseView) bool { return v.ExpenseDate.Format(DateLayout) <= day },
		sql:   "e.expense_date <= ?",
		args:  []interface{}{day},
	}
}

// AmountAtLeast matches expenses whose reference amount is >= min
func AmountAtLeast(min decimal.Decimal) Predicate {
	f, _ := min.Float64()
	return predicate{
		match: func(v *entity.ExpenseView) bool { return v.ReferenceAmount.GreaterThanOrEqual(min) },
		sql:   "CAST(e.reference_amount AS REAL) >= ?",
		args:  []interface{}{f},
	}
}

// AmountAtMost matches expenses whose reference amount is <= max
func AmountAtMost(max decimal.Decimal) Predicate {
	f, _ := max.Float64()
	return predicate{
		match: func(v *entity.ExpenseView) bool { return v.ReferenceAmount.LessThanOrEqual(max) },
		sql:   "CAST(e.reference_amount AS REAL) <= ?",
		args:  []interface{}{f},
	}
}

// DescriptionContains matches a case-insensitive substring of the description.
// The SQL form relies on unicode_lower, registered by pkg/database.
func DescriptionContains(text string) Predicate {
	needle := strings.ToLower(text)
	return predicate{
		match: func(v *entity.ExpenseView) bool {
			return strings.Contains(strings.ToLower(v.Description), needle)
		},
		sql:  `unicode_lower(e.description) LIKE ? ESCAPE '\'`,
		args: []interface{}{"%" + escapeLike(needle) + "%"},
	}
}

// And combines predicates; an empty list matches everything
func And(preds ...Predicate) Predicate {
	return predicate{
		match: func(v *entity.ExpenseView) bool { return MatchAll(preds, v) },
		sql:   whereSQL(preds),
		args:  whereArgs(preds),
	}
}

// MatchAll reports whether v satisfies every predicate
func MatchAll(preds []Predicate, v *entity.ExpenseView) bool {
	for _, p := range preds {
		if !p.Match(v) {
			return false
		}
	}
	return true
}

// Where renders the conjunction as a WHERE clause body with its args
func Where(preds []Predicate) (string, []interface{}) {
	return whereSQL(preds), whereArgs(preds)
}

// Apply filters views in memory and sorts them newest first
func Apply(preds []Predicate, views []entity.ExpenseView) []entity.ExpenseView {
	out := make([]entity.ExpenseView, 0, len(views))
	for i := range views {
		if MatchAll(preds, &views[i]) {
			out = append(out, views[i])
		}
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders by creation time descending, then id descending.
// It matches the ORDER BY used by the SQL repository.
func SortNewestFirst(views []entity.ExpenseView) {
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.After(views[j].CreatedAt)
		}
		return views[i].ID > views[j].ID
	})
}

// OrderBy is the SQL ordering matching SortNewestFirst
const OrderBy = "e.created_at DESC, e.id DESC"

func whereSQL(preds []Predicate) string {
	if len(preds) == 0 {
		return "1 = 1"
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		sql, _ := p.SQL()
		parts = append(parts, "("+sql+")")
	}
	return strings.Join(parts, " AND ")
}

func whereArgs(preds []Predicate) []interface{} {
	var args []interface{}
	for _, p := range preds {
		_, a := p.SQL()
		args = append(args, a...)
	}
	return args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
