// Package query turns optional search criteria into an ordered list of
// predicates. Each predicate can be evaluated against an in-memory expense
// view or rendered as a SQL fragment over the aliases
//
//	expenses e JOIN users u ON u.id = e.owner_id
//
// The list is a conjunction; absent criteria produce no predicate.
package query

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// DateLayout is the storage and query format for calendar dates
const DateLayout = "2006-01-02"

// Filter holds optional search criteria. Nil pointers and empty strings are absent.
type Filter struct {
	Status       *workflow.State  `json:"status,omitempty"`
	OwnerID      *int64           `json:"owner_id,omitempty"`
	DepartmentID *int64           `json:"department_id,omitempty"`
	CategoryID   *int64           `json:"category_id,omitempty"`
	DateFrom     *time.Time       `json:"date_from,omitempty"`
	DateTo       *time.Time       `json:"date_to,omitempty"`
	AmountMin    *decimal.Decimal `json:"amount_min,omitempty"`
	AmountMax    *decimal.Decimal `json:"amount_max,omitempty"`
	Text         string           `json:"text,omitempty"`
}

// Scope restricts results to what the caller may see
type Scope struct {
	Actor entity.Actor
}

// Build returns the scope predicate followed by one predicate per present criterion
func Build(scope Scope, f Filter) []Predicate {
	preds := []Predicate{ScopePredicate(scope.Actor)}

	if f.Status != nil {
		preds = append(preds, StatusIs(*f.Status))
	}
	if f.OwnerID != nil {
		preds = append(preds, OwnedBy(*f.OwnerID))
	}
	if f.DepartmentID != nil {
		preds = append(preds, InDepartment(*f.DepartmentID))
	}
	if f.CategoryID != nil {
		preds = append(preds, InCategory(*f.CategoryID))
	}
	if f.DateFrom != nil {
		preds = append(preds, DateOnOrAfter(*f.DateFrom))
	}
	if f.DateTo != nil {
		preds = append(preds, DateOnOrBefore(*f.DateTo))
	}
	if f.AmountMin != nil {
		preds = append(preds, AmountAtLeast(*f.AmountMin))
	}
	if f.AmountMax != nil {
		preds = append(preds, AmountAtMost(*f.AmountMax))
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		preds = append(preds, DescriptionContains(text))
	}

	return preds
}
