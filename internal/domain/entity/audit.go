package entity

import (
	"time"

	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// AuditEntry is an immutable record of one expense status change
type AuditEntry struct {
	ID             int64          `json:"id"`
	ExpenseID      int64          `json:"expense_id"`
	PreviousStatus workflow.State `json:"previous_status"`
	NewStatus      workflow.State `json:"new_status"`
	ChangedAt      time.Time      `json:"changed_at"`
	Comment        string         `json:"comment"`
	ActorID        int64          `json:"actor_id"`
}

// AuditEntryView adds the acting user's display name
type AuditEntryView struct {
	AuditEntry
	ActorName string `json:"actor_name"`
}
