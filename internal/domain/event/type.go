package event

// Type identifies the type of domain event
type Type string

const (
	TypeExpenseCreated    Type = "expense.created"
	TypeStatusChanged     Type = "expense.status_changed"
	TypeExpenseDeleted    Type = "expense.deleted"
	TypeReceiptAttached   Type = "expense.receipt_attached"
	TypeAnalysisCompleted Type = "expense.analysis_completed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeExpenseCreated,
		TypeStatusChanged,
		TypeExpenseDeleted,
		TypeReceiptAttached,
		TypeAnalysisCompleted:
		return true
	default:
		return false
	}
}
