package entity

// ReferenceCurrency is the currency all expenses are converted into
const ReferenceCurrency = "EUR"

// Audit comments written by the lifecycle engine
const (
	CommentSubmitted = "Expense submitted for approval"
	CommentApproved  = "Expense approved"
)

// Budget alert levels
const (
	AlertLevelWarning  = "WARNING"
	AlertLevelCritical = "CRITICAL"
)
