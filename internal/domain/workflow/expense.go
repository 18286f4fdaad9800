package workflow

// NewExpenseStateMachine builds the expense lifecycle machine positioned at current.
//
// DRAFT may be submitted, or decided directly by a reviewer. PENDING_APPROVAL
// may only be decided. APPROVED and REJECTED are terminal.
func NewExpenseStateMachine(current State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateDraft).
		Permit(TriggerSubmit, StatePendingApproval).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	builder.Configure(StatePendingApproval).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	return builder.Build(current)
}
