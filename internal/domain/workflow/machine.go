package workflow

import "context"

// Transition records a single state change produced by Fire
type Transition struct {
	Trigger Trigger
	From    State
	To      State
}

// StateMachine tracks the current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger and returns the transition that took place
	Fire(ctx context.Context, trigger Trigger) (Transition, error)

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger
}
