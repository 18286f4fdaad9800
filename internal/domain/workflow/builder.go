package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides whether a guarded transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects transition rules and builds machines from them
type StateMachineBuilder interface {
	// Configure returns the rule set for transitions leaving state
	Configure(state State) StateConfiguration

	// Build creates a machine positioned at initialState
	Build(initialState State) StateMachine
}

// StateConfiguration declares the transitions leaving one state
type StateConfiguration interface {
	// Permit allows trigger to move the machine to toState
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows trigger to move the machine to toState when guard passes
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type rule struct {
	toState State
	guard   GuardFunc
}

type rules map[Trigger][]rule

type stateConfig struct {
	fromState State
	rules     rules
}

type stateMachineBuilder struct {
	configurations map[State]*stateConfig
}

type stateMachine struct {
	currentState   State
	configurations map[State]rules
}

// NewBuilder creates an empty state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[State]*stateConfig),
	}
}

// Configure panics on unknown states and on terminal states, which never have
// outgoing transitions.
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if state.IsTerminal() {
		panic(fmt.Sprintf("terminal state cannot have transitions: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{fromState: state, rules: make(rules)}
		b.configurations[state] = config
	}
	return config
}

// Build copies the configured rules so later Configure calls do not leak into
// machines that were already built.
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	configs := make(map[State]rules, len(b.configurations))
	for state, config := range b.configurations {
		copied := make(rules, len(config.rules))
		for trigger, rs := range config.rules {
			copied[trigger] = append([]rule(nil), rs...)
		}
		configs[state] = copied
	}

	return &stateMachine{
		currentState:   initialState,
		configurations: configs,
	}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	c.rules[trigger] = append(c.rules[trigger], rule{toState: toState, guard: guard})
	return c
}

func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire reports whether any rule exists for trigger. Guards are not
// evaluated because no context is available here.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.configurations[m.currentState][trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) (Transition, error) {
	from := m.currentState
	candidates := m.configurations[from][trigger]
	if len(candidates) == 0 {
		return Transition{}, fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, from)
	}

	for _, r := range candidates {
		if r.guard == nil || r.guard(ctx) {
			m.currentState = r.toState
			return Transition{Trigger: trigger, From: from, To: r.toState}, nil
		}
	}

	return Transition{}, fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, from)
}

// PermittedTriggers returns the triggers available from the current state in
// a stable order.
func (m *stateMachine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.configurations[m.currentState]))
	for trigger := range m.configurations[m.currentState] {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
