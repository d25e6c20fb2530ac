package statemachine

// Builder provides a fluent API for building state machines.
type Builder struct {
	machine *SimpleStateMachine
}

// NewBuilder creates a new state machine builder.
func NewBuilder(initialState State) *Builder {
	return &Builder{
		machine: NewSimpleStateMachine(initialState),
	}
}

// WithTransition adds a single transition with an optional guard and action.
func (b *Builder) WithTransition(from, to State, event Event, guard Guard, action Action) (*Builder, error) {
	var guards []Guard
	var actions []Action

	if guard != nil {
		guards = append(guards, guard)
	}

	if action != nil {
		actions = append(actions, action)
	}

	if err := b.machine.AddTransition(from, to, event, guards, actions); err != nil {
		return b, err
	}

	return b, nil
}

// Build returns the constructed state machine.
func (b *Builder) Build() StateMachine {
	return b.machine
}
