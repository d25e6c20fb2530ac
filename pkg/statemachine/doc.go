// Package statemachine implements a small guarded finite state machine.
//
// The dispatch layer uses it to define the lifecycle of a scheduled email
// row (pending, claimed, sent, failed, requeued) and to validate status
// transitions before storage writes, so an illegal transition is a
// programming error surfaced immediately rather than silent row corruption.
//
// States and events are interfaces with string-based implementations
// (StringState, StringEvent) for the common case:
//
//	b := statemachine.NewBuilder(statemachine.StringState("pending"))
//	b, _ = b.WithTransition(
//	    statemachine.StringState("pending"),
//	    statemachine.StringState("claimed"),
//	    statemachine.StringEvent("claim"),
//	    nil, nil,
//	)
//	m := b.Build()
package statemachine
