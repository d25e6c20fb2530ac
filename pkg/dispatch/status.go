package dispatch

import (
	"context"

	"github.com/porchlist/mailroom/pkg/statemachine"
)

// Scheduled email lifecycle events.
var (
	eventClaim   = statemachine.StringEvent("claim")
	eventSent    = statemachine.StringEvent("mark_sent")
	eventFail    = statemachine.StringEvent("mark_failed")
	eventRequeue = statemachine.StringEvent("requeue")
)

// transitionEvents maps a target status to the event that reaches it.
var transitionEvents = map[ScheduleStatus]statemachine.Event{
	ScheduleClaimed:  eventClaim,
	ScheduleSent:     eventSent,
	ScheduleFailed:   eventFail,
	ScheduleRequeued: eventRequeue,
}

// newScheduleStatusMachine defines the scheduled email lifecycle:
//
//	pending  --claim--> claimed --mark_sent-->   sent
//	requeued --claim--> claimed --mark_failed--> failed
//	                    claimed --requeue-->     requeued
//
// Sent and failed are terminal. Requeued rows become due again and are
// re-claimed on a later run.
func newScheduleStatusMachine(initial ScheduleStatus) (statemachine.StateMachine, error) {
	b := statemachine.NewBuilder(statemachine.StringState(initial))

	transitions := []struct {
		from, to ScheduleStatus
		event    statemachine.Event
	}{
		{SchedulePending, ScheduleClaimed, eventClaim},
		{ScheduleRequeued, ScheduleClaimed, eventClaim},
		{ScheduleClaimed, ScheduleSent, eventSent},
		{ScheduleClaimed, ScheduleFailed, eventFail},
		{ScheduleClaimed, ScheduleRequeued, eventRequeue},
	}

	var err error
	for _, t := range transitions {
		b, err = b.WithTransition(
			statemachine.StringState(t.from),
			statemachine.StringState(t.to),
			t.event,
			nil, nil,
		)
		if err != nil {
			return nil, err
		}
	}

	return b.Build(), nil
}

// CanTransition reports whether a scheduled email row may move from one
// status to another. Storage implementations consult it before writes.
func CanTransition(from, to ScheduleStatus) bool {
	event, ok := transitionEvents[to]
	if !ok {
		return false
	}
	m, err := newScheduleStatusMachine(from)
	if err != nil {
		return false
	}
	return m.CanFire(context.Background(), event, nil)
}
