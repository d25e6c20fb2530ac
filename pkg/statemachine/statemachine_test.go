package statemachine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porchlist/mailroom/pkg/statemachine"
)

var (
	statePending = statemachine.StringState("pending")
	stateClaimed = statemachine.StringState("claimed")
	stateSent    = statemachine.StringState("sent")

	eventClaim = statemachine.StringEvent("claim")
	eventSend  = statemachine.StringEvent("send")
)

func buildMachine(t *testing.T) statemachine.StateMachine {
	t.Helper()

	b := statemachine.NewBuilder(statePending)
	b, err := b.WithTransition(statePending, stateClaimed, eventClaim, nil, nil)
	require.NoError(t, err)
	b, err = b.WithTransition(stateClaimed, stateSent, eventSend, nil, nil)
	require.NoError(t, err)
	return b.Build()
}

func TestSimpleStateMachine_Fire(t *testing.T) {
	t.Parallel()

	t.Run("follows defined transitions", func(t *testing.T) {
		t.Parallel()

		m := buildMachine(t)
		ctx := context.Background()

		require.NoError(t, m.Fire(ctx, eventClaim, nil))
		assert.Equal(t, "claimed", m.Current().Name())

		require.NoError(t, m.Fire(ctx, eventSend, nil))
		assert.Equal(t, "sent", m.Current().Name())
	})

	t.Run("rejects undefined transition", func(t *testing.T) {
		t.Parallel()

		m := buildMachine(t)
		err := m.Fire(context.Background(), eventSend, nil)
		assert.True(t, statemachine.IsNoTransitionAvailableError(err))
		assert.Equal(t, "pending", m.Current().Name())
	})

	t.Run("nil event", func(t *testing.T) {
		t.Parallel()

		m := buildMachine(t)
		assert.ErrorIs(t, m.Fire(context.Background(), nil, nil), statemachine.ErrInvalidEvent)
	})
}

func TestSimpleStateMachine_Guards(t *testing.T) {
	t.Parallel()

	allow := false
	guard := func(ctx context.Context, from statemachine.State, event statemachine.Event, data any) bool {
		return allow
	}

	b := statemachine.NewBuilder(statePending)
	b, err := b.WithTransition(statePending, stateClaimed, eventClaim, guard, nil)
	require.NoError(t, err)
	m := b.Build()

	assert.False(t, m.CanFire(context.Background(), eventClaim, nil))
	err = m.Fire(context.Background(), eventClaim, nil)
	assert.True(t, statemachine.IsTransitionRejectedError(err))

	allow = true
	assert.True(t, m.CanFire(context.Background(), eventClaim, nil))
	require.NoError(t, m.Fire(context.Background(), eventClaim, nil))
	assert.Equal(t, "claimed", m.Current().Name())
}

func TestSimpleStateMachine_Actions(t *testing.T) {
	t.Parallel()

	t.Run("action failure aborts transition", func(t *testing.T) {
		t.Parallel()

		actionErr := errors.New("boom")
		action := func(ctx context.Context, from, to statemachine.State, event statemachine.Event, data any) error {
			return actionErr
		}

		b := statemachine.NewBuilder(statePending)
		b, err := b.WithTransition(statePending, stateClaimed, eventClaim, nil, action)
		require.NoError(t, err)
		m := b.Build()

		err = m.Fire(context.Background(), eventClaim, nil)
		assert.ErrorIs(t, err, actionErr)
		assert.Equal(t, "pending", m.Current().Name())
	})
}

func TestSimpleStateMachine_Reset(t *testing.T) {
	t.Parallel()

	m := buildMachine(t)
	require.NoError(t, m.Fire(context.Background(), eventClaim, nil))
	require.NoError(t, m.Reset())
	assert.Equal(t, "pending", m.Current().Name())
}
