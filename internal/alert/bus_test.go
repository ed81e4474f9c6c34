package alert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFansOutByKind(t *testing.T) {
	bus := NewInMemoryBus()

	var deadLetters, sweeps []Alert
	bus.Subscribe(KindDeadLetter, func(_ context.Context, a Alert) {
		deadLetters = append(deadLetters, a)
	})
	bus.Subscribe(KindDeadLetter, func(_ context.Context, a Alert) {
		deadLetters = append(deadLetters, a)
	})
	bus.Subscribe(KindSweepFailure, func(_ context.Context, a Alert) {
		sweeps = append(sweeps, a)
	})

	bus.Publish(context.Background(), Alert{Kind: KindDeadLetter, JobID: "job-1"})

	require.Len(t, deadLetters, 2)
	assert.Empty(t, sweeps)
	assert.False(t, deadLetters[0].RaisedAt.IsZero())
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus()

	var delivered bool
	bus.Subscribe(KindSweepFailure, func(_ context.Context, _ Alert) {
		panic("bad handler")
	})
	bus.Subscribe(KindSweepFailure, func(_ context.Context, _ Alert) {
		delivered = true
	})

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Alert{Kind: KindSweepFailure, Message: "boom"})
	})
	assert.True(t, delivered)
}
