package system

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qmgr/interrupts"
)

func TestTrace(t *testing.T) {
	q := NewTrace(3)
	assert.True(t, q.IsEmpty())

	_, err := q.Dequeue()
	assert.True(t, errors.Is(err, ErrTraceEmpty))

	for i := 1; i <= 5; i++ {
		q.Enqueue(Event{Step: uint64(i), Queue: interrupts.QueueID(i)})
	}
	recent := q.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, uint64(3), recent[0].Step)
	assert.Equal(t, uint64(5), recent[2].Step)

	e, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, interrupts.QueueID(3), e.Queue)
	assert.Len(t, q.Recent(), 2)
	assert.False(t, q.IsEmpty())
}

func TestEvent_String(t *testing.T) {
	e := Event{Step: 12, Queue: 4, Class: interrupts.Periodic, Drained: 7}
	assert.Equal(t, "      12 q4  Periodic   7", e.String())
}
