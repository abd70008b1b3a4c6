package system

import (
	"errors"
	"fmt"
	"sync"

	"qmgr/interrupts"
)

// ErrTraceEmpty is returned by Dequeue on an empty trace
var ErrTraceEmpty = errors.New("trace is empty")

// Event - one callback run of the simulator
type Event struct {
	Step    uint64
	Queue   interrupts.QueueID
	Class   interrupts.LivelockClass
	Drained int
}

func (e Event) String() string {
	return fmt.Sprintf("%8d q%-2d %-8s %3d", e.Step, e.Queue, e.Class, e.Drained)
}

// Trace represents a bounded FIFO of the most recent events. The oldest
// event is dropped when it is full.
type Trace struct {
	mu      sync.Mutex
	items   []Event
	size    int // Current number of elements in the queue
	maxSize int
}

// NewTrace creates a new empty trace
func NewTrace(maxSize int) *Trace {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Trace{maxSize: maxSize}
}

// Enqueue adds an event to the rear of the trace
func (q *Trace) Enqueue(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == q.maxSize {
		_, _ = q.dequeue()
	}
	q.items = append(q.items, e)
	q.size++
}

// Dequeue removes and returns the event from the front of the trace
func (q *Trace) Dequeue() (Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dequeue()
}

func (q *Trace) dequeue() (Event, error) {
	if q.size == 0 {
		return Event{}, ErrTraceEmpty
	}
	front := q.items[0]
	q.items = q.items[1:]
	q.size--
	return front, nil
}

// IsEmpty checks if the trace is empty
func (q *Trace) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size == 0
}

// Recent returns a copy of the events, oldest first
func (q *Trace) Recent() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Event, q.size)
	copy(out, q.items)
	return out
}
