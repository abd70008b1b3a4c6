package dispatcher

import (
	"qmgr/interrupts"
)

// priority table limits
const (
	lowTableMin  = 0
	lowTableMid  = 16
	lowTableEnd  = 32
	highTableMin = 32
	highTableMid = 48
	highTableEnd = 64
)

// priorityTable lists the queue ids ordered by priority, the low group in
// [0,32) and the high group in [32,64). The first half masks hold the check
// masks of the queues in [0,16) and [32,48), so a multi bit dispatch can
// skip the first half when none of its queues fired.
type priorityTable struct {
	ids               [interrupts.NumQueues]interrupts.QueueID
	lowFirstHalfMask  uint32
	highFirstHalfMask uint32
}

// buildPriorityTable orders the queues of each group by priority, queue id
// breaking ties.
func buildPriorityTable(prio *[interrupts.NumQueues]interrupts.Priority) priorityTable {
	var t priorityTable
	low, high := lowTableMin, highTableMin

	for p := interrupts.Priority0; p < interrupts.NumPriorities; p++ {
		for q := interrupts.QueueID(0); q < interrupts.MinHighQueue; q++ {
			if prio[q] != p {
				continue
			}
			if low < lowTableMid {
				t.lowFirstHalfMask |= q.CheckMask()
			}
			t.ids[low] = q
			low++
		}
		for q := interrupts.MinHighQueue; q <= interrupts.MaxQueue; q++ {
			if prio[q] != p {
				continue
			}
			if high < highTableMid {
				t.highFirstHalfMask |= q.CheckMask()
			}
			t.ids[high] = q
			high++
		}
	}

	if low != lowTableEnd || high != highTableEnd {
		panic("dispatcher: priority table incomplete")
	}
	return t
}

// rebuild re-linearises the priority table from the current priorities
func (d *Dispatcher) rebuild() {
	var prio [interrupts.NumQueues]interrupts.Priority

	d.mu.Lock()
	d.dirty.Store(false)
	for i := range d.sources {
		prio[i] = d.sources[i].priority
	}
	d.mu.Unlock()

	d.table = buildPriorityTable(&prio)

	d.log.Debug().
		Uint32("low_first_half", d.table.lowFirstHalfMask).
		Uint32("high_first_half", d.table.highFirstHalfMask).
		Msg("priority table rebuilt")
}

// groupRange returns the priority table range of a group
func groupRange(g interrupts.Group) (lo, hi int) {
	if g == interrupts.HighGroup {
		return highTableMin, highTableEnd
	}
	return lowTableMin, lowTableEnd
}

// walkStart picks where a multi bit dispatch starts scanning
func (t *priorityTable) walkStart(g interrupts.Group, word uint32) int {
	if g == interrupts.HighGroup {
		if word&t.highFirstHalfMask != 0 {
			return highTableMin
		}
		return highTableMid
	}
	if word&t.lowFirstHalfMask != 0 {
		return lowTableMin
	}
	return lowTableMid
}

// PriorityTable returns the current dispatch order and the first half
// masks of both groups. Not safe to call while Dispatch runs.
func (d *Dispatcher) PriorityTable() (ids [interrupts.NumQueues]interrupts.QueueID, lowFirstHalf, highFirstHalf uint32) {
	return d.table.ids, d.table.lowFirstHalfMask, d.table.highFirstHalfMask
}
