package dispatcher

import (
	"fmt"

	"qmgr/aqm"
	"qmgr/interrupts"
)

// Dispatch services the pending interrupts of one queue group.
//
// It never fails: interrupts on queues without a callback and interrupts
// recovered by the race scan only show up in the statistics. Dispatch must
// not be called again before it returns.
func (d *Dispatcher) Dispatch(g interrupts.Group) {
	if !g.Valid() {
		panic(fmt.Sprintf("dispatcher: invalid group %d", g))
	}
	if !d.running.CompareAndSwap(false, true) {
		panic("dispatcher: reentrant Dispatch")
	}

	d.dispatch(g)

	if d.dirty.Load() {
		d.rebuild()
	}
	d.stats.loopRuns.Add(1)
	d.running.Store(false)
}

func (d *Dispatcher) dispatch(g interrupts.Group) {
	var before, after aqm.StatusWords

	if !d.caps.RaceTolerant {
		d.regs.ReadStatus(g, &before)
	}

	word := d.regs.ReadPending(g)
	if d.caps.LivelockPrevention {
		// suppressed queues may still have their bit set
		word &= d.regs.ReadEnabled(g)
	}
	if word == 0 {
		return
	}

	// the sticky low group only clears once the condition is serviced
	if d.caps.sticky() && g == interrupts.LowGroup {
		defer d.regs.ClearPending(g, word)
	} else {
		d.regs.ClearPending(g, word)
	}

	if !d.caps.RaceTolerant {
		d.regs.ReadStatus(g, &after)
		if aqm.StatusChanged(g, &before, &after) {
			d.dispatchRace(g, word, &before, &after)
			return
		}
	}

	q := interrupts.FirstQueue(g, word)
	if !q.Valid() || q.Group() != g {
		panic(fmt.Sprintf("dispatcher: resolved queue %d outside group %s", q, g))
	}

	// a single queue fired
	if word == d.sources[q].checkMask {
		d.invoke(q, &word)
		return
	}

	d.dispatchMulti(g, word)
}

// dispatchMulti walks the priority table until every pending bit has been
// serviced.
func (d *Dispatcher) dispatchMulti(g interrupts.Group, word uint32) {
	d.stats.tableWalks.Add(1)

	_, end := groupRange(g)
	for i := d.table.walkStart(g, word); word != 0; i++ {
		if i >= end {
			panic(fmt.Sprintf("dispatcher: pending bits 0x%08x not in %s priority table", word, g))
		}
		q := d.table.ids[i]
		m := d.sources[q].checkMask
		if word&m == 0 {
			continue
		}
		d.invoke(q, &word)
		word &^= m
	}
}

// dispatchRace handles a status change during the interrupt register
// read and write-back. The pending word may not tell the whole story, so
// every queue of the group is checked, and a queue whose trigger condition
// became true without its bit being set is called as a lost interrupt.
func (d *Dispatcher) dispatchRace(g interrupts.Group, word uint32, before, after *aqm.StatusWords) {
	d.stats.tableWalks.Add(1)

	afterWrite := d.regs.ReadPending(g)

	lo, hi := groupRange(g)
	for i := lo; i < hi; i++ {
		q := d.table.ids[i]
		src := &d.sources[q]
		m := src.checkMask

		if word&m != 0 {
			d.invoke(q, &word)
			continue
		}

		// already pending again, the next dispatch gets it
		if afterWrite&m != 0 {
			continue
		}
		if !src.enabled.Load() {
			continue
		}

		d.mu.Lock()
		t := src.trigger
		d.mu.Unlock()

		if aqm.StatusCheck(before, after, t.offset, t.value, t.mask) {
			d.invoke(q, &word)
			d.stats.queues[q].lost.Add(1)
			d.log.Debug().
				Int("queue", int(q)).
				Msg("lost interrupt recovered")
		}
	}
}

// invoke runs the livelock guard and then the queue callback. The guard
// may clear bits of queues it silenced from pending.
func (d *Dispatcher) invoke(q interrupts.QueueID, pending *uint32) {
	if d.caps.LivelockPrevention && q.Group() == interrupts.LowGroup &&
		d.sources[q].livelockClass() == interrupts.Periodic {
		d.suppressSporadic(pending)
	}
	d.call(q)
}

func (d *Dispatcher) call(q interrupts.QueueID) {
	h := d.sources[q].handler.Load()
	if h == nil || h.cb == nil {
		d.unclaimedCallback(q, h)
	} else {
		h.cb(q, h.tag)
	}
	d.stats.queues[q].callbacks.Add(1)
}

// unclaimedCallback stands in for queues without a callback
func (d *Dispatcher) unclaimedCallback(q interrupts.QueueID, h *handler) {
	n := d.sources[q].unclaimed.Add(1) - 1
	if n%d.unclaimedLogEvery == 0 {
		var tag CallbackTag
		if h != nil {
			tag = h.tag
		}
		d.log.Warn().
			Int("queue", int(q)).
			Interface("tag", tag).
			Uint64("count", n+1).
			Msg("interrupt on queue without callback")
	}
	d.stats.queues[q].unclaimed.Add(1)
}
