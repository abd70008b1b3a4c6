package dispatcher

import (
	"sync/atomic"

	"qmgr/interrupts"
)

// LivelockRow - livelock prevention counters of one low group queue
type LivelockRow struct {
	Queue     interrupts.QueueID
	Class     interrupts.LivelockClass
	Enables   uint64
	Disables  uint64
	Enabled   bool
	Callbacks uint64
}

// suppressSporadic disables notification on every sporadic queue and drops
// their bits from the word being dispatched. Only one periodic queue is
// expected, so there is no nesting to track.
func (d *Dispatcher) suppressSporadic(pending *uint32) {
	n := 0
	for q := interrupts.QueueID(0); q < interrupts.MinHighQueue; q++ {
		src := &d.sources[q]
		if src.livelockClass() != interrupts.Sporadic {
			continue
		}
		d.disable(q)
		*pending &^= src.checkMask
		d.stats.queues[q].disables.Add(1)
		n++
	}
	if n > 0 && !d.suppressed.Swap(true) {
		d.log.Info().
			Int("sporadic", n).
			Msg("sporadic notifications suppressed")
	}
}

// PeriodicDone is called by the periodic queue's handler once its work is
// complete. It gives the sporadic queues their notifications back.
func (d *Dispatcher) PeriodicDone() {
	for q := interrupts.QueueID(0); q < interrupts.MinHighQueue; q++ {
		if d.sources[q].livelockClass() != interrupts.Sporadic {
			continue
		}
		d.enable(q)
		d.stats.queues[q].enables.Add(1)
	}
	if d.suppressed.Swap(false) {
		d.log.Info().Msg("sporadic notifications restored")
	}
}

// Suppressed reports whether sporadic queues are currently silenced
func (d *Dispatcher) Suppressed() bool {
	return d.suppressed.Load()
}

// LivelockReport lists the low group queues of class Periodic or Sporadic
// with their livelock counters. With reset set, the enable, disable and
// callback counters of those queues are zeroed after reading.
func (d *Dispatcher) LivelockReport(reset bool) []LivelockRow {
	load := func(v *atomic.Uint64) uint64 {
		if reset {
			return v.Swap(0)
		}
		return v.Load()
	}

	var rows []LivelockRow
	enabled := d.regs.ReadEnabled(interrupts.LowGroup)
	for q := interrupts.QueueID(0); q < interrupts.MinHighQueue; q++ {
		src := &d.sources[q]
		class := src.livelockClass()
		if class == interrupts.Other {
			continue
		}
		c := &d.stats.queues[q]
		row := LivelockRow{
			Queue:     q,
			Class:     class,
			Enabled:   enabled&src.checkMask != 0,
			Enables:   load(&c.enables),
			Disables:  load(&c.disables),
			Callbacks: load(&c.callbacks),
		}
		rows = append(rows, row)
	}
	return rows
}
