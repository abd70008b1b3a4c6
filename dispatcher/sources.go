package dispatcher

import (
	"sync/atomic"

	"qmgr/aqm"
	"qmgr/interrupts"
)

// CallbackTag is handed back unchanged to the callback
type CallbackTag = any

// Callback is invoked for every notification of a queue
type Callback func(id interrupts.QueueID, tag CallbackTag)

// handler is swapped as a whole so dispatch never sees a callback with the
// wrong tag
type handler struct {
	cb  Callback
	tag CallbackTag
}

// source is the per queue notification state
type source struct {
	handler atomic.Pointer[handler]

	// guarded by Dispatcher.mu
	priority interrupts.Priority
	trigger  trigger

	checkMask uint32
	class     atomic.Int32
	enabled   atomic.Bool

	// calls of the unclaimed callback since the last SetCallback(nil)
	unclaimed atomic.Uint64
}

// trigger locates the queue's interrupt condition in the status words.
// Only meaningful while notification is enabled.
type trigger struct {
	offset int
	value  uint32
	mask   uint32
}

// unclaimedHandler is installed until a callback is registered
var unclaimedHandler = &handler{}

func (s *source) reset(id interrupts.QueueID) {
	s.handler.Store(unclaimedHandler)
	s.priority = interrupts.Priority2
	s.trigger = trigger{}
	s.checkMask = id.CheckMask()
	s.class.Store(int32(interrupts.Other))
	s.enabled.Store(false)
	s.unclaimed.Store(0)
}

func (s *source) livelockClass() interrupts.LivelockClass {
	return interrupts.LivelockClass(s.class.Load())
}

// SetPriority changes the dispatch priority of a queue. The priority table
// is rebuilt at the end of the next dispatch.
func (d *Dispatcher) SetPriority(id interrupts.QueueID, p interrupts.Priority) error {
	if err := d.checkQueue(id); err != nil {
		return err
	}
	if !p.Valid() {
		return queueError(id, ErrInvalidPriority)
	}

	d.mu.Lock()
	d.sources[id].priority = p
	d.dirty.Store(true)
	d.mu.Unlock()

	d.stats.queues[id].priorityChanges.Add(1)
	return nil
}

// SetCallback installs the notification callback of a queue. A nil
// callback restores the default one, which only counts and logs.
func (d *Dispatcher) SetCallback(id interrupts.QueueID, cb Callback, tag CallbackTag) error {
	if err := d.checkQueue(id); err != nil {
		return err
	}
	src := &d.sources[id]
	if cb == nil {
		src.handler.Store(unclaimedHandler)
		src.unclaimed.Store(0)
		return nil
	}
	src.handler.Store(&handler{cb: cb, tag: tag})
	return nil
}

// EnableNotification enables the interrupt of a queue on the given source
// condition. Queues 32-63 only support interrupts.SourceNE. ErrStatusChanged
// is returned, with notification enabled, when the queue status moved
// during the call.
func (d *Dispatcher) EnableNotification(id interrupts.QueueID, src interrupts.SourceID) error {
	if err := d.checkQueue(id); err != nil {
		return err
	}
	if id.Group() == interrupts.LowGroup && !src.Valid() {
		return queueError(id, ErrInvalidParameter)
	}
	if id.Group() == interrupts.HighGroup && src != interrupts.SourceNE {
		return queueError(id, ErrInvalidParameter)
	}

	q := &d.stats.queues[id]
	q.source.Store(int32(src))

	onEntry := d.regs.QueueStatus(id)

	d.mu.Lock()
	offset, value, mask := aqm.CheckValues(id, src)
	d.sources[id].trigger = trigger{offset: offset, value: value, mask: mask}
	if id.Group() == interrupts.LowGroup {
		d.regs.SelectSource(id, src)
	}
	d.regs.EnableInterrupt(id)
	d.sources[id].enabled.Store(true)
	d.mu.Unlock()

	if onExit := d.regs.QueueStatus(id); onExit != onEntry {
		return queueError(id, ErrStatusChanged)
	}
	return nil
}

// DisableNotification disables the interrupt of a queue
func (d *Dispatcher) DisableNotification(id interrupts.QueueID) error {
	if err := d.checkQueue(id); err != nil {
		return err
	}
	d.disable(id)
	return nil
}

func (d *Dispatcher) disable(id interrupts.QueueID) {
	d.mu.Lock()
	d.regs.DisableInterrupt(id)
	d.sources[id].enabled.Store(false)
	d.mu.Unlock()
}

func (d *Dispatcher) enable(id interrupts.QueueID) {
	d.mu.Lock()
	d.regs.EnableInterrupt(id)
	d.sources[id].enabled.Store(true)
	d.mu.Unlock()
}

// SetLivelockClass sets the livelock class of a low group queue. A queue
// leaving the Sporadic class gets its notification back immediately, as
// livelock prevention may have disabled it.
func (d *Dispatcher) SetLivelockClass(id interrupts.QueueID, class interrupts.LivelockClass) error {
	if err := d.checkQueue(id); err != nil {
		return err
	}
	if id.Group() != interrupts.LowGroup {
		return queueError(id, ErrInvalidParameter)
	}
	if !class.Valid() {
		return queueError(id, ErrInvalidLivelockClass)
	}

	old := interrupts.LivelockClass(d.sources[id].class.Swap(int32(class)))
	if old == interrupts.Sporadic && class != interrupts.Sporadic {
		d.enable(id)
		d.stats.queues[id].enables.Add(1)
	}
	return nil
}

// LivelockClass returns the livelock class of a low group queue
func (d *Dispatcher) LivelockClass(id interrupts.QueueID) (interrupts.LivelockClass, error) {
	if err := d.checkQueue(id); err != nil {
		return interrupts.Other, err
	}
	if id.Group() != interrupts.LowGroup {
		return interrupts.Other, queueError(id, ErrInvalidParameter)
	}
	return d.sources[id].livelockClass(), nil
}
