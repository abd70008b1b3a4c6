package aqm

import (
	"errors"
	"fmt"
	"sync"

	"qmgr/interrupts"
	"qmgr/qstatus"
)

// simulated queue errors
var (
	ErrQueueFull     = errors.New("queue full")
	ErrQueueEmpty    = errors.New("queue empty")
	ErrNotConfigured = errors.New("queue not configured")
)

// Sim is an in-memory queue manager: 64 FIFOs, their status flags and the
// interrupt, enable and source select registers.
type Sim struct {
	mu sync.Mutex

	queues [interrupts.NumQueues]simQueue

	// interrupt registers, one per group
	pending [2]uint32
	// interrupt enable registers
	enabled [2]uint32

	sticky bool

	// Erratum drops edges raised while an interrupt register write-back is
	// in progress, like the first silicon stepping did.
	Erratum bool

	// RaceHook runs inside ClearPending, between the dispatcher reading the
	// interrupt register and the write-back taking effect.
	RaceHook func(g interrupts.Group)

	clearing [2]bool
	swallow  [2]uint32
	// edges seen while the queue interrupt was disabled
	missed [2]uint32
}

type simQueue struct {
	configured bool
	size       int
	ne, nf     int
	src        interrupts.SourceID
	entries    []uint32
	status     qstatus.QStatus
}

// NewSim returns a queue manager with no queue configured
func NewSim() *Sim {
	s := new(Sim)
	for i := range s.queues {
		if interrupts.QueueID(i).Group() == interrupts.HighGroup {
			s.queues[i].src = interrupts.SourceNE
		}
	}
	return s
}

// Configure sets up a queue with size entries and its nearly empty and
// nearly full watermarks.
func (s *Sim) Configure(id interrupts.QueueID, size, ne, nf int) error {
	if !id.Valid() {
		return fmt.Errorf("queue %d: invalid queue id", id)
	}
	if size <= 0 || ne < 0 || nf > size || ne >= nf {
		return fmt.Errorf("queue %d: invalid geometry size=%d ne=%d nf=%d", id, size, ne, nf)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q := &s.queues[id]
	q.configured = true
	q.size = size
	q.ne = ne
	q.nf = nf
	q.entries = q.entries[:0]
	q.status = qstatus.Fill(0, size, ne, nf)
	s.missed[id.Group()] &^= id.CheckMask()
	return nil
}

// IsConfigured implements Config
func (s *Sim) IsConfigured(id interrupts.QueueID) bool {
	if !id.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queues[id].configured
}

// Push writes an entry to a queue
func (s *Sim) Push(id interrupts.QueueID, entry uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.queue(id)
	if err != nil {
		return err
	}
	if len(q.entries) >= q.size {
		s.update(id, func(st *qstatus.QStatus) { st.SetOF(true) })
		return fmt.Errorf("queue %d: %w", id, ErrQueueFull)
	}
	q.entries = append(q.entries, entry)
	s.refill(id)
	return nil
}

// Pop reads the oldest entry of a queue
func (s *Sim) Pop(id interrupts.QueueID) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.queue(id)
	if err != nil {
		return 0, err
	}
	if len(q.entries) == 0 {
		s.update(id, func(st *qstatus.QStatus) { st.SetUF(true) })
		return 0, fmt.Errorf("queue %d: %w", id, ErrQueueEmpty)
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	s.refill(id)
	return e, nil
}

// Entries returns the number of entries in a queue
func (s *Sim) Entries(id interrupts.QueueID) int {
	if !id.Valid() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[id].entries)
}

// ReadPending implements Registers
func (s *Sim) ReadPending(g interrupts.Group) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[g]
}

// ClearPending implements Registers. With the sticky bit on, low group
// bits stay set while their condition still holds.
func (s *Sim) ClearPending(g interrupts.Group, mask uint32) {
	if hook := s.RaceHook; hook != nil {
		s.mu.Lock()
		s.clearing[g] = true
		s.swallow[g] = 0
		s.mu.Unlock()

		hook(g)

		s.mu.Lock()
		s.clearing[g] = false
		if s.Erratum {
			mask |= s.swallow[g]
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sticky && g == interrupts.LowGroup {
		for i := 0; i < interrupts.GroupSize; i++ {
			id := interrupts.QueueID(i)
			if Triggered(s.queues[id].src, s.queues[id].status) {
				mask &^= id.CheckMask()
			}
		}
	}
	s.pending[g] &^= mask
}

// ReadStatus implements Registers
func (s *Sim) ReadStatus(g interrupts.Group, words *StatusWords) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*words = StatusWords{}
	if g == interrupts.HighGroup {
		for i := interrupts.MinHighQueue; i <= interrupts.MaxQueue; i++ {
			st := s.queues[i].status
			if st.NE() {
				words[0] |= i.CheckMask()
			}
			if st.F() {
				words[1] |= i.CheckMask()
			}
		}
		return
	}
	for i := 0; i < interrupts.GroupSize; i++ {
		st := s.queues[i].status & qstatus.LowBits
		words[i/lowQueuesPerWord] |= uint32(st) << (uint(i%lowQueuesPerWord) * lowBitsPerQueue)
	}
}

// ReadEnabled implements Registers
func (s *Sim) ReadEnabled(g interrupts.Group) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[g]
}

// EnableInterrupt implements Registers. An edge missed while disabled is
// raised now if the condition still holds.
func (s *Sim) EnableInterrupt(id interrupts.QueueID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, m := id.Group(), id.CheckMask()
	s.enabled[g] |= m
	if s.missed[g]&m != 0 {
		s.missed[g] &^= m
		if Triggered(s.queues[id].src, s.queues[id].status) {
			s.pending[g] |= m
		}
	}
}

// DisableInterrupt implements Registers
func (s *Sim) DisableInterrupt(id interrupts.QueueID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[id.Group()] &^= id.CheckMask()
}

// SelectSource implements Registers. High group queues ignore it.
func (s *Sim) SelectSource(id interrupts.QueueID, src interrupts.SourceID) {
	if id.Group() == interrupts.HighGroup {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[id].src = src
}

// EnableSticky implements Registers
func (s *Sim) EnableSticky() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sticky = true
}

// Sticky reports whether the sticky interrupt bit is on
func (s *Sim) Sticky() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sticky
}

// QueueStatus implements Registers
func (s *Sim) QueueStatus(id interrupts.QueueID) qstatus.QStatus {
	if !id.Valid() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queues[id].status
}

// Raise sets a queue's interrupt bit directly, whatever its status.
func (s *Sim) Raise(id interrupts.QueueID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id.Group()] |= id.CheckMask()
}

func (s *Sim) queue(id interrupts.QueueID) (*simQueue, error) {
	if !id.Valid() || !s.queues[id].configured {
		return nil, fmt.Errorf("queue %d: %w", id, ErrNotConfigured)
	}
	return &s.queues[id], nil
}

// refill recomputes the fill flags, keeping the sticky UF and OF bits
func (s *Sim) refill(id interrupts.QueueID) {
	q := &s.queues[id]
	s.update(id, func(st *qstatus.QStatus) {
		keep := *st & (qstatus.UFMask | qstatus.OFMask)
		*st = qstatus.Fill(len(q.entries), q.size, q.ne, q.nf) | keep
	})
}

// update applies a status change and raises the interrupt on a rising
// edge of the selected source, if enabled. Caller holds s.mu.
func (s *Sim) update(id interrupts.QueueID, change func(st *qstatus.QStatus)) {
	q := &s.queues[id]
	was := Triggered(q.src, q.status)
	change(&q.status)
	if was || !Triggered(q.src, q.status) {
		return
	}
	g := id.Group()
	if s.enabled[g]&id.CheckMask() == 0 {
		s.missed[g] |= id.CheckMask()
		return
	}
	s.pending[g] |= id.CheckMask()
	if s.clearing[g] {
		s.swallow[g] |= id.CheckMask()
	}
}
