// Package dispatcher turns the queue manager interrupt registers into
// per-queue callback invocations.
//
// Each of the 64 hardware queues owns a notification source: a callback, a
// dispatch priority and, for the low group, a livelock class. Dispatch reads
// one group's interrupt register and invokes the callbacks of the queues
// that fired, highest priority first. Depending on the detected silicon it
// also recovers interrupts lost to a read/write-back race, and silences
// sporadic queues while a periodic queue is being serviced.
//
// Dispatch is not reentrant and must be serialised by the caller. The
// configuration methods may be called from any goroutine, including from
// inside a callback.
package dispatcher

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"qmgr/aqm"
	"qmgr/interrupts"
)

// DefaultUnclaimedLogEvery - an interrupt on a queue without callback is
// logged once per this many occurrences
const DefaultUnclaimedLogEvery = 1000000

// Capabilities selects the dispatch loop behaviour for the hardware
type Capabilities struct {
	// RaceTolerant is set when the interrupt register cannot lose an edge
	// during read and write-back, enabling the fast paths without status
	// snapshots.
	RaceTolerant bool

	// LivelockPrevention enables the periodic/sporadic admission policy.
	LivelockPrevention bool
}

// CapabilitiesFor picks the dispatch loop for a silicon revision. The first
// stepping has no sticky interrupt bit and never runs livelock prevention.
func CapabilitiesFor(s interrupts.Silicon, livelock bool) Capabilities {
	if !s.Sticky() {
		return Capabilities{}
	}
	return Capabilities{
		RaceTolerant:       true,
		LivelockPrevention: livelock,
	}
}

func (c Capabilities) String() string {
	switch {
	case !c.RaceTolerant && !c.LivelockPrevention:
		return "basic"
	case c.RaceTolerant && !c.LivelockPrevention:
		return "race-tolerant"
	case c.RaceTolerant && c.LivelockPrevention:
		return "livelock"
	}
	return "basic+livelock"
}

// sticky reports whether the low group write-back is deferred until the
// callbacks ran.
func (c Capabilities) sticky() bool {
	return c.RaceTolerant && c.LivelockPrevention
}

// Dispatcher owns the notification sources of all queues
type Dispatcher struct {
	regs aqm.Registers
	cfg  aqm.Config
	caps Capabilities
	log  zerolog.Logger

	// critical section around read-modify-write of shared per queue fields
	// and the enable registers
	mu sync.Locker

	unclaimedLogEvery uint64

	sources [interrupts.NumQueues]source

	// table is only read and rebuilt on the dispatch path
	table priorityTable
	dirty atomic.Bool

	suppressed atomic.Bool
	running    atomic.Bool

	stats stats
}

// Option configures a Dispatcher
type Option func(d *Dispatcher)

// WithLogger sets the logger, the default discards everything
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// WithLocker replaces the critical section lock
func WithLocker(l sync.Locker) Option {
	return func(d *Dispatcher) {
		d.mu = l
	}
}

// WithCapabilities selects the dispatch loop variant
func WithCapabilities(c Capabilities) Option {
	return func(d *Dispatcher) {
		d.caps = c
	}
}

// WithUnclaimedLogEvery sets the unclaimed callback log throttle
func WithUnclaimedLogEvery(n uint64) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.unclaimedLogEvery = n
		}
	}
}

// New creates an initialised dispatcher. By default it runs the race
// tolerant loop without livelock prevention.
func New(regs aqm.Registers, cfg aqm.Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		regs:              regs,
		cfg:               cfg,
		caps:              Capabilities{RaceTolerant: true},
		log:               zerolog.Nop(),
		mu:                new(sync.Mutex),
		unclaimedLogEvery: DefaultUnclaimedLogEvery,
	}
	for _, o := range opts {
		o(d)
	}
	d.Init()
	return d
}

// Init resets every notification source and the statistics, and rebuilds
// the priority table. With livelock prevention on sticky hardware the
// sticky interrupt bit is switched on.
func (d *Dispatcher) Init() {
	d.mu.Lock()
	for i := range d.sources {
		d.sources[i].reset(interrupts.QueueID(i))
	}
	d.mu.Unlock()

	d.stats.reset()
	d.suppressed.Store(false)
	d.rebuild()

	if d.caps.sticky() {
		d.regs.EnableSticky()
	}

	d.log.Debug().
		Str("loop", d.caps.String()).
		Msg("dispatcher initialised")
}

// Capabilities returns the dispatch loop variant in use
func (d *Dispatcher) Capabilities() Capabilities {
	return d.caps
}
