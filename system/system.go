package system

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"qmgr/aqm"
	"qmgr/config"
	"qmgr/console"
	"qmgr/dispatcher"
	"qmgr/interrupts"
	"qmgr/statsdb"
)

const (
	// TraceSize - callback events kept for the monitor
	TraceSize = 256

	// raceChance - probability of queue activity while an interrupt
	// register write-back is in flight
	raceChance = 0.05

	// settleRounds bounds the final dispatch rounds after the workload
	settleRounds = 16

	persistEvery = time.Second
)

// Totals - entries moved through the simulated queues
type Totals struct {
	Pushed    uint64
	Popped    uint64
	Overflows uint64
}

// System definition: the simulated queue manager, its dispatcher and the
// workload feeding it.
type System struct {
	Sim        *aqm.Sim
	Dispatcher *dispatcher.Dispatcher
	Trace      *Trace

	cfg     *config.Config
	silicon interrupts.Silicon
	log     zerolog.Logger
	console console.Console
	db      *statsdb.DB

	// workload is only used by the producer, hardware by the dispatch
	// goroutine through the race hook
	workload *rand.Rand
	hardware *rand.Rand

	periodic []interrupts.QueueID

	step      atomic.Uint64
	pushed    atomic.Uint64
	popped    atomic.Uint64
	overflows atomic.Uint64
}

// InitializeSystem builds the simulated queue manager and its dispatcher
// from the configuration and boots the queues. db may be nil.
func InitializeSystem(cfg *config.Config, c console.Console, db *statsdb.DB, log zerolog.Logger) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	silicon, err := interrupts.ParseSilicon(cfg.Silicon)
	if err != nil {
		return nil, err
	}

	sys := new(System)
	sys.cfg = cfg
	sys.silicon = silicon
	sys.log = log
	sys.console = c
	sys.db = db
	sys.workload = rand.New(rand.NewSource(cfg.Seed))
	sys.hardware = rand.New(rand.NewSource(cfg.Seed + 1))
	sys.Trace = NewTrace(TraceSize)

	sys.Sim = aqm.NewSim()
	sys.Sim.Erratum = !silicon.Sticky()
	sys.Sim.RaceHook = sys.hardwareActivity

	caps := dispatcher.CapabilitiesFor(silicon, cfg.LivelockPrevention)
	sys.Dispatcher = dispatcher.New(sys.Sim, sys.Sim,
		dispatcher.WithLogger(log.With().Str("component", "dispatcher").Logger()),
		dispatcher.WithCapabilities(caps),
		dispatcher.WithUnclaimedLogEvery(cfg.UnclaimedLogEvery),
	)

	_ = sys.console.WriteConsole(fmt.Sprintf("Initializing queue manager, silicon %s\n", silicon))
	if err := sys.Boot(); err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	sys.log.Info().
		Stringer("silicon", silicon).
		Stringer("loop", caps).
		Int("queues", len(cfg.Queues)).
		Msg("system initialized")
	return sys, nil
}

// Run feeds the workload for the configured number of steps while a
// second goroutine dispatches both interrupt groups, and, with a
// database, a third one stores periodic snapshots. It returns once the
// last interrupts are serviced and the final snapshot is saved.
func (sys *System) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	kick := make(chan uint64)
	finished := make(chan struct{})

	g.Go(func() error {
		defer close(kick)
		return sys.produce(ctx, kick)
	})
	g.Go(func() error {
		defer close(finished)
		return sys.dispatchLoop(ctx, kick)
	})
	if sys.db != nil {
		g.Go(func() error {
			return sys.persist(ctx, finished)
		})
	}

	err := g.Wait()
	t := sys.Totals()
	sys.log.Info().
		Uint64("steps", sys.step.Load()).
		Uint64("pushed", t.Pushed).
		Uint64("popped", t.Popped).
		Uint64("overflows", t.Overflows).
		Msg("run finished")
	_ = sys.console.WriteConsole(fmt.Sprintf("Run finished after %d steps\n", sys.step.Load()))
	return err
}

func (sys *System) produce(ctx context.Context, kick chan<- uint64) error {
	for i := 0; i < sys.cfg.Steps; i++ {
		step := sys.step.Add(1)
		sys.pushStep()
		select {
		case kick <- step:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (sys *System) dispatchLoop(ctx context.Context, kick <-chan uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-kick:
			if !ok {
				sys.settle()
				return nil
			}
			sys.dispatchAll()
		}
	}
}

func (sys *System) persist(ctx context.Context, finished <-chan struct{}) error {
	ticker := time.NewTicker(persistEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := sys.snapshot(ctx); err != nil {
				return err
			}
		case <-finished:
			return sys.snapshot(ctx)
		}
	}
}

func (sys *System) snapshot(ctx context.Context) error {
	id, err := sys.db.Save(ctx, sys.Dispatcher.Stats())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	sys.log.Debug().Int64("snapshot", id).Msg("stats saved")
	return nil
}

// pushStep pushes one entry to each queue whose rate fires this step
func (sys *System) pushStep() {
	for _, q := range sys.cfg.Queues {
		if q.Rate == 0 || sys.workload.Float64() >= q.Rate {
			continue
		}
		sys.push(q.QueueID())
	}
}

func (sys *System) push(id interrupts.QueueID) {
	err := sys.Sim.Push(id, uint32(sys.step.Load()))
	switch {
	case err == nil:
		sys.pushed.Add(1)
	case errors.Is(err, aqm.ErrQueueFull):
		sys.overflows.Add(1)
	default:
		sys.log.Error().Err(err).Int("queue", int(id)).Msg("push failed")
	}
}

// hardwareActivity runs between the interrupt register read and its
// write-back: now and then an entry lands in a random queue.
func (sys *System) hardwareActivity(interrupts.Group) {
	if len(sys.cfg.Queues) == 0 || sys.hardware.Float64() >= raceChance {
		return
	}
	q := sys.cfg.Queues[sys.hardware.Intn(len(sys.cfg.Queues))]
	sys.push(q.QueueID())
}

// dispatchAll services both interrupt groups once
func (sys *System) dispatchAll() {
	sys.Dispatcher.Dispatch(interrupts.LowGroup)
	sys.Dispatcher.Dispatch(interrupts.HighGroup)
}

// settle dispatches until no enabled interrupt is left pending
func (sys *System) settle() {
	for i := 0; i < settleRounds && sys.pending() != 0; i++ {
		sys.dispatchAll()
	}
}

func (sys *System) pending() uint32 {
	var p uint32
	for _, g := range []interrupts.Group{interrupts.LowGroup, interrupts.HighGroup} {
		p |= sys.Sim.ReadPending(g) & sys.Sim.ReadEnabled(g)
	}
	return p
}

// drain is the callback of every simulated queue: it empties the queue
// and, for the periodic class, hands the sporadic queues their
// notifications back.
func (sys *System) drain(id interrupts.QueueID, tag dispatcher.CallbackTag) {
	class, _ := tag.(interrupts.LivelockClass)
	n := 0
	for sys.Sim.Entries(id) > 0 {
		if _, err := sys.Sim.Pop(id); err != nil {
			break
		}
		n++
	}
	sys.popped.Add(uint64(n))
	sys.Trace.Enqueue(Event{
		Step:    sys.step.Load(),
		Queue:   id,
		Class:   class,
		Drained: n,
	})
	if class == interrupts.Periodic {
		sys.Dispatcher.PeriodicDone()
	}
}

// Totals returns the workload counters
func (sys *System) Totals() Totals {
	return Totals{
		Pushed:    sys.pushed.Load(),
		Popped:    sys.popped.Load(),
		Overflows: sys.overflows.Load(),
	}
}

// Silicon returns the simulated hardware revision
func (sys *System) Silicon() interrupts.Silicon {
	return sys.silicon
}

// Queues returns the configured queues
func (sys *System) Queues() []config.Queue {
	return sys.cfg.Queues
}
