package system

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qmgr/config"
	"qmgr/interrupts"
	"qmgr/statsdb"
)

type lineConsole struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineConsole) WriteConsole(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, msg)
	return nil
}

func testConfig(silicon string, steps int) *config.Config {
	cfg := config.Default()
	cfg.Silicon = silicon
	cfg.Steps = steps
	return cfg
}

func newTestSystem(t *testing.T, cfg *config.Config, db *statsdb.DB) (*System, *lineConsole) {
	t.Helper()
	c := new(lineConsole)
	sys, err := InitializeSystem(cfg, c, db, zerolog.Nop())
	require.NoError(t, err)
	return sys, c
}

// conserved checks that every pushed entry was either drained or is
// still queued
func conserved(t *testing.T, sys *System) {
	t.Helper()
	var queued uint64
	for _, q := range sys.Queues() {
		queued += uint64(sys.Sim.Entries(q.QueueID()))
	}
	tot := sys.Totals()
	assert.Equal(t, tot.Pushed, tot.Popped+queued, "pushed %d popped %d queued %d", tot.Pushed, tot.Popped, queued)
}

func TestInitializeSystem(t *testing.T) {
	sys, c := newTestSystem(t, testConfig("ixp46x", 10), nil)

	caps := sys.Dispatcher.Capabilities()
	assert.True(t, caps.RaceTolerant)
	assert.True(t, caps.LivelockPrevention)
	assert.True(t, sys.Sim.Sticky())
	assert.False(t, sys.Sim.Erratum)
	assert.Equal(t, interrupts.IXP46x, sys.Silicon())

	class, err := sys.Dispatcher.LivelockClass(4)
	require.NoError(t, err)
	assert.Equal(t, interrupts.Periodic, class)

	st := sys.Dispatcher.Stats()
	for _, q := range sys.Queues() {
		assert.True(t, st.Queues[q.ID].NotificationEnabled, "queue %d", q.ID)
	}
	assert.Equal(t, interrupts.SourceNF, st.Queues[20].Source)
	assert.Len(t, c.lines, 2)
}

func TestInitializeSystem_invalid(t *testing.T) {
	cfg := testConfig("ixp46x", 10)
	cfg.Queues[0].Priority = 7
	_, err := InitializeSystem(cfg, new(lineConsole), nil, zerolog.Nop())
	assert.True(t, errors.Is(err, config.ErrInvalid), "got %v", err)
}

func TestRun(t *testing.T) {
	for _, silicon := range []string{"ixp42x-a0", "ixp42x-b0", "ixp46x"} {
		t.Run(silicon, func(t *testing.T) {
			sys, _ := newTestSystem(t, testConfig(silicon, 3000), nil)
			require.NoError(t, sys.Run(context.Background()))

			conserved(t, sys)
			st := sys.Dispatcher.Stats()
			assert.GreaterOrEqual(t, st.LoopRuns, uint64(2*3000))
			assert.NotZero(t, sys.Totals().Popped)
			assert.False(t, sys.Trace.IsEmpty())

			// the priority table picked up the configuration
			ids, _, _ := sys.Dispatcher.PriorityTable()
			assert.Equal(t, interrupts.QueueID(4), ids[0])
			assert.Equal(t, interrupts.QueueID(40), ids[32])
		})
	}
}

func TestRun_livelockReport(t *testing.T) {
	sys, _ := newTestSystem(t, testConfig("ixp42x-b0", 2000), nil)
	require.NoError(t, sys.Run(context.Background()))

	rows := sys.Dispatcher.LivelockReport(false)
	require.Len(t, rows, 3)
	assert.Equal(t, interrupts.QueueID(4), rows[0].Queue)
	assert.Equal(t, interrupts.Periodic, rows[0].Class)
	for _, r := range rows[1:] {
		assert.Equal(t, interrupts.Sporadic, r.Class)
		// the periodic callback always restores what it suppressed
		assert.Equal(t, r.Disables, r.Enables, "queue %d", r.Queue)
		assert.True(t, r.Enabled, "queue %d", r.Queue)
	}
	assert.False(t, sys.Dispatcher.Suppressed())
}

func TestRun_persistsSnapshot(t *testing.T) {
	db, err := statsdb.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	sys, _ := newTestSystem(t, testConfig("ixp46x", 500), db)
	require.NoError(t, sys.Run(context.Background()))

	snap, err := db.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sys.Dispatcher.Stats(), snap.Stats)
}

func TestRun_cancelled(t *testing.T) {
	sys, _ := newTestSystem(t, testConfig("ixp46x", 1000000), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sys.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
