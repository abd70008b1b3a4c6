package dispatcher

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qmgr/aqm"
	"qmgr/interrupts"
)

func TestBuildPriorityTable_defaultOrder(t *testing.T) {
	var prio [interrupts.NumQueues]interrupts.Priority
	for i := range prio {
		prio[i] = interrupts.Priority2
	}
	table := buildPriorityTable(&prio)

	for i, q := range table.ids {
		assert.Equal(t, interrupts.QueueID(i), q)
	}
	assert.Equal(t, uint32(0x0000ffff), table.lowFirstHalfMask)
	assert.Equal(t, uint32(0x0000ffff), table.highFirstHalfMask)
}

func TestBuildPriorityTable_randomPriorities(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for iteration := 0; iteration < 500; iteration++ {
		var prio [interrupts.NumQueues]interrupts.Priority
		for i := range prio {
			prio[i] = interrupts.Priority(rng.Intn(interrupts.NumPriorities))
		}
		table := buildPriorityTable(&prio)

		seen := make(map[interrupts.QueueID]int)
		for i, q := range table.ids {
			seen[q]++
			lo, hi := groupRange(q.Group())
			require.True(t, i >= lo && i < hi, "queue %d placed at %d outside its group", q, i)
		}
		require.Len(t, seen, interrupts.NumQueues)
		for q, n := range seen {
			require.Equal(t, 1, n, "queue %d listed %d times", q, n)
		}

		for _, g := range []interrupts.Group{interrupts.LowGroup, interrupts.HighGroup} {
			lo, hi := groupRange(g)
			for i := lo; i < hi-1; i++ {
				a, b := table.ids[i], table.ids[i+1]
				require.True(t, prio[a] < prio[b] || (prio[a] == prio[b] && a < b),
					"queue %d (p%d) before queue %d (p%d)", a, prio[a], b, prio[b])
			}
		}

		var lowMask, highMask uint32
		for i := lowTableMin; i < lowTableMid; i++ {
			lowMask |= table.ids[i].CheckMask()
		}
		for i := highTableMin; i < highTableMid; i++ {
			highMask |= table.ids[i].CheckMask()
		}
		require.Equal(t, lowMask, table.lowFirstHalfMask)
		require.Equal(t, highMask, table.highFirstHalfMask)
	}
}

func TestWalkStart(t *testing.T) {
	var prio [interrupts.NumQueues]interrupts.Priority
	for i := range prio {
		prio[i] = interrupts.Priority2
	}
	table := buildPriorityTable(&prio)

	tests := []struct {
		name  string
		group interrupts.Group
		word  uint32
		want  int
	}{
		{"low first half", interrupts.LowGroup, 1<<3 | 1<<20, lowTableMin},
		{"low second half only", interrupts.LowGroup, 1<<17 | 1<<20, lowTableMid},
		{"high first half", interrupts.HighGroup, 1 << 15, highTableMin},
		{"high second half only", interrupts.HighGroup, 1<<16 | 1<<31, highTableMid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.walkStart(tt.group, tt.word))
		})
	}
}

func TestSetPriority_idempotent(t *testing.T) {
	sim := aqm.NewSim()
	for _, q := range []interrupts.QueueID{3, 7, 40} {
		require.NoError(t, sim.Configure(q, 16, 2, 12))
	}

	once := New(sim, sim)
	require.NoError(t, once.SetPriority(7, interrupts.Priority0))
	require.NoError(t, once.SetPriority(40, interrupts.Priority1))
	once.Dispatch(interrupts.LowGroup)

	twice := New(sim, sim)
	require.NoError(t, twice.SetPriority(7, interrupts.Priority0))
	require.NoError(t, twice.SetPriority(7, interrupts.Priority0))
	require.NoError(t, twice.SetPriority(40, interrupts.Priority1))
	require.NoError(t, twice.SetPriority(40, interrupts.Priority1))
	twice.Dispatch(interrupts.LowGroup)

	if diff := cmp.Diff(once.table, twice.table, cmp.AllowUnexported(priorityTable{})); diff != "" {
		t.Errorf("priority table mismatch (-once +twice):\n%s", diff)
	}

	ids, _, _ := twice.PriorityTable()
	assert.Equal(t, interrupts.QueueID(7), ids[0])
	assert.Equal(t, interrupts.QueueID(40), ids[32])
	assert.Equal(t, uint64(2), twice.Stats().Queues[7].PriorityChanges)
}

func TestSetPriority_rebuildDeferredToDispatch(t *testing.T) {
	sim := aqm.NewSim()
	require.NoError(t, sim.Configure(20, 16, 2, 12))
	d := New(sim, sim)

	require.NoError(t, d.SetPriority(20, interrupts.Priority0))
	ids, _, _ := d.PriorityTable()
	assert.Equal(t, interrupts.QueueID(0), ids[0], "table must not change before dispatch")

	// an empty dispatch still rebuilds
	d.Dispatch(interrupts.HighGroup)
	ids, lowMask, _ := d.PriorityTable()
	assert.Equal(t, interrupts.QueueID(20), ids[0])
	assert.NotZero(t, lowMask&interrupts.QueueID(20).CheckMask())
	assert.Zero(t, lowMask&interrupts.QueueID(15).CheckMask(), "queue 15 moved to the second half")
}
