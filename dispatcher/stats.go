package dispatcher

import (
	"sync/atomic"

	"qmgr/interrupts"
)

// QueueStats - dispatch counters of one queue
type QueueStats struct {
	Callbacks       uint64 `json:"callbacks"`
	PriorityChanges uint64 `json:"priority_changes"`
	// Unclaimed counts interrupts on a queue with no callback installed
	Unclaimed uint64 `json:"unclaimed"`
	// LostInterrupts counts callbacks run by the race recovery scan
	LostInterrupts uint64 `json:"lost_interrupts"`
	// Enables and Disables count livelock prevention actions
	Enables             uint64              `json:"enables"`
	Disables            uint64              `json:"disables"`
	NotificationEnabled bool                `json:"notification_enabled"`
	Source              interrupts.SourceID `json:"source"`
}

// Stats is a snapshot of the dispatcher counters. Diagnostic only.
type Stats struct {
	// LoopRuns counts Dispatch calls
	LoopRuns uint64 `json:"loop_runs"`
	// TableWalks counts dispatches that had to scan the priority table
	TableWalks uint64                              `json:"table_walks"`
	Queues     [interrupts.NumQueues]QueueStats `json:"queues"`
}

type queueCounters struct {
	callbacks       atomic.Uint64
	priorityChanges atomic.Uint64
	unclaimed       atomic.Uint64
	lost            atomic.Uint64
	enables         atomic.Uint64
	disables        atomic.Uint64
	source          atomic.Int32
}

type stats struct {
	loopRuns   atomic.Uint64
	tableWalks atomic.Uint64
	queues     [interrupts.NumQueues]queueCounters
}

func (s *stats) reset() {
	s.loopRuns.Store(0)
	s.tableWalks.Store(0)
	for i := range s.queues {
		q := &s.queues[i]
		q.callbacks.Store(0)
		q.priorityChanges.Store(0)
		q.unclaimed.Store(0)
		q.lost.Store(0)
		q.enables.Store(0)
		q.disables.Store(0)
		q.source.Store(0)
	}
}

// Stats returns a copy of the dispatcher counters
func (d *Dispatcher) Stats() Stats {
	var out Stats
	out.LoopRuns = d.stats.loopRuns.Load()
	out.TableWalks = d.stats.tableWalks.Load()
	for i := range out.Queues {
		q := &d.stats.queues[i]
		out.Queues[i] = QueueStats{
			Callbacks:           q.callbacks.Load(),
			PriorityChanges:     q.priorityChanges.Load(),
			Unclaimed:           q.unclaimed.Load(),
			LostInterrupts:      q.lost.Load(),
			Enables:             q.enables.Load(),
			Disables:            q.disables.Load(),
			NotificationEnabled: d.sources[i].enabled.Load(),
			Source:              interrupts.SourceID(q.source.Load()),
		}
	}
	return out
}
