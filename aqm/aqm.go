// Package aqm describes the queue manager hardware seen by the dispatcher:
// interrupt, status and enable registers, plus the queue configuration
// lookup. Sim implements both for tests and the simulator.
package aqm

import (
	"qmgr/interrupts"
	"qmgr/qstatus"
)

// MaxStatusWords - status registers read per group
const MaxStatusWords = 4

// low group status layout: 8 queues per word, 4 bits per queue
const (
	lowQueuesPerWord = 8
	lowBitsPerQueue  = 4
)

// StatusWords is a snapshot of a group's status registers
type StatusWords [MaxStatusWords]uint32

// Registers gives access to the interrupt and status registers
type Registers interface {
	// ReadPending returns the group's interrupt register
	ReadPending(g interrupts.Group) uint32
	// ClearPending writes mask back to the interrupt register
	ClearPending(g interrupts.Group, mask uint32)
	// ReadStatus snapshots the group's status registers
	ReadStatus(g interrupts.Group, words *StatusWords)
	// ReadEnabled returns the group's interrupt enable register
	ReadEnabled(g interrupts.Group) uint32
	EnableInterrupt(id interrupts.QueueID)
	DisableInterrupt(id interrupts.QueueID)
	// SelectSource sets the interrupt source of a low group queue
	SelectSource(id interrupts.QueueID, src interrupts.SourceID)
	// EnableSticky turns on the sticky interrupt bit of the low group
	EnableSticky()
	// QueueStatus reads the status flags of one queue
	QueueStatus(id interrupts.QueueID) qstatus.QStatus
}

// Config is the queue configuration lookup
type Config interface {
	IsConfigured(id interrupts.QueueID) bool
}

// RaceWords returns how many status words take part in the race check.
// The high group only reports its nearly empty word.
func RaceWords(g interrupts.Group) int {
	if g == interrupts.HighGroup {
		return 1
	}
	return MaxStatusWords
}

// StatusChanged compares the status words relevant to a group
func StatusChanged(g interrupts.Group, before, after *StatusWords) bool {
	for i := 0; i < RaceWords(g); i++ {
		if before[i] != after[i] {
			return true
		}
	}
	return false
}

// CheckValues computes where a queue's trigger condition lives in the
// status words: the word offset, the expected value and the mask.
func CheckValues(id interrupts.QueueID, src interrupts.SourceID) (offset int, value, mask uint32) {
	if id.Group() == interrupts.HighGroup {
		mask = 1 << uint(id-interrupts.MinHighQueue)
		return 0, mask, mask
	}

	var flag uint32
	switch src {
	case interrupts.SourceE, interrupts.SourceNotE:
		flag = qstatus.EMask
	case interrupts.SourceNE, interrupts.SourceNotNE:
		flag = qstatus.NEMask
	case interrupts.SourceNF, interrupts.SourceNotNF:
		flag = qstatus.NFMask
	case interrupts.SourceF, interrupts.SourceNotF:
		flag = qstatus.FMask
	}
	if src <= interrupts.SourceF {
		value = flag
	}

	shift := uint(id%lowQueuesPerWord) * lowBitsPerQueue
	return int(id) / lowQueuesPerWord, value << shift, flag << shift
}

// StatusCheck reports whether the trigger condition described by offset,
// value and mask became true between the two snapshots.
func StatusCheck(before, after *StatusWords, offset int, value, mask uint32) bool {
	return before[offset]&mask != value && after[offset]&mask == value
}

// Triggered evaluates a source condition against a queue status
func Triggered(src interrupts.SourceID, s qstatus.QStatus) bool {
	switch src {
	case interrupts.SourceE:
		return s.E()
	case interrupts.SourceNE:
		return s.NE()
	case interrupts.SourceNF:
		return s.NF()
	case interrupts.SourceF:
		return s.F()
	case interrupts.SourceNotE:
		return !s.E()
	case interrupts.SourceNotNE:
		return !s.NE()
	case interrupts.SourceNotNF:
		return !s.NF()
	case interrupts.SourceNotF:
		return !s.F()
	}
	return false
}
