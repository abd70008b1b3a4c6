package interrupts

/**
 * Separate package exists mainly in order to avoid cyclic imports
 * between the dispatcher and the queue manager register interface.
 */

import (
	"fmt"
	"math/bits"
)

// QueueID identifies one of the hardware queues
type QueueID int

// Group selects one of the two interrupt registers
type Group int

// Priority - dispatch priority, 0 is the highest
type Priority int

// LivelockClass - callback type used by the livelock prevention
type LivelockClass int

// SourceID selects the queue condition raising the interrupt
type SourceID int

// queue ranges:
const (
	// NumQueues : total number of hardware queues
	NumQueues = 64

	// GroupSize : queues per interrupt register
	GroupSize = 32

	// MinHighQueue : first queue of the high group
	MinHighQueue QueueID = 32

	// MaxQueue : last valid queue id
	MaxQueue QueueID = 63
)

// queue groups:
const (
	// LowGroup : queues 0-31
	LowGroup Group = iota
	// HighGroup : queues 32-63
	HighGroup
)

// priorities:
const (
	Priority0 Priority = iota
	Priority1
	Priority2

	// NumPriorities : number of dispatch priority levels
	NumPriorities = 3
)

// livelock classes:
const (
	// Other : always allowed to run
	Other LivelockClass = iota
	// Periodic : always allowed to run, silences sporadic queues
	Periodic
	// Sporadic : only runs while no periodic callback is in progress
	Sporadic
)

// interrupt sources. Only the low group can select the source, the high
// group is hardwired to SourceNE.
const (
	SourceE    SourceID = iota // empty due to last read
	SourceNE                   // nearly empty due to last read
	SourceNF                   // nearly full due to last write
	SourceF                    // full due to last write
	SourceNotE                 // not empty due to last write
	SourceNotNE                // not nearly empty due to last write
	SourceNotNF                // not nearly full due to last read
	SourceNotF                 // not full due to last read
)

// Valid checks the queue id range
func (q QueueID) Valid() bool {
	return q >= 0 && q <= MaxQueue
}

// Group returns the interrupt register the queue reports to
func (q QueueID) Group() Group {
	if q >= MinHighQueue {
		return HighGroup
	}
	return LowGroup
}

// CheckMask - the queue bit inside its group's interrupt register
func (q QueueID) CheckMask() uint32 {
	return 1 << (uint(q) % GroupSize)
}

// Valid checks the group selector
func (g Group) Valid() bool {
	return g == LowGroup || g == HighGroup
}

// Base returns the first queue of the group
func (g Group) Base() QueueID {
	if g == HighGroup {
		return MinHighQueue
	}
	return 0
}

func (g Group) String() string {
	switch g {
	case LowGroup:
		return "low"
	case HighGroup:
		return "high"
	}
	return fmt.Sprintf("group(%d)", int(g))
}

// Valid checks the priority range
func (p Priority) Valid() bool {
	return p >= Priority0 && p <= Priority2
}

// Valid checks the livelock class range
func (c LivelockClass) Valid() bool {
	return c >= Other && c <= Sporadic
}

func (c LivelockClass) String() string {
	switch c {
	case Other:
		return "Other"
	case Periodic:
		return "Periodic"
	case Sporadic:
		return "Sporadic"
	}
	return fmt.Sprintf("LivelockClass(%d)", int(c))
}

// ParseLivelockClass accepts the class names as printed by String or in
// lower case. An empty string is Other.
func ParseLivelockClass(s string) (LivelockClass, error) {
	switch s {
	case "", "other", "Other":
		return Other, nil
	case "periodic", "Periodic":
		return Periodic, nil
	case "sporadic", "Sporadic":
		return Sporadic, nil
	}
	return Other, fmt.Errorf("unknown livelock class %q", s)
}

var sourceNames = [...]string{
	SourceE:     "E",
	SourceNE:    "NE",
	SourceNF:    "NF",
	SourceF:     "F",
	SourceNotE:  "NOT_E",
	SourceNotNE: "NOT_NE",
	SourceNotNF: "NOT_NF",
	SourceNotF:  "NOT_F",
}

// Valid checks the source selector range
func (s SourceID) Valid() bool {
	return s >= SourceE && s <= SourceNotF
}

func (s SourceID) String() string {
	if s.Valid() {
		return sourceNames[s]
	}
	return fmt.Sprintf("SourceID(%d)", int(s))
}

// ParseSourceID maps a source name (E, NE, NF, F, NOT_E...) to its id
func ParseSourceID(s string) (SourceID, error) {
	for i, name := range sourceNames {
		if name == s {
			return SourceID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown interrupt source %q", s)
}

// LeadingZeros counts the leading zero bits of a word, 32 for zero.
// Replace with LeadingZerosLoop where no count leading zeros instruction
// is available.
var LeadingZeros = bits.LeadingZeros32

// LeadingZerosLoop is the portable bit scan:
//
//	0x80000000 -> 0
//	0x00000001 -> 31
//	0x00000000 -> 32
func LeadingZerosLoop(word uint32) int {
	if word == 0 {
		return 32
	}
	n := 0
	for word&0x80000000 == 0 {
		word <<= 1
		n++
	}
	return n
}

// FirstQueue resolves the lowest queue with a set bit in a non zero
// interrupt register value.
func FirstQueue(g Group, word uint32) QueueID {
	// the lowest set bit, isolated, so the leading zero count points at it
	q := QueueID(GroupSize - 1 - LeadingZeros(word&-word))
	return g.Base() + q
}
