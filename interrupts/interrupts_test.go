package interrupts

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadingZerosLoop(t *testing.T) {
	tests := []struct {
		word uint32
		want int
	}{
		{0x80000000, 0},
		{0x40000000, 1},
		{0x00000002, 30},
		{0x00000001, 31},
		{0x00000000, 32},
		{0x00f00010, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LeadingZerosLoop(tt.word), "word 0x%08x", tt.word)
		assert.Equal(t, bits.LeadingZeros32(tt.word), LeadingZerosLoop(tt.word), "word 0x%08x", tt.word)
	}
}

func TestFirstQueue(t *testing.T) {
	tests := []struct {
		name  string
		group Group
		word  uint32
		want  QueueID
	}{
		{"low single", LowGroup, 1 << 5, 5},
		{"low multi picks lowest", LowGroup, 1<<3 | 1<<7 | 1<<31, 3},
		{"low bit 31", LowGroup, 1 << 31, 31},
		{"high single", HighGroup, 1, 32},
		{"high multi", HighGroup, 1<<4 | 1<<9, 36},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstQueue(tt.group, tt.word))
		})
	}
}

func TestFirstQueue_loopFallback(t *testing.T) {
	old := LeadingZeros
	LeadingZeros = LeadingZerosLoop
	defer func() { LeadingZeros = old }()

	assert.Equal(t, QueueID(12), FirstQueue(LowGroup, 1<<12|1<<20))
	assert.Equal(t, QueueID(63), FirstQueue(HighGroup, 1<<31))
}

func TestQueueID(t *testing.T) {
	assert.Equal(t, LowGroup, QueueID(31).Group())
	assert.Equal(t, HighGroup, QueueID(32).Group())
	assert.Equal(t, uint32(1), QueueID(32).CheckMask())
	assert.Equal(t, uint32(1<<31), QueueID(63).CheckMask())
	assert.Equal(t, uint32(1<<7), QueueID(7).CheckMask())
	assert.False(t, QueueID(64).Valid())
	assert.False(t, QueueID(-1).Valid())
}

func TestParse(t *testing.T) {
	src, err := ParseSourceID("NOT_NF")
	require.NoError(t, err)
	assert.Equal(t, SourceNotNF, src)
	assert.Equal(t, "NOT_NF", src.String())

	_, err = ParseSourceID("XX")
	assert.Error(t, err)

	c, err := ParseLivelockClass("sporadic")
	require.NoError(t, err)
	assert.Equal(t, Sporadic, c)

	s, err := ParseSilicon("ixp42x-a0")
	require.NoError(t, err)
	assert.False(t, s.Sticky())
	assert.True(t, IXP46x.Sticky())
	assert.Equal(t, "ixp46x", IXP46x.String())
}
