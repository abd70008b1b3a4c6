package interrupts

import "fmt"

// Silicon - detected queue manager hardware revision
type Silicon int

const (
	// IXP42xA0 : no sticky interrupt bit, interrupt register read/write may race
	IXP42xA0 Silicon = iota
	// IXP42xB0 : sticky interrupts on the low group
	IXP42xB0
	// IXP46x : same queue manager as IXP42xB0
	IXP46x
)

var siliconNames = map[string]Silicon{
	"ixp42x-a0": IXP42xA0,
	"ixp42x-b0": IXP42xB0,
	"ixp46x":    IXP46x,
}

// Sticky reports whether the low group interrupt register supports the
// sticky bit.
func (s Silicon) Sticky() bool {
	return s != IXP42xA0
}

func (s Silicon) String() string {
	for name, v := range siliconNames {
		if v == s {
			return name
		}
	}
	return fmt.Sprintf("silicon(%d)", int(s))
}

// ParseSilicon maps ixp42x-a0, ixp42x-b0 or ixp46x to its revision
func ParseSilicon(s string) (Silicon, error) {
	if v, ok := siliconNames[s]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown silicon %q", s)
}
