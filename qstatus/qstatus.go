package qstatus

/**
Queue status word package
*/

// status word layout. Values here are bits, not the
// powers of 2
const eFlag = 0
const neFlag = 1
const nfFlag = 2
const fFlag = 3
const ufFlag = 4
const ofFlag = 5

// status masks
const (
	EMask  = 1 << eFlag
	NEMask = 1 << neFlag
	NFMask = 1 << nfFlag
	FMask  = 1 << fFlag
	UFMask = 1 << ufFlag
	OFMask = 1 << ofFlag
)

// LowBits - flags reported by the low group status registers (4 per queue)
const LowBits = EMask | NEMask | NFMask | FMask

// QStatus keeps the status flags of one queue
type QStatus uint32

// Get returns the raw status word
func (s *QStatus) Get() uint32 {
	return uint32(*s)
}

// Set status value
func (s *QStatus) Set(v uint32) {
	*s = QStatus(v)
}

// E returns the empty flag
func (s *QStatus) E() bool {
	return s.getFlag(eFlag)
}

// SetE sets the empty flag
func (s *QStatus) SetE(status bool) {
	s.setFlag(eFlag, status)
}

// NE returns the nearly empty flag
func (s *QStatus) NE() bool {
	return s.getFlag(neFlag)
}

// SetNE sets the nearly empty flag
func (s *QStatus) SetNE(status bool) {
	s.setFlag(neFlag, status)
}

// NF returns the nearly full flag
func (s *QStatus) NF() bool {
	return s.getFlag(nfFlag)
}

// SetNF sets the nearly full flag
func (s *QStatus) SetNF(status bool) {
	s.setFlag(nfFlag, status)
}

// F returns the full flag
func (s *QStatus) F() bool {
	return s.getFlag(fFlag)
}

// SetF sets the full flag
func (s *QStatus) SetF(status bool) {
	s.setFlag(fFlag, status)
}

// UF returns the underflow flag
func (s *QStatus) UF() bool {
	return s.getFlag(ufFlag)
}

// SetUF sets the underflow flag
func (s *QStatus) SetUF(status bool) {
	s.setFlag(ufFlag, status)
}

// OF returns the overflow flag
func (s *QStatus) OF() bool {
	return s.getFlag(ofFlag)
}

// SetOF sets the overflow flag
func (s *QStatus) SetOF(status bool) {
	s.setFlag(ofFlag, status)
}

// Fill derives E, NE, NF and F from the number of entries. A queue is
// nearly empty at or below ne entries and nearly full at or above nf.
func Fill(entries, size, ne, nf int) QStatus {
	var s QStatus
	s.SetE(entries == 0)
	s.SetNE(entries <= ne)
	s.SetNF(entries >= nf)
	s.SetF(entries >= size)
	return s
}

// generic get flag function
func (s *QStatus) getFlag(flag uint) bool {
	return (*s & (1 << flag)) > 0
}

// generic set flag function
func (s *QStatus) setFlag(flag uint, status bool) {
	if status {
		*s |= (1 << flag)
	} else {
		*s &^= (1 << flag)
	}
}

// GetFlags returns set flags
func (s *QStatus) GetFlags() string {
	var flags string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{s.E(), "E"},
		{s.NE(), "NE"},
		{s.NF(), "NF"},
		{s.F(), "F"},
		{s.UF(), "UF"},
		{s.OF(), "OF"},
	} {
		if !f.set {
			continue
		}
		if flags != "" {
			flags += " "
		}
		flags += f.name
	}
	return "[" + flags + "]"
}
