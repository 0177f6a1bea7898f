// Package wire models the bit-level signals the testbench shares with the
// chip model: three-state logic values and edge subscription. Signals
// carry no timing of their own; drivers change them from inside event
// handlers and subscribers run synchronously at the same simulated time.
package wire

import "fmt"

// Logic is a three-state signal value. X models an undriven or unknown
// line; sampling it during a frame is a protocol violation.
type Logic uint8

const (
	// X is the undefined / released state.
	X Logic = iota
	// Low is logic 0.
	Low
	// High is logic 1.
	High
)

// String returns the single-character form used in logs.
func (l Logic) String() string {
	switch l {
	case Low:
		return "0"
	case High:
		return "1"
	default:
		return "x"
	}
}

// Defined reports whether the value is a driven 0 or 1.
func (l Logic) Defined() bool {
	return l == Low || l == High
}

// Bit converts a driven value to 0 or 1. Callers must check Defined
// first; X converts to 0.
func (l Logic) Bit() uint32 {
	if l == High {
		return 1
	}
	return 0
}

// FromBit converts the low bit of a word to a driven logic value.
func FromBit(b uint32) Logic {
	if b&1 == 1 {
		return High
	}
	return Low
}

// Edge selects which transition an edge subscriber fires on.
type Edge uint8

const (
	// Rising fires on a transition to High.
	Rising Edge = iota
	// Falling fires on a transition to Low.
	Falling
)

// A Signal is one named wire. Only one driver writes a signal at a time;
// subscribers observe transitions in subscription order.
type Signal struct {
	name    string
	value   Logic
	rising  []func()
	falling []func()
}

// NewSignal creates a signal in the X state.
func NewSignal(name string) *Signal {
	return &Signal{name: name, value: X}
}

// Name returns the signal's name.
func (s *Signal) Name() string {
	return s.name
}

// Value returns the current value.
func (s *Signal) Value() Logic {
	return s.value
}

// OnEdge registers fn to run whenever the signal makes the given
// transition. fn runs synchronously in the driver's event handler, at the
// driver's simulated time.
func (s *Signal) OnEdge(edge Edge, fn func()) {
	switch edge {
	case Rising:
		s.rising = append(s.rising, fn)
	case Falling:
		s.falling = append(s.falling, fn)
	}
}

// Set drives the signal to v and notifies edge subscribers. A transition
// from X counts as an edge toward the driven value, matching how the chip
// sees a line that starts undriven.
func (s *Signal) Set(v Logic) {
	prev := s.value
	s.value = v
	if prev == v {
		return
	}

	switch v {
	case High:
		for _, fn := range s.rising {
			fn()
		}
	case Low:
		for _, fn := range s.falling {
			fn()
		}
	}
}

// Release puts the signal back to X without firing edges.
func (s *Signal) Release() {
	s.value = X
}

// Bundle groups the signals of one SPI channel plus the asynchronous MCE
// input, named the way the chip's ports are.
type Bundle struct {
	SClk *Signal
	CsN  *Signal
	Mosi *Signal
	Miso *Signal
	Mce  *Signal
}

// NewBundle creates the signal set for one SPI index.
func NewBundle(spiIdx int) *Bundle {
	return &Bundle{
		SClk: NewSignal(fmt.Sprintf("I_SCLK_%d", spiIdx)),
		CsN:  NewSignal(fmt.Sprintf("I_CS_N_%d", spiIdx)),
		Mosi: NewSignal(fmt.Sprintf("I_MOSI_%d", spiIdx)),
		Miso: NewSignal(fmt.Sprintf("O_MISO_%d", spiIdx)),
		Mce:  NewSignal("I_MCE"),
	}
}
