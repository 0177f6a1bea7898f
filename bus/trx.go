// Package bus defines the register-access transaction that flows between
// the stimulus generator, the SPI frame layer, the scoreboard, and the
// coverage engine.
package bus

import "fmt"

// Direction tells whether a transaction reads or writes a register.
type Direction uint8

const (
	// Read requests the current register value from the chip.
	Read Direction = iota
	// Write updates the register with the transaction data.
	Write
)

// String returns the lower-case name used in logs and coverage bins.
func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// RangeClass classifies the written data value relative to the register's
// maximum value. It only affects the outcome of Write transactions.
type RangeClass uint8

const (
	// Min0 writes 0.
	Min0 RangeClass = iota
	// Min1 writes 1.
	Min1
	// Mid writes a value away from both boundaries when the register is
	// wide enough to have one.
	Mid
	// Max0 writes the register's maximum value.
	Max0
	// Max1 writes one below the maximum value.
	Max1
)

// RangeClasses lists all classes in declaration order.
var RangeClasses = []RangeClass{Min0, Min1, Mid, Max0, Max1}

// String returns the bin label used by the coverage engine.
func (c RangeClass) String() string {
	switch c {
	case Min0:
		return "min0"
	case Min1:
		return "min1"
	case Mid:
		return "mid"
	case Max0:
		return "max0"
	case Max1:
		return "max1"
	default:
		return fmt.Sprintf("range(%d)", uint8(c))
	}
}

// Transaction is one randomized register access. It is immutable after
// generation except for the expected read data, which the bench fills in
// from the register model just before transmission.
type Transaction struct {
	// Register is the name of the targeted register in the model.
	Register string

	// Addr is the 8-bit register address driven on the bus.
	Addr uint8

	// Data is the 16-bit register data driven on a write.
	Data uint16

	// Dir selects read or write.
	Dir Direction

	// Range is the data-range class the data was derived from.
	Range RangeClass

	// ExpectedData is the model-predicted read value. Valid only when
	// HasExpected is set; a read with no prediction is checked as
	// don't-care by the scoreboard.
	ExpectedData uint16
	HasExpected  bool
}

// Validate checks the field-level preconditions the frame layer relies on.
// A failure indicates a generator bug, not a bus fault, and aborts the run.
func (t *Transaction) Validate() error {
	if t == nil {
		return fmt.Errorf("transaction: nil")
	}
	if t.Register == "" {
		return fmt.Errorf("transaction: empty register name")
	}
	if t.Dir != Read && t.Dir != Write {
		return fmt.Errorf("transaction %s: invalid direction %d",
			t.Register, t.Dir)
	}
	switch t.Range {
	case Min0, Min1, Mid, Max0, Max1:
	default:
		return fmt.Errorf("transaction %s: invalid range class %d",
			t.Register, t.Range)
	}
	return nil
}

// String renders the transaction for logs.
func (t *Transaction) String() string {
	return fmt.Sprintf("%s %s addr=0x%02X data=0x%04X range=%s",
		t.Dir, t.Register, t.Addr, t.Data, t.Range)
}
