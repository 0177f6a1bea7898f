// Package regmodel keeps the verification-side shadow copy of the chip's
// bus-addressable registers: addresses, widths, access modes, the last
// value written by the bench, and the per-register access history.
package regmodel

import (
	"fmt"
	"sort"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/rocklab/rocktb/bus"
)

// AccessMode tells whether the bench may write a register.
type AccessMode uint8

const (
	// ReadWrite registers accept both reads and writes.
	ReadWrite AccessMode = iota
	// ReadOnly registers reject writes; the generator never produces one.
	ReadOnly
)

// String returns the short form used in the map file and in logs.
func (m AccessMode) String() string {
	if m == ReadOnly {
		return "ro"
	}
	return "rw"
}

// AccessRecord is one entry of a register's access history.
type AccessRecord struct {
	Dir  bus.Direction
	Data uint16
	Time sim.VTimeInSec
}

// RegisterEntry describes one register of the chip.
type RegisterEntry struct {
	Name     string
	Addr     uint8
	BitWidth uint8
	Access   AccessMode

	lastWritten   uint16
	hasLastWrite  bool
	resetValue    uint16
	hasResetValue bool

	// History records every modeled access in order.
	History []AccessRecord
}

// MaxValue returns the largest value the register can hold.
func (r *RegisterEntry) MaxValue() uint16 {
	if r.BitWidth >= 16 {
		return 0xFFFF
	}
	return uint16(1)<<r.BitWidth - 1
}

// LastWritten returns the most recent written value, if any write happened
// since the last reset.
func (r *RegisterEntry) LastWritten() (uint16, bool) {
	return r.lastWritten, r.hasLastWrite
}

// ResetValue returns the value the register holds after a chip reset, if
// one is defined for it.
func (r *RegisterEntry) ResetValue() (uint16, bool) {
	return r.resetValue, r.hasResetValue
}

// WithResetValue returns a copy of the entry with its reset value set.
func (r RegisterEntry) WithResetValue(v uint16) RegisterEntry {
	r.resetValue = v & r.MaxValue()
	r.hasResetValue = true
	return r
}

// Model is the in-memory register table. Entries are created once at
// initialization and never destroyed during a run.
type Model struct {
	names  []string
	byName map[string]*RegisterEntry
	byAddr map[uint8]*RegisterEntry
}

// NewModel builds a model from expanded register entries. Array-typed map
// entries must already be expanded (see LoadMap / Expand).
func NewModel(entries []RegisterEntry) (*Model, error) {
	m := &Model{
		byName: make(map[string]*RegisterEntry),
		byAddr: make(map[uint8]*RegisterEntry),
	}
	for i := range entries {
		e := entries[i]
		if e.BitWidth == 0 || e.BitWidth > 16 {
			return nil, fmt.Errorf(
				"regmodel: %s: bit width %d out of range", e.Name, e.BitWidth)
		}
		if _, ok := m.byName[e.Name]; ok {
			return nil, fmt.Errorf("regmodel: duplicate register %s", e.Name)
		}
		if prev, ok := m.byAddr[e.Addr]; ok {
			return nil, fmt.Errorf(
				"regmodel: %s and %s share address 0x%02X",
				prev.Name, e.Name, e.Addr)
		}
		stored := e
		m.byName[e.Name] = &stored
		m.byAddr[e.Addr] = &stored
		m.names = append(m.names, e.Name)
	}
	if len(m.names) == 0 {
		return nil, fmt.Errorf("regmodel: empty register map")
	}
	return m, nil
}

// Names returns the register names in map order.
func (m *Model) Names() []string {
	return m.names
}

// Lookup returns the entry for a register name.
func (m *Model) Lookup(name string) (*RegisterEntry, bool) {
	e, ok := m.byName[name]
	return e, ok
}

// LookupAddr returns the entry at a bus address.
func (m *Model) LookupAddr(addr uint8) (*RegisterEntry, bool) {
	e, ok := m.byAddr[addr]
	return e, ok
}

// ApplyWrite records a write: the last-written value becomes the data
// masked to the register's width, and the access history grows.
func (m *Model) ApplyWrite(name string, data uint16, t sim.VTimeInSec) error {
	e, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("regmodel: unknown register %s", name)
	}
	masked := data & e.MaxValue()
	e.lastWritten = masked
	e.hasLastWrite = true
	e.History = append(e.History, AccessRecord{Dir: bus.Write, Data: masked, Time: t})
	return nil
}

// RecordRead appends a read to the register's access history.
func (m *Model) RecordRead(name string, data uint16, t sim.VTimeInSec) {
	if e, ok := m.byName[name]; ok {
		e.History = append(e.History, AccessRecord{Dir: bus.Read, Data: data, Time: t})
	}
}

// PredictRead returns the value a read of the register should produce:
// the last-written value if one exists, otherwise the reset value.
// known is false when neither exists; such reads are checked as
// don't-care.
func (m *Model) PredictRead(name string) (value uint16, known bool) {
	e, ok := m.byName[name]
	if !ok {
		return 0, false
	}
	if e.hasLastWrite {
		return e.lastWritten, true
	}
	if e.hasResetValue {
		return e.resetValue, true
	}
	return 0, false
}

// ResetAll invalidates every last-written value, so subsequent reads fall
// back to reset values. Called when the reset detector recognizes the
// soft-reset control write.
func (m *Model) ResetAll() {
	for _, name := range m.names {
		e := m.byName[name]
		e.lastWritten = 0
		e.hasLastWrite = false
	}
}

// AccessCounts returns per-register counts of modeled reads and writes,
// useful for the end-of-run statistics report.
func (m *Model) AccessCounts() map[string][2]int {
	counts := make(map[string][2]int, len(m.names))
	for _, name := range m.names {
		e := m.byName[name]
		var c [2]int
		for _, rec := range e.History {
			if rec.Dir == bus.Write {
				c[1]++
			} else {
				c[0]++
			}
		}
		counts[name] = c
	}
	return counts
}

// SortedNames returns the register names sorted alphabetically, for
// stable report output.
func (m *Model) SortedNames() []string {
	names := append([]string(nil), m.names...)
	sort.Strings(names)
	return names
}
