package regmodel

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// MapEntry is one register declaration in a map file. A Count above 1
// declares an array of registers that expands into Count indexed entries
// at load time.
type MapEntry struct {
	// Addr is the bus address of the register, or of the first register
	// of an array group.
	Addr uint8 `json:"addr"`

	// BitWidth is the register width in bits (1..16). For array groups
	// it may be overridden per index by BitWidths.
	BitWidth uint8 `json:"bit_width"`

	// Access is "rw" (default) or "ro".
	Access string `json:"access,omitempty"`

	// Count expands the entry into Count registers at consecutive
	// addresses. Zero or one declares a single register.
	Count int `json:"count,omitempty"`

	// BitWidths, when set on an array group, assigns widths cyclically
	// across the expanded registers. The MBIST result group uses
	// [12, 9, 9]: every third register is 12 bits wide, the rest 9.
	BitWidths []uint8 `json:"bit_widths,omitempty"`

	// Reset is the register's value after chip reset. Registers without
	// one read as don't-care until first written.
	Reset    uint16 `json:"reset,omitempty"`
	HasReset bool   `json:"has_reset,omitempty"`
}

// MapFile is the on-disk register map: register name to declaration.
type MapFile struct {
	Regs map[string]MapEntry `json:"regs"`
}

// LoadMapFile reads a JSON register map from a file.
func LoadMapFile(path string) (*MapFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("regmodel: reading map: %w", err)
	}

	var mf MapFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("regmodel: parsing map: %w", err)
	}

	return &mf, nil
}

// LoadMap reads a JSON register map from a file and expands it into a
// Model.
func LoadMap(path string) (*Model, error) {
	mf, err := LoadMapFile(path)
	if err != nil {
		return nil, err
	}
	return mf.Expand()
}

// Expand turns the map file into a Model, replacing every array group
// with one entry per index. Expansion is deterministic: groups are
// visited in address order and indexed entries are named NAME_<i>.
func (mf *MapFile) Expand() (*Model, error) {
	names := make([]string, 0, len(mf.Regs))
	for name := range mf.Regs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return mf.Regs[names[i]].Addr < mf.Regs[names[j]].Addr
	})

	var entries []RegisterEntry
	for _, name := range names {
		decl := mf.Regs[name]

		access := ReadWrite
		switch decl.Access {
		case "", "rw":
		case "ro":
			access = ReadOnly
		default:
			return nil, fmt.Errorf(
				"regmodel: %s: unknown access mode %q", name, decl.Access)
		}

		count := decl.Count
		if count <= 1 {
			entries = append(entries, makeEntry(
				name, decl.Addr, decl.BitWidth, access, decl))
			continue
		}

		if len(decl.BitWidths) > 0 && count%len(decl.BitWidths) != 0 {
			return nil, fmt.Errorf(
				"regmodel: %s: count %d not a multiple of the width pattern",
				name, count)
		}
		for i := 0; i < count; i++ {
			width := decl.BitWidth
			if len(decl.BitWidths) > 0 {
				width = decl.BitWidths[i%len(decl.BitWidths)]
			}
			entries = append(entries, makeEntry(
				fmt.Sprintf("%s_%d", name, i),
				decl.Addr+uint8(i), width, access, decl))
		}
	}

	return NewModel(entries)
}

func makeEntry(
	name string,
	addr uint8,
	width uint8,
	access AccessMode,
	decl MapEntry,
) RegisterEntry {
	e := RegisterEntry{
		Name:     name,
		Addr:     addr,
		BitWidth: width,
		Access:   access,
	}
	if decl.HasReset {
		e = e.WithResetValue(decl.Reset)
	}
	return e
}

// Chip identification constants, fixed by the chip's external straps.
const (
	ChipID   = 3
	ChipAddr = 0
)

// SoftResetCode written to SOFT_RST resets the whole register file.
const SoftResetCode uint16 = 0xA5A5

// SoftResetRegister is the control register the reset detector watches.
const SoftResetRegister = "SOFT_RST"

// DefaultMap returns the built-in Rock register map. CHIP_ID reads back
// the chip identification strapping; the MBIST result group splits its
// six registers into groups of three with widths 12, 9, 9.
func DefaultMap() *MapFile {
	return &MapFile{Regs: map[string]MapEntry{
		"CHIP_ID": {
			Addr: 0x00, BitWidth: 8, Access: "ro",
			Reset: ChipID<<4 | ChipAddr, HasReset: true,
		},
		"SOFT_RST": {
			Addr: 0x01, BitWidth: 16,
			Reset: 0, HasReset: true,
		},
		"SPI_CFG": {
			Addr: 0x02, BitWidth: 8,
			Reset: 0, HasReset: true,
		},
		"MCE_CFG": {
			Addr: 0x03, BitWidth: 12,
			Reset: 0, HasReset: true,
		},
		"ANODE_BIAS": {
			Addr: 0x10, BitWidth: 10, Count: 8,
			Reset: 0, HasReset: true,
		},
		"MBIST_RES": {
			Addr: 0x20, Count: 6, Access: "ro",
			BitWidths: []uint8{12, 9, 9},
			Reset:     0, HasReset: true,
		},
	}}
}

// DefaultModel expands the built-in map.
func DefaultModel() *Model {
	m, err := DefaultMap().Expand()
	if err != nil {
		panic(err) // the built-in map is known good
	}
	return m
}
