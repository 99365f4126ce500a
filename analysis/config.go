package analysis

import (
	"fortio.org/safecast"
)

// ArrayLayout selects how arrays of multi-slot elements are represented.
type ArrayLayout uint8

const (
	// LayoutComplex splits such arrays into one array per constituent
	// column (struct-of-arrays).
	LayoutComplex ArrayLayout = iota
	// LayoutMixed keeps one array of element-sized composite records.
	LayoutMixed
)

func (l ArrayLayout) String() string {
	if l == LayoutMixed {
		return "mixed"
	}
	return "complex"
}

// Config carries the target-specific limits and hooks the middle end needs.
// The zero value is not usable; call DefaultConfig.
type Config struct {
	MaxParamSlots  int // positional parameter slots per calling convention
	MaxReturnSlots int // positional return slots per calling convention
	MaxFlatSlots   int // auto-flattening gives up above this slot count

	Arrays            ArrayLayout
	EraseOverflowRefs bool // erase reference types to AnyObject/AnyFunc before spilling
	Devirtualize      bool // skip multi-method tables with < 2 distinct entries

	// FieldOffsets maps per-field slot sizes to per-field offsets starting
	// at start. Targets with padding or alignment rules replace this.
	FieldOffsets func(sizes []int, start int) []int
}

func DefaultConfig() *Config {
	return &Config{
		MaxParamSlots:  8,
		MaxReturnSlots: 2,
		MaxFlatSlots:   16,
		Arrays:         LayoutComplex,
		Devirtualize:   true,
		FieldOffsets:   SequentialOffsets,
	}
}

// SequentialOffsets packs fields back to back, one slot per size unit, with
// no padding. Offsets are checked to stay within 32-bit addressing.
func SequentialOffsets(sizes []int, start int) []int {
	offsets := make([]int, len(sizes))
	at := start
	for i, size := range sizes {
		offsets[i] = int(safecast.MustConvert[int32](at))
		at += size
	}
	return offsets
}
