package ir

import (
	"fmt"

	"github.com/veldt-lang/veldt/analysis"
)

// Field is a laid-out scalar field: multi-slot source fields have already
// been expanded to one Field per slot.
type Field struct {
	Name   string
	Type   analysis.Type
	Offset int
}

// Class is a normalized class descriptor. MinID/MaxID is the half-open
// identity range covering the class and its live descendants, so
// `MinID <= id < MaxID` is the whole subtype test.
type Class struct {
	Name   string
	Source analysis.ClassID
	MinID  int
	MaxID  int
	Fields []Field
	VTable *VTable
	Facts  analysis.Facts
}

// Slot is one virtual-table entry. Slot 0 is always the constructor.
type Slot struct {
	Name       string
	Method     *Method // nil when Abstract
	Abstract   bool
	Overridden bool // some subclass replaces this slot
	Overriding bool // this slot replaces a superclass slot
}

type VTable struct {
	Slots []Slot
}

// SlotIndex returns the table index of the named method, or -1.
func (t *VTable) SlotIndex(name string) int {
	for i, slot := range t.Slots {
		if slot.Name == name {
			return i
		}
	}
	return -1
}

// MMTable resolves one virtual method across a whole hierarchy in a single
// indexed load: Entries[classId - Base] is the most-specific implementation
// for that concrete class.
type MMTable struct {
	Root    analysis.ClassID
	Name    string
	Base    int // the root's MinID
	Entries []*Method
	// Materialized is the table as a heap record of callable values, built
	// only when the receiver representation is flattened and so cannot
	// carry a runtime tag for indirect dispatch.
	Materialized *Record
}

// Lookup resolves a class id against the table.
func (t *MMTable) Lookup(classID int) *Method {
	i := classID - t.Base
	if i < 0 || i >= len(t.Entries) {
		return nil
	}
	return t.Entries[i]
}

// Method is a normalized method: signature rewritten to scalar slots, body
// either rewritten by the SSA collaborator or absent when abstract.
type Method struct {
	Name     string
	Owner    analysis.ClassID
	Params   []analysis.Type
	Results  []analysis.Type
	Abstract bool
	Body     *Body

	// Spilled lists the overflow fields carrying the parameter/return
	// slots that did not fit the calling convention, in spill order.
	Spilled []*Field
}

// Body is a normalized method body. Synthetic bodies (for example the
// generated comparator of a flattened variant) carry a marker instead of
// rewritten source SSA.
type Body struct {
	Source    *analysis.Body
	Synthetic string
}

func (m *Method) String() string {
	return fmt.Sprintf("%s/%d->%d", m.Name, len(m.Params), len(m.Results))
}

// Global is a synthetic module-level record holding storage fields that
// belong to no class, such as overflow spill slots.
type Global struct {
	Name   string
	Fields []*Field
}
