package ir

import "github.com/veldt-lang/veldt/analysis"

// Value is one normalized scalar slot's worth of data.
type Value interface {
	isValue()
}

var (
	_ Value = (*Scalar)(nil)
	_ Value = (*Null)(nil)
	_ Value = (*Ref)(nil)
	_ Value = (*FuncRef)(nil)
	_ Value = (*Composite)(nil)
)

type Scalar struct {
	Type analysis.Type
	Bits int64
}

func (*Scalar) isValue() {}

type Null struct{}

func (*Null) isValue() {}

// Ref points at a normalized record.
type Ref struct {
	Target *Record
}

func (*Ref) isValue() {}

// FuncRef is a callable reference, the normalized form of a closure's
// function half and the element of materialized dispatch tables.
type FuncRef struct {
	Method *Method
}

func (*FuncRef) isValue() {}

// Composite groups the slots of one multi-slot element inside a
// mixed-layout array.
type Composite struct {
	Slots []Value
}

func (*Composite) isValue() {}

// Record is a normalized heap value.
//
// Exactly one of the three shapes is populated: Values (class fields in
// layout order, or the plain scalar sequence a flattened variant instance
// collapsed to, or single-slot/mixed array elements), or Columns (the
// parallel per-column arrays a complex-layout array was split into).
type Record struct {
	Name    string
	Type    analysis.Type
	Class   *Class // nil for arrays, globals, flattened data
	Values  []Value
	Columns []*Record
}

// Module is what the middle end produces for code generation.
type Module struct {
	Name string
	// Classes in identity order: Classes[i].MinID == i does not hold in
	// general (gaps belong to ranges), but the slice is sorted by MinID.
	Classes []*Class
	// Types maps original type hashes to their normalization records.
	Types map[uint64]*NormType
	// Flats maps variant roots to their flattening records.
	Flats map[analysis.ClassID]*FlatInfo
	// Tables are the multi-method tables, one per (root, method) that is
	// dispatched across a whole hierarchy.
	Tables []*MMTable
	// Methods are all normalized methods, including synthetic ones.
	Methods []*Method
	// Records are the normalized live heap values.
	Records []*Record
	// Roots are the module entry points, re-pointed at normalized methods.
	Roots []*Method
	// Overflow holds every spill slot allocated for oversized signatures;
	// nil when nothing spilled.
	Overflow *Global
}

// ClassOf finds the normalized descriptor for a source class id.
func (m *Module) ClassOf(id analysis.ClassID) *Class {
	for _, c := range m.Classes {
		if c.Source == id {
			return c
		}
	}
	return nil
}
