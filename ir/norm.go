// Package ir is the normalized intermediate representation the middle end
// hands to code generation: layout-concrete classes with identity ranges and
// dispatch tables, one immutable normalization record per reachable type,
// and every live heap value rewritten into the new layout.
package ir

import (
	"github.com/veldt-lang/veldt/analysis"
)

// SlotRange is a half-open [From, To) window of scalar slots inside a
// flattened layout.
type SlotRange struct {
	From, To int
}

func (r SlotRange) Len() int { return r.To - r.From }

// NormType records how one original type is represented after normalization.
// Once built it is immutable and shared by every user of the type.
type NormType struct {
	// Repr is the representation type. For multi-slot decompositions it is
	// a Tuple over Parts.
	Repr analysis.Type
	// Parts lists the constituent scalar slot types, only when the type
	// decomposes into more than one slot.
	Parts []analysis.Type
	// Ranges gives, per syntactic constituent of the original type, the
	// slot sub-range it occupies in Parts. Nil for non-composite types.
	Ranges []SlotRange
	// Size is the total scalar slot count.
	Size int
}

// Slots returns the scalar slot types, also for single-slot records where
// Parts is not populated.
func (n *NormType) Slots() []analysis.Type {
	if n.Parts != nil {
		return n.Parts
	}
	if n.Size == 0 {
		return nil
	}
	return []analysis.Type{n.Repr}
}

// FieldKey names a declared field inside a variant hierarchy.
type FieldKey struct {
	Class analysis.ClassID
	Field string
}

// FlatInfo is the flattening record of a variant hierarchy root: the shared
// scalar layout every case uses, plus where each original field landed.
type FlatInfo struct {
	Root analysis.ClassID
	Norm *NormType
	// TagType is the discriminant's slot type when the flattened form still
	// needs one (slot 0); nil for single-case hierarchies.
	TagType analysis.Type
	// FieldRanges maps each declared field to its slot sub-range in the
	// shared layout.
	FieldRanges map[FieldKey]SlotRange
}
