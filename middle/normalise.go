package middle

import (
	"log/slog"

	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/ir"
	"github.com/veldt-lang/veldt/middle/normerr"
)

// NormType computes (or returns the memoized) normalization record for t.
// Records are immutable once computed and shared by every user of the type.
// Open types are fatal: they mean the upstream analysis leaked an unresolved
// type into the middle end.
func (p *Pass) NormType(t analysis.Type) (*ir.NormType, error) {
	hash := t.Hash()
	if cached, ok := p.types[hash]; ok {
		return cached, nil
	}
	n := typeNormaliser{
		Logger: p.logger.With("section", "middle.normalise"),
		Pass:   p,
	}
	res, err := n.process(t)
	if err != nil {
		return nil, err
	}
	p.types[hash] = res
	n.Debug("normalised type", "type", t.String(), "repr", res.Repr.String(), "size", res.Size)
	return res, nil
}

// normSlots flattens a list of types into one scalar slot list, recording
// the sub-range each original type occupies.
func (p *Pass) normSlots(types []analysis.Type) ([]analysis.Type, []ir.SlotRange, error) {
	var slots []analysis.Type
	ranges := make([]ir.SlotRange, 0, len(types))
	for _, t := range types {
		norm, err := p.NormType(t)
		if err != nil {
			return nil, nil, err
		}
		from := len(slots)
		slots = append(slots, norm.Slots()...)
		ranges = append(ranges, ir.SlotRange{From: from, To: len(slots)})
	}
	return slots, ranges, nil
}

type typeNormaliser struct {
	*slog.Logger
	*Pass
}

func (n typeNormaliser) process(t analysis.Type) (*ir.NormType, error) {
	switch t := t.(type) {
	case *analysis.Void, *analysis.ModuleNS:
		// degenerate: no runtime representation at all
		return &ir.NormType{Repr: analysis.VoidType, Size: 0}, nil

	case *analysis.Enum:
		return &ir.NormType{Repr: analysis.IntType, Size: 1}, nil

	case *analysis.Buffer:
		// opaque buffers become a (buffer, offset) pair
		parts := []analysis.Type{analysis.BufferType, analysis.IntType}
		return &ir.NormType{
			Repr:   &analysis.Tuple{Elems: parts},
			Parts:  parts,
			Ranges: []ir.SlotRange{{From: 0, To: 1}, {From: 1, To: 2}},
			Size:   2,
		}, nil

	case *analysis.Array:
		return n.processArray(t)

	case *analysis.View:
		return n.processView(t)

	case *analysis.Tuple:
		return n.processTuple(t.Elems)

	case *analysis.Closure:
		return n.processClosure(t)

	case *analysis.Data:
		return n.processData(t)

	case *analysis.Open:
		return nil, normerr.New(normerr.NewOpenType{Type: t})

	default:
		// scalars and opaque references keep their representation
		return &ir.NormType{Repr: t, Size: 1}, nil
	}
}

func (n typeNormaliser) processArray(t *analysis.Array) (*ir.NormType, error) {
	elem, err := n.NormType(t.Elem)
	if err != nil {
		return nil, err
	}
	switch {
	case elem.Size == 0:
		// elements vanished entirely; keep a zero-size marker array so
		// lengths still exist
		return &ir.NormType{Repr: &analysis.Array{Elem: analysis.VoidType}, Size: 1}, nil
	case elem.Size == 1:
		return &ir.NormType{Repr: &analysis.Array{Elem: elem.Repr}, Size: 1}, nil
	case n.cfg.Arrays == analysis.LayoutMixed:
		// one array of element-sized composite records, no column split
		return &ir.NormType{Repr: &analysis.Array{Elem: &analysis.Tuple{Elems: elem.Parts}}, Size: 1}, nil
	default:
		// struct-of-arrays: one array per constituent column
		columns := make([]analysis.Type, len(elem.Parts))
		ranges := make([]ir.SlotRange, len(elem.Parts))
		for i, part := range elem.Parts {
			columns[i] = &analysis.Array{Elem: part}
			ranges[i] = ir.SlotRange{From: i, To: i + 1}
		}
		return &ir.NormType{
			Repr:   &analysis.Tuple{Elems: columns},
			Parts:  columns,
			Ranges: ranges,
			Size:   len(columns),
		}, nil
	}
}

// processView normalizes the underlying array and appends two integer slots,
// offset and length, to the flattened layout.
func (n typeNormaliser) processView(t *analysis.View) (*ir.NormType, error) {
	arr, err := n.NormType(t.Arr)
	if err != nil {
		return nil, err
	}
	parts := append(append([]analysis.Type{}, arr.Slots()...), analysis.IntType, analysis.IntType)
	size := len(parts)
	return &ir.NormType{
		Repr:  &analysis.Tuple{Elems: parts},
		Parts: parts,
		Ranges: []ir.SlotRange{
			{From: 0, To: arr.Size},
			{From: size - 2, To: size - 1},
			{From: size - 1, To: size},
		},
		Size: size,
	}, nil
}

func (n typeNormaliser) processTuple(elems []analysis.Type) (*ir.NormType, error) {
	slots, ranges, err := n.normSlots(elems)
	if err != nil {
		return nil, err
	}
	switch len(slots) {
	case 0:
		return &ir.NormType{Repr: analysis.VoidType, Size: 0}, nil
	case 1:
		return &ir.NormType{Repr: slots[0], Ranges: ranges, Size: 1}, nil
	default:
		return &ir.NormType{
			Repr:   &analysis.Tuple{Elems: slots},
			Parts:  slots,
			Ranges: ranges,
			Size:   len(slots),
		}, nil
	}
}

// processClosure splits a closure into a plain function reference (with a
// capture-cell parameter prepended) and a reference slot for the captured
// state. Oversized slot lists are capped here; the excess travels through
// overflow slots when calls are rewritten.
func (n typeNormaliser) processClosure(t *analysis.Closure) (*ir.NormType, error) {
	params, _, err := n.normSlots(t.Params)
	if err != nil {
		return nil, err
	}
	params = append([]analysis.Type{analysis.AnyObjectType}, params...)
	results, _, err := n.normSlots(t.Results)
	if err != nil {
		return nil, err
	}
	fn := &analysis.Func{
		Params:  capSlots(params, n.cfg.MaxParamSlots),
		Results: capSlots(results, n.cfg.MaxReturnSlots),
	}
	parts := []analysis.Type{fn, analysis.AnyObjectType}
	return &ir.NormType{
		Repr:   &analysis.Tuple{Elems: parts},
		Parts:  parts,
		Ranges: []ir.SlotRange{{From: 0, To: 1}, {From: 1, To: 2}},
		Size:   2,
	}, nil
}

func (n typeNormaliser) processData(t *analysis.Data) (*ir.NormType, error) {
	root := n.mod.Class(t.Root)
	if root == nil {
		// no backing hierarchy: opaque reference
		return &ir.NormType{Repr: t, Size: 1}, nil
	}
	state, flat, err := n.decideFlatten(t.Root)
	if err != nil {
		return nil, err
	}
	switch state {
	case flatEnum:
		// the whole hierarchy collapsed to its tag
		return &ir.NormType{Repr: analysis.IntType, Size: 1}, nil
	case flatDone:
		return flat.Norm, nil
	default:
		return &ir.NormType{Repr: &analysis.ClassRef{Name: root.Name, Class: t.Root}, Size: 1}, nil
	}
}

func capSlots(slots []analysis.Type, max int) []analysis.Type {
	if max > 0 && len(slots) > max {
		return slots[:max]
	}
	return slots
}
