package middle

import (
	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/ir"
	"github.com/veldt-lang/veldt/util"
)

// normRecord rewrites one live heap record into the new layout. The output
// shell is memoized before recursing so cyclic record graphs terminate and
// repeated references share one normalized record.
func (p *Pass) normRecord(r *analysis.Record) (*ir.Record, error) {
	if done, ok := p.records[r]; ok {
		return done, nil
	}
	out := &ir.Record{Type: r.Type}
	p.records[r] = out

	if r.IsArray() {
		if err := p.normArrayRecord(r, out); err != nil {
			return nil, err
		}
		p.out.Records = append(p.out.Records, out)
		return out, nil
	}

	c := p.mod.Class(r.Class)
	if c == nil {
		// opaque (buffer) records pass through untouched
		out.Values = rawValues(r.Elems)
		p.out.Records = append(p.out.Records, out)
		return out, nil
	}

	root := p.mod.RootOf(r.Class)
	switch p.flatState[root] {
	case flatEnum:
		// the instance degenerates to its tag
		out.Values = []ir.Value{&ir.Scalar{Type: analysis.IntType, Bits: int64(c.Tag)}}
		return out, nil
	case flatDone:
		// a plain run of scalars; the instance keeps no heap identity
		values, err := p.flattenInstance(r)
		if err != nil {
			return nil, err
		}
		out.Type = p.flats[root].Norm.Repr
		out.Values = values
		return out, nil
	}

	irc := p.classes[r.Class]
	if irc != nil {
		out.Class = irc
	}
	values, err := p.normClassFields(c, r)
	if err != nil {
		return nil, err
	}
	out.Values = values
	p.out.Records = append(p.out.Records, out)
	return out, nil
}

// normClassFields copies each kept field's value through the generic value
// normalizer, in layout order (inherited fields first).
func (p *Pass) normClassFields(c *analysis.Class, r *analysis.Record) ([]ir.Value, error) {
	var values []ir.Value
	for i, field := range p.lineageFields(c) {
		if !(field.Read && !field.Constant && field.Live) {
			continue
		}
		var v analysis.Value = &analysis.Null{}
		if i < len(r.Fields) {
			v = r.Fields[i]
		}
		slots, err := p.normValue(v, field.Type)
		if err != nil {
			return nil, err
		}
		values = append(values, slots...)
	}
	return values, nil
}

// lineageFields is every declared field of c and its ancestors, ancestors
// first, declaration order, no liveness filtering; it matches the order the
// analysis stores record field values in.
func (p *Pass) lineageFields(c *analysis.Class) []*analysis.Field {
	var chain []*analysis.Class
	for at := c; at != nil; at = p.mod.Class(at.Parent) {
		chain = append(chain, at)
	}
	var fields []*analysis.Field
	for cl := range util.Reverse(chain) {
		fields = append(fields, cl.Fields...)
	}
	return fields
}

func (p *Pass) normArrayRecord(r *analysis.Record, out *ir.Record) error {
	arr := r.Type.(*analysis.Array)
	elem, err := p.NormType(arr.Elem)
	if err != nil {
		return err
	}
	norm, err := p.NormType(arr)
	if err != nil {
		return err
	}
	out.Type = norm.Repr

	switch {
	case elem.Size == 0:
		out.Values = nil
		return nil

	case elem.Size == 1:
		// rewrite element by element in place
		values := make([]ir.Value, len(r.Elems))
		for i, e := range r.Elems {
			slots, err := p.normValue(e, arr.Elem)
			if err != nil {
				return err
			}
			values[i] = slots[0]
		}
		out.Values = values
		return nil

	case p.cfg.Arrays == analysis.LayoutMixed:
		// one array of element-sized composite records
		values := make([]ir.Value, len(r.Elems))
		for i, e := range r.Elems {
			slots, err := p.normValue(e, arr.Elem)
			if err != nil {
				return err
			}
			values[i] = &ir.Composite{Slots: slots}
		}
		out.Values = values
		return nil

	default:
		// split into one column array per constituent slot
		columns := make([]*ir.Record, elem.Size)
		for j := range columns {
			columns[j] = &ir.Record{
				Type:   &analysis.Array{Elem: elem.Parts[j]},
				Values: make([]ir.Value, len(r.Elems)),
			}
		}
		for i, e := range r.Elems {
			slots, err := p.normValue(e, arr.Elem)
			if err != nil {
				return err
			}
			for j, slot := range slots {
				columns[j].Values[i] = slot
			}
		}
		out.Columns = columns
		return nil
	}
}

// normValue rewrites one original value into its normalized slot values. The
// result always has exactly as many entries as the type's normalization
// record has slots.
func (p *Pass) normValue(v analysis.Value, t analysis.Type) ([]ir.Value, error) {
	norm, err := p.NormType(t)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case *analysis.Scalar:
		return []ir.Value{&ir.Scalar{Type: norm.Repr, Bits: v.Bits}}, nil

	case *analysis.Null:
		nulls := make([]ir.Value, norm.Size)
		for i := range nulls {
			nulls[i] = &ir.Null{}
		}
		return nulls, nil

	case *analysis.Ref:
		return p.normRef(v.Target)

	case *analysis.ClosureVal:
		// callable reference first, then the captured state
		owner := p.mod.Class(v.Fn.Class)
		var fn ir.Value = &ir.Null{}
		if owner != nil {
			if m := owner.FindMethod(v.Fn.Name); m != nil {
				fn = &ir.FuncRef{Method: p.methodFor(m)}
			}
		}
		state, err := p.normValue(v.State, analysis.AnyObjectType)
		if err != nil {
			return nil, err
		}
		return append([]ir.Value{fn}, state...), nil

	case *analysis.TupleVal:
		var slots []ir.Value
		for i, e := range v.Elems {
			part, err := p.normValue(e, v.Type.Elems[i])
			if err != nil {
				return nil, err
			}
			slots = append(slots, part...)
		}
		return slots, nil

	case *analysis.ViewVal:
		slots, err := p.normRef(v.Arr)
		if err != nil {
			return nil, err
		}
		slots = append(slots,
			&ir.Scalar{Type: analysis.IntType, Bits: v.Off},
			&ir.Scalar{Type: analysis.IntType, Bits: v.Len})
		return slots, nil

	case *analysis.BufVal:
		slots, err := p.normRef(v.Buf)
		if err != nil {
			return nil, err
		}
		return append(slots, &ir.Scalar{Type: analysis.IntType, Bits: v.Off}), nil

	default:
		return []ir.Value{&ir.Null{}}, nil
	}
}

// normRef substitutes the normalized record behind a reference. Records of
// flattened variant types are inlined as their scalar values instead; arrays
// split into columns expand to one reference per column.
func (p *Pass) normRef(target *analysis.Record) ([]ir.Value, error) {
	if target == nil {
		return []ir.Value{&ir.Null{}}, nil
	}
	if target.Class != analysis.NoClass {
		root := p.mod.RootOf(target.Class)
		switch p.flatState[root] {
		case flatEnum:
			c := p.mod.Class(target.Class)
			return []ir.Value{&ir.Scalar{Type: analysis.IntType, Bits: int64(c.Tag)}}, nil
		case flatDone:
			return p.flattenInstance(target)
		}
	}
	rec, err := p.normRecord(target)
	if err != nil {
		return nil, err
	}
	if rec.Columns != nil {
		refs := make([]ir.Value, len(rec.Columns))
		for i, col := range rec.Columns {
			refs[i] = &ir.Ref{Target: col}
		}
		return refs, nil
	}
	return []ir.Value{&ir.Ref{Target: rec}}, nil
}

// flattenInstance inlines a flattened variant instance into the shared
// scalar layout: tag first when the layout has one, each field's slots at
// its recorded sub-range, and typed zero scalars in every unused slot.
// Memoized so repeated references share the work.
func (p *Pass) flattenInstance(r *analysis.Record) ([]ir.Value, error) {
	if done, ok := p.flatValues[r]; ok {
		return done, nil
	}
	c := p.mod.Class(r.Class)
	flat := p.flats[p.mod.RootOf(r.Class)]

	values := make([]ir.Value, flat.Norm.Size)
	for i, slotType := range flat.Norm.Slots() {
		values[i] = &ir.Scalar{Type: slotType, Bits: 0}
	}
	if flat.TagType != nil {
		values[0] = &ir.Scalar{Type: flat.TagType, Bits: int64(c.Tag)}
	}
	p.flatValues[r] = values

	for i, field := range p.lineageFields(c) {
		slotRange, ok := flat.FieldRanges[ir.FieldKey{Class: field.Owner, Field: field.Name}]
		if !ok || i >= len(r.Fields) {
			continue
		}
		slots, err := p.normValue(r.Fields[i], field.Type)
		if err != nil {
			return nil, err
		}
		copy(values[slotRange.From:slotRange.To], slots)
	}
	return values, nil
}

func rawValues(elems []analysis.Value) []ir.Value {
	values := make([]ir.Value, len(elems))
	for i, e := range elems {
		if s, ok := e.(*analysis.Scalar); ok {
			values[i] = &ir.Scalar{Type: s.Type, Bits: s.Bits}
		} else {
			values[i] = &ir.Null{}
		}
	}
	return values
}
