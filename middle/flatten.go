package middle

import (
	"iter"
	"slices"

	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/ir"
	"github.com/veldt-lang/veldt/util"
)

// decideFlatten decides, once per variant hierarchy root, whether instances
// can live inline as a fixed tuple of scalars or must stay boxed. The
// decision is memoized through a tri-state tag on the pass: a root that
// recurses into itself mid-computation is forced boxed instead of looping.
func (p *Pass) decideFlatten(root analysis.ClassID) (flatState, *ir.FlatInfo, error) {
	switch p.flatState[root] {
	case flatInProgress:
		// the root's own layout mentions the root: box to break the cycle
		p.flatState[root] = flatBoxed
		return flatBoxed, nil, nil
	case flatBoxed:
		return flatBoxed, nil, nil
	case flatEnum:
		return flatEnum, nil, nil
	case flatDone:
		return flatDone, p.flats[root], nil
	}

	p.flatState[root] = flatInProgress
	state, flat, err := p.computeFlatten(root)
	if err != nil {
		return flatNotStarted, nil, err
	}
	if p.flatState[root] == flatBoxed {
		// a recursive re-entry boxed us while we were computing
		state, flat = flatBoxed, nil
	}
	p.flatState[root] = state
	if flat != nil {
		p.flats[root] = flat
	}
	p.logger.Debug("variant flattening decided",
		"section", "middle.flatten", "root", p.mod.Class(root).Name, "state", state)
	return state, flat, nil
}

func (p *Pass) computeFlatten(root analysis.ClassID) (flatState, *ir.FlatInfo, error) {
	rootClass := p.mod.Class(root)
	if rootClass.Facts.Boxed {
		return flatBoxed, nil, nil
	}

	cases := p.taggedCases(rootClass)
	members := append([]*analysis.Class{rootClass}, cases...)

	// facts are gathered over the whole live subtree: a field or capture on
	// a deeper descendant must block the enum collapse just like one on a
	// direct case
	fieldCount := 0
	closedOver := false
	recursive := false
	for member := range p.liveMembers(rootClass) {
		fieldCount += len(normFieldsOf(member))
		closedOver = closedOver || member.Facts.ClosedOver
		recursive = recursive || member.Facts.Recursive
	}

	// with no payload anywhere the whole hierarchy behaves as an enum
	if fieldCount == 0 && !closedOver {
		return flatEnum, nil, nil
	}

	// flattening is only attempted for single-level variant families
	for _, c := range cases {
		if len(c.Children) > 0 {
			return flatBoxed, nil, nil
		}
	}
	if closedOver || recursive {
		return flatBoxed, nil, nil
	}

	flat, err := p.flattenLayout(rootClass, members)
	if err != nil {
		return flatNotStarted, nil, err
	}
	if flat == nil || flat.Norm.Size > p.cfg.MaxFlatSlots {
		return flatBoxed, nil, nil
	}
	return flatDone, flat, nil
}

// flattenLayout concatenates, per declared field in declaration order, the
// normalized slot ranges, producing the one shared scalar layout every case
// uses. The tag occupies slot 0 whenever the hierarchy has more than one
// case.
func (p *Pass) flattenLayout(rootClass *analysis.Class, members []*analysis.Class) (*ir.FlatInfo, error) {
	var slots []analysis.Type
	var tagType analysis.Type
	// members[0] is the root: a discriminant is only needed once there is
	// more than one case to tell apart
	if len(members) > 2 {
		tagType = analysis.IntType
		slots = append(slots, tagType)
	}
	fieldRanges := make(map[ir.FieldKey]ir.SlotRange)
	for _, member := range members {
		for _, field := range normFieldsOf(member) {
			norm, err := p.NormType(field.Type)
			if err != nil {
				return nil, err
			}
			from := len(slots)
			slots = append(slots, norm.Slots()...)
			fieldRanges[ir.FieldKey{Class: member.ID, Field: field.Name}] = ir.SlotRange{From: from, To: len(slots)}
		}
	}
	var norm *ir.NormType
	switch len(slots) {
	case 0:
		return nil, nil
	case 1:
		norm = &ir.NormType{Repr: slots[0], Size: 1}
	default:
		norm = &ir.NormType{Repr: &analysis.Tuple{Elems: slots}, Parts: slots, Size: len(slots)}
	}
	return &ir.FlatInfo{
		Root:        rootClass.ID,
		Norm:        norm,
		TagType:     tagType,
		FieldRanges: fieldRanges,
	}, nil
}

// liveMembers yields c and every live descendant, pre-order.
func (p *Pass) liveMembers(c *analysis.Class) iter.Seq[*analysis.Class] {
	seq := util.SingleIter(c)
	for _, id := range c.Children {
		if child := p.mod.Class(id); child != nil && child.Facts.Live {
			seq = util.ConcatIter(seq, p.liveMembers(child))
		}
	}
	return seq
}

// taggedCases returns the root's direct subclasses in declared tag order.
func (p *Pass) taggedCases(rootClass *analysis.Class) []*analysis.Class {
	cases := make([]*analysis.Class, 0, len(rootClass.Children))
	for _, id := range rootClass.Children {
		if c := p.mod.Class(id); c != nil && c.Facts.Live {
			cases = append(cases, c)
		}
	}
	slices.SortStableFunc(cases, func(a, b *analysis.Class) int { return a.Tag - b.Tag })
	return cases
}

// normFieldsOf filters a class's declared fields down to the ones that need
// storage: readable, non-constant, live.
func normFieldsOf(c *analysis.Class) []*analysis.Field {
	fields := make([]*analysis.Field, 0, len(c.Fields))
	for _, f := range c.Fields {
		if f.Read && !f.Constant && f.Live {
			fields = append(fields, f)
		}
	}
	return fields
}

// isFlattened reports whether the class belongs to a variant family whose
// instances lost heap identity.
func (p *Pass) isFlattened(id analysis.ClassID) bool {
	return p.flatState[p.mod.RootOf(id)] == flatDone
}
