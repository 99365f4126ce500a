package middle

import (
	"strconv"

	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/ir"
)

// assignIdentity gives every live class a contiguous identity range so that
// `minID <= id < maxID` is an O(1) subtype test. Ordinary hierarchies are
// numbered depth-first; variant hierarchies are numbered by declared tag so
// tag-to-class-id arithmetic needs no lookup table. The two disciplines are
// never mixed within one hierarchy.
func (p *Pass) assignIdentity() error {
	next := 0
	for _, c := range p.mod.Classes {
		if !c.IsRoot() || !c.Facts.Live {
			continue
		}
		if c.IsData {
			state, _, err := p.decideFlatten(c.ID)
			if err != nil {
				return err
			}
			if state == flatEnum {
				// pure enums are plain integers, no identity needed
				continue
			}
			next = p.assignTagIDs(c, next)
		} else {
			next = p.assignTreeIDs(c, next)
		}
	}
	return nil
}

// assignTreeIDs numbers the subtree rooted at c in depth-first pre-order:
// each node's range starts where the previous sibling's subtree ended.
func (p *Pass) assignTreeIDs(c *analysis.Class, next int) int {
	min := next
	next++
	for _, childID := range c.Children {
		child := p.mod.Class(childID)
		if child == nil || !child.Facts.Live {
			continue
		}
		next = p.assignTreeIDs(child, next)
	}
	p.addClass(c, min, next)
	return next
}

// assignTagIDs places each case at the root's base offset plus its declared
// tag value; the parent's range is exactly the partition of those tags. The
// root itself shares id `base` with the tag-0 case, which is why allocated
// variant roots are rejected at snapshot load.
func (p *Pass) assignTagIDs(rootClass *analysis.Class, base int) int {
	maxTag := 0
	cases := p.taggedCases(rootClass)
	for _, c := range cases {
		if c.Tag > maxTag {
			maxTag = c.Tag
		}
	}
	end := base + maxTag + 1
	p.addClass(rootClass, base, end)
	for _, c := range cases {
		p.addClass(c, base+c.Tag, base+c.Tag+1)
	}
	return end
}

func (p *Pass) addClass(c *analysis.Class, min, max int) {
	irc := &ir.Class{
		Name:   c.Name,
		Source: c.ID,
		MinID:  min,
		MaxID:  max,
		Facts:  c.Facts,
	}
	p.classes[c.ID] = irc
	p.out.Classes = append(p.out.Classes, irc)
	p.logger.Debug("assigned identity range",
		"section", "middle.layout", "class", c.Name, "min", min, "max", max)
}

// layoutClasses computes every live class's normalized field list and lets
// the specialization strategy adjust it.
func (p *Pass) layoutClasses() error {
	laid := make(map[analysis.ClassID]bool)
	slotsUsed := make(map[analysis.ClassID]int)
	for _, c := range p.mod.Classes {
		if !c.Facts.Live {
			continue
		}
		if err := p.makeNormFields(c.ID, laid, slotsUsed); err != nil {
			return err
		}
	}
	for _, c := range p.mod.Classes {
		if irc := p.classes[c.ID]; irc != nil {
			irc.Fields = p.specializer.SpecializeLayout(p.mod, c, irc.Fields)
		}
	}
	return nil
}

// makeNormFields gathers the readable, non-constant, live fields of a class
// in declaration order: superclass fields are inherited verbatim (they are
// already laid out), new fields are appended with one scalar slot per
// normalized constituent. Flattened classes contribute no physical fields at
// all; their state lives in the flattened scalar layout of their type.
func (p *Pass) makeNormFields(id analysis.ClassID, laid map[analysis.ClassID]bool, slotsUsed map[analysis.ClassID]int) error {
	if laid[id] {
		return nil
	}
	laid[id] = true
	c := p.mod.Class(id)
	irc := p.classes[id]
	if c == nil || irc == nil {
		return nil
	}
	if p.isFlattened(id) {
		return nil
	}

	var fields []ir.Field
	start := 0
	if c.Parent != analysis.NoClass {
		if err := p.makeNormFields(c.Parent, laid, slotsUsed); err != nil {
			return err
		}
		if parent := p.classes[c.Parent]; parent != nil {
			fields = append(fields, parent.Fields...)
			start = slotsUsed[c.Parent]
		}
	}

	declared := normFieldsOf(c)
	sizes := make([]int, 0, len(declared))
	norms := make([]*ir.NormType, 0, len(declared))
	kept := make([]*analysis.Field, 0, len(declared))
	for _, f := range declared {
		norm, err := p.NormType(f.Type)
		if err != nil {
			return err
		}
		if norm.Size == 0 {
			continue
		}
		kept = append(kept, f)
		norms = append(norms, norm)
		sizes = append(sizes, norm.Size)
	}

	offsets := p.cfg.FieldOffsets(sizes, start)
	total := start
	if n := len(kept); n > 0 {
		total = offsets[n-1] + sizes[n-1]
	}
	for i, f := range kept {
		slots := norms[i].Slots()
		if len(slots) == 1 {
			fields = append(fields, ir.Field{Name: f.Name, Type: slots[0], Offset: offsets[i]})
		} else {
			for j, slot := range slots {
				fields = append(fields, ir.Field{
					Name:   f.Name + "." + strconv.Itoa(j),
					Type:   slot,
					Offset: offsets[i] + j,
				})
			}
		}
	}
	irc.Fields = fields
	slotsUsed[id] = total
	return nil
}
