package middle

import (
	"sort"

	hset "github.com/hashicorp/go-set/v3"
	"github.com/xtgo/set"

	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/ir"
	"github.com/veldt-lang/veldt/middle/normerr"
	"github.com/veldt-lang/veldt/util"
)

// buildDispatch builds every class's virtual table and, for each method
// dispatched virtually across a hierarchy, a multi-method table indexed
// directly by class id.
func (p *Pass) buildDispatch() error {
	built := make(map[analysis.ClassID]bool)
	for _, c := range p.mod.Classes {
		if !c.Facts.Live {
			continue
		}
		p.buildVTable(c.ID, built)
	}
	for _, c := range p.mod.Classes {
		if !c.IsRoot() || !c.Facts.Live || p.classes[c.ID] == nil {
			continue
		}
		for _, name := range p.virtualNames(c) {
			table, err := p.buildMMTable(c, name)
			if err != nil {
				return err
			}
			if table != nil {
				p.out.Tables = append(p.out.Tables, table)
			}
		}
	}
	return nil
}

// buildVTable copies the parent's table and then places each declared
// method: constructors at slot 0, overrides into their superclass's slot,
// genuinely new virtual methods appended. Methods that are neither live nor
// virtually reachable are dropped and reported.
func (p *Pass) buildVTable(id analysis.ClassID, built map[analysis.ClassID]bool) {
	if built[id] {
		return
	}
	built[id] = true
	c := p.mod.Class(id)
	irc := p.classes[id]
	if c == nil || irc == nil {
		return
	}

	var parentTable *ir.VTable
	if c.Parent != analysis.NoClass {
		p.buildVTable(c.Parent, built)
		if parent := p.classes[c.Parent]; parent != nil {
			parentTable = parent.VTable
		}
	}

	slots := []ir.Slot{{Name: "new"}} // slot 0 is always the constructor
	if parentTable != nil {
		slots = append([]ir.Slot{}, parentTable.Slots...)
	}

	for _, m := range c.Methods {
		if m.Constructor {
			slots[0] = ir.Slot{Name: m.Name, Method: p.methodFor(m)}
			continue
		}
		if !m.Live && !m.VirtualUsed {
			p.deadCode.DroppedMethod(analysis.MethodRef{Class: id, Name: m.Name})
			continue
		}
		slot := ir.Slot{Name: m.Name, Method: p.methodFor(m), Abstract: m.Abstract}
		if slot.Abstract {
			slot.Method = nil
		}
		if idx := indexOfSlot(slots, m.Name); idx > 0 {
			slot.Overriding = true
			slots[idx] = slot
			if parentTable != nil && idx < len(parentTable.Slots) {
				parentTable.Slots[idx].Overridden = true
			}
		} else {
			slots = append(slots, slot)
		}
	}
	irc.VTable = &ir.VTable{Slots: slots}
}

func indexOfSlot(slots []ir.Slot, name string) int {
	for i, s := range slots {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// virtualNames collects, sorted, the method names dispatched virtually
// anywhere in the hierarchy rooted at rootClass.
func (p *Pass) virtualNames(rootClass *analysis.Class) []string {
	names := hset.New[string](4)
	stack := &util.Stack[analysis.ClassID]{}
	stack.Push(rootClass.ID)
	for id, ok := stack.Pop(); ok; id, ok = stack.Pop() {
		c := p.mod.Class(id)
		if c == nil || !c.Facts.Live {
			continue
		}
		for _, m := range c.Methods {
			if m.VirtualUsed && !m.Constructor {
				names.Insert(m.Name)
			}
		}
		for _, child := range c.Children {
			stack.Push(child)
		}
	}
	sorted := names.Slice()
	sort.Strings(sorted)
	return sorted
}

// buildMMTable sizes a table to the root's full identity range and fills,
// for every live concrete subclass, the most-specific implementation at
// `classId - rootId`. With devirtualization on, tables with fewer than two
// meaningfully different entries are skipped: the caller resolves those
// statically.
func (p *Pass) buildMMTable(rootClass *analysis.Class, name string) (*ir.MMTable, error) {
	rootIR := p.classes[rootClass.ID]
	entries := make([]*ir.Method, rootIR.MaxID-rootIR.MinID)
	for _, sub := range p.mod.LiveLeaves(rootClass.ID) {
		impl := p.resolveVirtual(sub, name)
		if impl == nil {
			return nil, normerr.New(normerr.NewUnresolvedVirtual{Class: sub.Name, Method: name})
		}
		subIR := p.classes[sub.ID]
		if subIR == nil {
			continue
		}
		entries[subIR.MinID-rootIR.MinID] = p.methodFor(impl)
	}

	if p.cfg.Devirtualize && distinctEntries(entries) < 2 {
		p.logger.Debug("devirtualized",
			"section", "middle.dispatch", "root", rootClass.Name, "method", name)
		return nil, nil
	}

	table := &ir.MMTable{
		Root:    rootClass.ID,
		Name:    name,
		Base:    rootIR.MinID,
		Entries: entries,
	}
	if p.isFlattened(rootClass.ID) {
		// flattened receivers carry no runtime type tag, so the table must
		// also exist as a real heap array of callables indexed by tag
		table.Materialized = p.materializeTable(rootClass, name, entries)
	}
	return table, nil
}

func (p *Pass) materializeTable(rootClass *analysis.Class, name string, entries []*ir.Method) *ir.Record {
	values := make([]ir.Value, len(entries))
	for i, m := range entries {
		if m == nil {
			values[i] = &ir.Null{}
		} else {
			values[i] = &ir.FuncRef{Method: m}
		}
	}
	record := &ir.Record{
		Name:   rootClass.Name + "." + name + ".mmtable",
		Type:   &analysis.Array{Elem: analysis.AnyFuncType},
		Values: values,
	}
	p.out.Records = append(p.out.Records, record)
	return record
}

// resolveVirtual walks up from c through its parents until a declared,
// non-abstract override is found.
func (p *Pass) resolveVirtual(c *analysis.Class, name string) *analysis.Method {
	for at := c; at != nil; at = p.mod.Class(at.Parent) {
		if m := at.FindMethod(name); m != nil && !m.Abstract {
			return m
		}
	}
	return nil
}

// distinctEntries counts the meaningfully different implementations in a
// table (nil gaps excluded).
func distinctEntries(entries []*ir.Method) int {
	interned := make(map[*ir.Method]int)
	ids := make(sort.IntSlice, 0, len(entries))
	for _, m := range entries {
		if m == nil {
			continue
		}
		id, ok := interned[m]
		if !ok {
			id = len(interned)
			interned[m] = id
		}
		ids = append(ids, id)
	}
	sort.Sort(ids)
	return set.Uniq(ids)
}

// methodFor returns the (possibly not yet normalized) output method for a
// source method, creating the descriptor on first use. Signatures and bodies
// are filled in by normalizeMethods.
func (p *Pass) methodFor(m *analysis.Method) *ir.Method {
	ref := analysis.MethodRef{Class: m.Owner, Name: m.Name}
	if got, ok := p.methods[ref]; ok {
		return got
	}
	irm := &ir.Method{Name: m.Name, Owner: m.Owner, Abstract: m.Abstract}
	p.methods[ref] = irm
	p.out.Methods = append(p.out.Methods, irm)
	return irm
}
