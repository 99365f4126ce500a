package middle

import (
	"fmt"
	"strings"

	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/ir"
	"github.com/veldt-lang/veldt/util"
)

// overflowAllocator hands out globally allocated scalar storage for the
// parameter/return slots that exceed the calling convention. Slots are keyed
// by scalar type and generation: within one generation every request gets a
// distinct slot, a later generation resets the cursor and reuses the same
// underlying slots. Calls that can be simultaneously live must therefore use
// different generations; calls that cannot share one set of globals.
type overflowAllocator struct {
	cfg   *analysis.Config
	gen   int
	slots map[uint64][]*ir.Field
	// cursors tracks, per scalar type, the generation it was last used in
	// and the next free slot index within that generation.
	cursors map[uint64]util.Pair[int, int]
	order   []*ir.Field
}

func newOverflowAllocator(cfg *analysis.Config) *overflowAllocator {
	return &overflowAllocator{
		cfg:     cfg,
		slots:   make(map[uint64][]*ir.Field),
		cursors: make(map[uint64]util.Pair[int, int]),
	}
}

func (o *overflowAllocator) nextGeneration() {
	o.gen++
}

// slot returns the storage field for the next spilled value of type t in the
// current generation. Reference erasure, when configured, happens before the
// lookup so unrelated reference types share slots.
func (o *overflowAllocator) slot(t analysis.Type) *ir.Field {
	if o.cfg.EraseOverflowRefs {
		t = eraseRef(t)
	}
	key := t.Hash()
	cursor, ok := o.cursors[key]
	if !ok || cursor.Fst != o.gen {
		cursor = util.NewPair(o.gen, 0)
	}
	i := cursor.Snd
	cursor.Snd++
	o.cursors[key] = cursor
	if i < len(o.slots[key]) {
		return o.slots[key][i]
	}
	field := &ir.Field{
		Name:   fmt.Sprintf("overflow.%s.%d", typeKey(t), i),
		Type:   t,
		Offset: len(o.order),
	}
	o.slots[key] = append(o.slots[key], field)
	o.order = append(o.order, field)
	return field
}

// global packs every allocated slot into the one synthetic module global;
// nil when nothing ever spilled.
func (o *overflowAllocator) global() *ir.Global {
	if len(o.order) == 0 {
		return nil
	}
	return &ir.Global{Name: "overflow", Fields: o.order}
}

// eraseRef maps reference types to AnyObject and callable types to AnyFunc;
// scalars stay themselves.
func eraseRef(t analysis.Type) analysis.Type {
	switch t.(type) {
	case *analysis.ClassRef, *analysis.Data, *analysis.Array, *analysis.View,
		*analysis.Buffer, *analysis.AnyObject:
		return analysis.AnyObjectType
	case *analysis.Func, *analysis.Closure, *analysis.AnyFunc:
		return analysis.AnyFuncType
	default:
		return t
	}
}

func typeKey(t analysis.Type) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '(', ')', '[', ']', ',':
			return '_'
		default:
			return r
		}
	}, t.String())
}
