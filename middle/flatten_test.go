package middle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/ir"
)

func TestEnumCollapse(t *testing.T) {
	// every case has zero non-tag fields and nothing is closed over
	root := newCase(0, "Direction", analysis.NoClass, -1)
	north := newCase(1, "North", 0, 0)
	south := newCase(2, "South", 0, 1)
	p := testPass(newModule(root, north, south))

	norm, err := p.NormType(&analysis.Data{Name: "Direction", Root: 0})
	require.NoError(t, err)

	assert.Equal(t, analysis.IntType, norm.Repr, "hierarchy must collapse to its tag")
	assert.Equal(t, 1, norm.Size)
	assert.Empty(t, norm.Parts)
}

func TestFlattenSharedLayout(t *testing.T) {
	p := testPass(variantModule())

	norm, err := p.NormType(&analysis.Data{Name: "Shape", Root: 0})
	require.NoError(t, err)

	require.Equal(t, 2, norm.Size, "two cases, one int payload: (tag, payload)")
	assert.Equal(t, analysis.IntType, norm.Parts[0])
	assert.Equal(t, analysis.IntType, norm.Parts[1])

	flat := p.flats[0]
	require.NotNil(t, flat)
	assert.Equal(t, analysis.IntType, flat.TagType)
	assert.Equal(t, ir.SlotRange{From: 1, To: 2}, flat.FieldRanges[ir.FieldKey{Class: 2, Field: "radius"}])
}

func TestSelfRecursiveVariantIsBoxed(t *testing.T) {
	root := newCase(0, "List", analysis.NoClass, -1)
	nilCase := newCase(1, "Nil", 0, 0)
	cons := newCase(2, "Cons", 0, 1)
	cons.Fields = []*analysis.Field{
		newField(2, "head", analysis.IntType),
		newField(2, "tail", &analysis.Data{Name: "List", Root: 0}),
	}
	p := testPass(newModule(root, nilCase, cons))

	norm, err := p.NormType(&analysis.Data{Name: "List", Root: 0})
	require.NoError(t, err)

	assert.Equal(t, 1, norm.Size, "self-referential variant must stay boxed")
	assert.IsType(t, &analysis.ClassRef{}, norm.Repr)
	assert.Equal(t, flatBoxed, p.flatState[0])
}

func TestExplicitBoxingAnnotationWins(t *testing.T) {
	mod := variantModule()
	mod.Classes[0].Facts.Boxed = true
	p := testPass(mod)

	norm, err := p.NormType(&analysis.Data{Name: "Shape", Root: 0})
	require.NoError(t, err)
	assert.IsType(t, &analysis.ClassRef{}, norm.Repr)
}

func TestFieldBearingGrandchildForcesBoxing(t *testing.T) {
	// the direct cases carry no fields; the state lives one level deeper
	root := newCase(0, "Tree", analysis.NoClass, -1)
	leaf := newCase(1, "Leaf", 0, 0)
	node := newCase(2, "Node", 0, 1)
	fat := newCase(3, "Fat", 2, -1)
	fat.Fields = []*analysis.Field{newField(3, "payload", analysis.IntType)}
	p := testPass(newModule(root, leaf, node, fat))

	norm, err := p.NormType(&analysis.Data{Name: "Tree", Root: 0})
	require.NoError(t, err)

	assert.IsType(t, &analysis.ClassRef{}, norm.Repr, "state below the first level must not collapse to a tag")
	assert.Equal(t, flatBoxed, p.flatState[0])

	// the boxed grandchild instance keeps its payload
	rec, err := p.normRecord(&analysis.Record{
		Type:   &analysis.Data{Name: "Tree", Root: 0},
		Class:  3,
		Fields: []analysis.Value{intVal(42)},
	})
	require.NoError(t, err)
	require.Len(t, rec.Values, 1)
	assert.Equal(t, int64(42), rec.Values[0].(*ir.Scalar).Bits)
}

func TestClosedOverGrandchildPreventsEnumCollapse(t *testing.T) {
	root := newCase(0, "Event", analysis.NoClass, -1)
	tick := newCase(1, "Tick", 0, 0)
	tock := newCase(2, "Tock", 0, 1)
	sub := newCase(3, "Sub", 2, -1)
	sub.Facts.ClosedOver = true
	p := testPass(newModule(root, tick, tock, sub))

	norm, err := p.NormType(&analysis.Data{Name: "Event", Root: 0})
	require.NoError(t, err)
	assert.IsType(t, &analysis.ClassRef{}, norm.Repr)
	assert.Equal(t, flatBoxed, p.flatState[0])
}

func TestDeepHierarchyIsBoxed(t *testing.T) {
	// flattening is only attempted for single-level variant families
	mod := variantModule()
	grandchild := newCase(3, "Ellipse", 2, -1)
	mod.Classes = append(mod.Classes, grandchild)
	mod.Classes[2].Children = append(mod.Classes[2].Children, 3)
	p := testPass(mod)

	norm, err := p.NormType(&analysis.Data{Name: "Shape", Root: 0})
	require.NoError(t, err)
	assert.IsType(t, &analysis.ClassRef{}, norm.Repr)
}

func TestClosedOverVariantIsBoxed(t *testing.T) {
	mod := variantModule()
	mod.Classes[2].Facts.ClosedOver = true
	p := testPass(mod)

	norm, err := p.NormType(&analysis.Data{Name: "Shape", Root: 0})
	require.NoError(t, err)
	assert.IsType(t, &analysis.ClassRef{}, norm.Repr)
}

func TestFlatSlotBudgetForcesBoxing(t *testing.T) {
	cfg := analysis.DefaultConfig()
	cfg.MaxFlatSlots = 1
	p := newPass(variantModule(), cfg)

	norm, err := p.NormType(&analysis.Data{Name: "Shape", Root: 0})
	require.NoError(t, err)
	assert.IsType(t, &analysis.ClassRef{}, norm.Repr)
	assert.Equal(t, flatBoxed, p.flatState[0])
}

func TestSingleCaseNeedsNoTag(t *testing.T) {
	root := newCase(0, "Wrapper", analysis.NoClass, -1)
	only := newCase(1, "Of", 0, 0)
	only.Fields = []*analysis.Field{newField(1, "value", analysis.IntType)}
	p := testPass(newModule(root, only))

	norm, err := p.NormType(&analysis.Data{Name: "Wrapper", Root: 0})
	require.NoError(t, err)

	assert.Equal(t, 1, norm.Size)
	require.NotNil(t, p.flats[0])
	assert.Nil(t, p.flats[0].TagType)
}
