package middle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldt-lang/veldt/analysis"
)

func TestTreeIdentityPartition(t *testing.T) {
	//        animal
	//       /      \
	//     dog      cat
	//      |
	//   terrier
	animal := newClass(0, "Animal", analysis.NoClass)
	dog := newClass(1, "Dog", 0)
	cat := newClass(2, "Cat", 0)
	terrier := newClass(3, "Terrier", 1)
	p := testPass(newModule(animal, dog, cat, terrier))
	require.NoError(t, p.assignIdentity())

	a, d, c, tr := p.classes[0], p.classes[1], p.classes[2], p.classes[3]
	assert.Equal(t, 0, a.MinID)
	assert.Equal(t, 4, a.MaxID)

	// children contained within the parent, disjoint from each other
	assert.GreaterOrEqual(t, d.MinID, a.MinID)
	assert.LessOrEqual(t, d.MaxID, a.MaxID)
	assert.GreaterOrEqual(t, c.MinID, a.MinID)
	assert.LessOrEqual(t, c.MaxID, a.MaxID)
	assert.True(t, d.MaxID <= c.MinID || c.MaxID <= d.MinID, "sibling ranges must be disjoint")

	// grandchild contained within its parent
	assert.GreaterOrEqual(t, tr.MinID, d.MinID)
	assert.LessOrEqual(t, tr.MaxID, d.MaxID)

	// union of children plus the parent-only id covers the full range
	covered := (d.MaxID - d.MinID) + (c.MaxID - c.MinID) + 1
	assert.Equal(t, a.MaxID-a.MinID, covered)
}

func TestDeadSubtreeGetsNoIdentity(t *testing.T) {
	root := newClass(0, "Root", analysis.NoClass)
	dead := newClass(1, "Dead", 0)
	dead.Facts.Live = false
	live := newClass(2, "Live", 0)
	p := testPass(newModule(root, dead, live))
	require.NoError(t, p.assignIdentity())

	assert.Nil(t, p.classes[1])
	assert.Equal(t, 2, p.classes[0].MaxID-p.classes[0].MinID)
}

func TestTagNumberingUsesDeclaredTags(t *testing.T) {
	root := newCase(0, "Token", analysis.NoClass, -1)
	root.Facts.Boxed = true // keep the hierarchy boxed so it still needs ids
	a := newCase(1, "Word", 0, 0)
	b := newCase(2, "Space", 0, 1)
	c := newCase(3, "Punct", 0, 3) // deliberate gap at tag 2
	a.Fields = []*analysis.Field{newField(1, "text", analysis.IntType)}
	p := testPass(newModule(root, a, b, c))
	require.NoError(t, p.assignIdentity())

	base := p.classes[0].MinID
	assert.Equal(t, base+4, p.classes[0].MaxID, "range covers up to the highest tag")
	assert.Equal(t, base+0, p.classes[1].MinID)
	assert.Equal(t, base+1, p.classes[2].MinID)
	assert.Equal(t, base+3, p.classes[3].MinID)
}

func TestEnumCollapsedHierarchyNeedsNoIdentity(t *testing.T) {
	root := newCase(0, "Direction", analysis.NoClass, -1)
	north := newCase(1, "North", 0, 0)
	south := newCase(2, "South", 0, 1)
	p := testPass(newModule(root, north, south))
	require.NoError(t, p.assignIdentity())

	assert.Nil(t, p.classes[0])
	assert.Nil(t, p.classes[1])
}

func TestFieldLayoutInheritsAndExpands(t *testing.T) {
	parent := newClass(0, "Base", analysis.NoClass)
	parent.Fields = []*analysis.Field{newField(0, "id", analysis.IntType)}
	child := newClass(1, "Derived", 0)
	child.Fields = []*analysis.Field{
		newField(1, "pos", &analysis.Tuple{Elems: []analysis.Type{analysis.FloatType, analysis.FloatType}}),
	}
	p := testPass(newModule(parent, child))
	require.NoError(t, p.assignIdentity())
	require.NoError(t, p.layoutClasses())

	base := p.classes[0]
	require.Len(t, base.Fields, 1)
	assert.Equal(t, 0, base.Fields[0].Offset)

	derived := p.classes[1]
	require.Len(t, derived.Fields, 3, "inherited field plus two expanded slots")
	assert.Equal(t, base.Fields[0], derived.Fields[0], "superclass fields are inherited verbatim")
	assert.Equal(t, "pos.0", derived.Fields[1].Name)
	assert.Equal(t, "pos.1", derived.Fields[2].Name)
	assert.Equal(t, 1, derived.Fields[1].Offset)
	assert.Equal(t, 2, derived.Fields[2].Offset)
}

func TestDeadAndConstantFieldsGetNoSlots(t *testing.T) {
	c := newClass(0, "Config", analysis.NoClass)
	deadField := newField(0, "unused", analysis.IntType)
	deadField.Live = false
	constField := newField(0, "version", analysis.IntType)
	constField.Constant = true
	c.Fields = []*analysis.Field{deadField, constField, newField(0, "kept", analysis.IntType)}
	p := testPass(newModule(c))
	require.NoError(t, p.assignIdentity())
	require.NoError(t, p.layoutClasses())

	require.Len(t, p.classes[0].Fields, 1)
	assert.Equal(t, "kept", p.classes[0].Fields[0].Name)
}

func TestFlattenedClassContributesNoPhysicalFields(t *testing.T) {
	p := testPass(variantModule())
	require.NoError(t, p.assignIdentity())
	require.NoError(t, p.layoutClasses())

	assert.Empty(t, p.classes[0].Fields)
	assert.Empty(t, p.classes[2].Fields, "flattened case state lives only in the scalar layout")
}
