package middle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/ir"
)

func TestNormalizeIsMemoized(t *testing.T) {
	p := testPass(newModule())
	typ := &analysis.Tuple{Elems: []analysis.Type{analysis.IntType, analysis.BoolType}}

	first, err := p.NormType(typ)
	require.NoError(t, err)
	second, err := p.NormType(typ)
	require.NoError(t, err)

	assert.Same(t, first, second, "second normalization must be a memo hit")
	// a structurally equal but distinct value hits the same record
	third, err := p.NormType(&analysis.Tuple{Elems: []analysis.Type{analysis.IntType, analysis.BoolType}})
	require.NoError(t, err)
	assert.Same(t, first, third)
}

func TestTupleSlotConservation(t *testing.T) {
	p := testPass(newModule())
	two := &analysis.Tuple{Elems: []analysis.Type{analysis.IntType, analysis.IntType}}
	three := &analysis.Tuple{Elems: []analysis.Type{analysis.FloatType, analysis.FloatType, analysis.BoolType}}

	norm, err := p.NormType(&analysis.Tuple{Elems: []analysis.Type{two, three}})
	require.NoError(t, err)

	assert.Equal(t, 5, norm.Size, "2-slot + 3-slot must normalize to exactly 5 slots")
	assert.Equal(t, []ir.SlotRange{{From: 0, To: 2}, {From: 2, To: 5}}, norm.Ranges)
}

func TestZeroSlotTypes(t *testing.T) {
	p := testPass(newModule())
	testCases := []struct {
		name string
		typ  analysis.Type
	}{
		{name: "void", typ: analysis.VoidType},
		{name: "module namespace", typ: &analysis.ModuleNS{Name: "math"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			norm, err := p.NormType(tc.typ)
			require.NoError(t, err)
			assert.Equal(t, 0, norm.Size)
			assert.Empty(t, norm.Slots())
		})
	}
}

func TestEnumNormalizesToTagInt(t *testing.T) {
	p := testPass(newModule())
	norm, err := p.NormType(&analysis.Enum{Name: "Color"})
	require.NoError(t, err)
	assert.Equal(t, analysis.IntType, norm.Repr)
	assert.Equal(t, 1, norm.Size)
}

func TestBufferBecomesPair(t *testing.T) {
	p := testPass(newModule())
	norm, err := p.NormType(analysis.BufferType)
	require.NoError(t, err)
	assert.Equal(t, 2, norm.Size)
	assert.Equal(t, []analysis.Type{analysis.BufferType, analysis.IntType}, norm.Parts)
}

func TestViewAppendsOffsetAndLength(t *testing.T) {
	p := testPass(newModule())
	view := &analysis.View{Arr: &analysis.Array{Elem: analysis.IntType}}

	norm, err := p.NormType(view)
	require.NoError(t, err)

	require.Equal(t, 3, norm.Size)
	assert.Equal(t, analysis.IntType, norm.Parts[1])
	assert.Equal(t, analysis.IntType, norm.Parts[2])
	if assert.IsType(t, &analysis.Array{}, norm.Parts[0]) {
		assert.Equal(t, analysis.IntType, norm.Parts[0].(*analysis.Array).Elem)
	}
}

func TestClosureSplitsIntoFunctionAndState(t *testing.T) {
	p := testPass(newModule())
	closure := &analysis.Closure{
		Params:  []analysis.Type{analysis.IntType},
		Results: []analysis.Type{analysis.BoolType},
	}

	norm, err := p.NormType(closure)
	require.NoError(t, err)

	require.Equal(t, 2, norm.Size)
	fn, ok := norm.Parts[0].(*analysis.Func)
	require.True(t, ok, "first slot must be the plain function reference")
	require.Len(t, fn.Params, 2, "capture cell must be prepended")
	assert.Equal(t, analysis.AnyObjectType, fn.Params[0])
	assert.Equal(t, analysis.IntType, fn.Params[1])
	assert.Equal(t, analysis.AnyObjectType, norm.Parts[1])
}

func TestArrayLayouts(t *testing.T) {
	pair := &analysis.Tuple{Elems: []analysis.Type{analysis.IntType, analysis.FloatType}}
	testCases := []struct {
		name      string
		layout    analysis.ArrayLayout
		elem      analysis.Type
		wantSize  int
		wantElems int // columns when split
	}{
		{name: "zero-size elements become marker array", layout: analysis.LayoutComplex, elem: analysis.VoidType, wantSize: 1},
		{name: "single-slot elements stay one array", layout: analysis.LayoutComplex, elem: analysis.IntType, wantSize: 1},
		{name: "complex layout splits columns", layout: analysis.LayoutComplex, elem: pair, wantSize: 2, wantElems: 2},
		{name: "mixed layout keeps composite elements", layout: analysis.LayoutMixed, elem: pair, wantSize: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := analysis.DefaultConfig()
			cfg.Arrays = tc.layout
			p := newPass(newModule(), cfg)

			norm, err := p.NormType(&analysis.Array{Elem: tc.elem})
			require.NoError(t, err)
			assert.Equal(t, tc.wantSize, norm.Size)
			if tc.wantElems > 0 {
				require.Len(t, norm.Parts, tc.wantElems)
				for _, col := range norm.Parts {
					assert.IsType(t, &analysis.Array{}, col)
				}
			}
		})
	}
}

func TestOpenTypeIsFatal(t *testing.T) {
	p := testPass(newModule())
	_, err := p.NormType(&analysis.Open{Name: "T"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open type")
}

func TestScalarIdentity(t *testing.T) {
	p := testPass(newModule())
	for _, typ := range []analysis.Type{
		analysis.IntType,
		analysis.AnyObjectType,
		analysis.AnyFuncType,
		&analysis.ClassRef{Name: "Box", Class: 7},
	} {
		norm, err := p.NormType(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, norm.Repr)
		assert.Equal(t, 1, norm.Size)
	}
}
