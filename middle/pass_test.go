package middle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/ir"
)

func TestRunNormalizesWholeModule(t *testing.T) {
	mod := dispatchModule()
	rex := mod.Classes[1] // Dog
	rex.Fields = []*analysis.Field{newField(rex.ID, "goodBoy", analysis.BoolType)}
	mod.Records = []*analysis.Record{{
		Type:   &analysis.ClassRef{Name: "Dog", Class: rex.ID},
		Class:  rex.ID,
		Fields: []analysis.Value{&analysis.Scalar{Type: analysis.BoolType, Bits: 1}},
	}}
	mod.Roots = []analysis.MethodRef{{Class: 0, Name: "speak"}}

	out, err := Run(mod, analysis.DefaultConfig())
	require.NoError(t, err)

	require.Len(t, out.Classes, 3)
	assert.Len(t, out.Records, 1)
	assert.NotEmpty(t, out.Types)
	require.Len(t, out.Tables, 1)
	assert.Equal(t, "speak", out.Tables[0].Name)

	require.Len(t, out.Roots, 1)
	assert.Equal(t, "speak", out.Roots[0].Name, "entry points re-point to normalized methods")
	assert.NotNil(t, out.Roots[0].Body)
}

func TestRunEmitsComparatorForFlattenedVariant(t *testing.T) {
	out, err := Run(variantModule(), analysis.DefaultConfig())
	require.NoError(t, err)

	var eq *ir.Method
	for _, m := range out.Methods {
		if m.Name == "Shape.equals" {
			eq = m
		}
	}
	require.NotNil(t, eq)
	// both operands arrive as full slot sequences
	assert.Len(t, eq.Params, 4)
	assert.Equal(t, []analysis.Type{analysis.BoolType}, eq.Results)
	assert.Equal(t, "flat-equals", eq.Body.Synthetic)
	assert.Empty(t, eq.Spilled)
}

func TestRunAttachesOverflowGlobal(t *testing.T) {
	cfg := analysis.DefaultConfig()
	cfg.MaxParamSlots = 1
	c := newClass(0, "Wide", analysis.NoClass)
	m := newMethod(0, "call")
	m.Params = []analysis.Type{analysis.IntType, analysis.IntType, analysis.IntType}
	c.Methods = []*analysis.Method{m}

	out, err := Run(newModule(c), cfg)
	require.NoError(t, err)

	require.NotNil(t, out.Overflow)
	assert.Equal(t, "overflow", out.Overflow.Name)
	assert.Len(t, out.Overflow.Fields, 2)
}

type sigRecorder struct {
	sigs map[string]*Signature
}

func (r *sigRecorder) Rewrite(m *analysis.Method, sig *Signature) (*ir.Body, error) {
	r.sigs[m.Name] = sig
	return &ir.Body{Source: m.Body}, nil
}

func TestRunHandsRewriterNormalizedSignatures(t *testing.T) {
	c := newClass(0, "Str", analysis.NoClass)
	m := newMethod(0, "slice")
	m.Params = []analysis.Type{&analysis.View{Arr: &analysis.Array{Elem: analysis.ByteType}}}
	m.Results = []analysis.Type{analysis.IntType}
	c.Methods = []*analysis.Method{m}

	rec := &sigRecorder{sigs: make(map[string]*Signature)}
	_, err := Run(newModule(c), analysis.DefaultConfig(), WithRewriter(rec))
	require.NoError(t, err)

	sig := rec.sigs["slice"]
	require.NotNil(t, sig)
	// a view is (array ref, start, length)
	assert.Len(t, sig.Params, 3)
	assert.Equal(t, []analysis.Type{analysis.IntType}, sig.Results)
}
