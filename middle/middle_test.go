package middle

import (
	"github.com/veldt-lang/veldt/analysis"
)

// test fixtures shared by the middle-end tests

func newClass(id analysis.ClassID, name string, parent analysis.ClassID) *analysis.Class {
	return &analysis.Class{
		ID:     id,
		Name:   name,
		Parent: parent,
		Tag:    -1,
		Facts:  analysis.Facts{Live: true, Allocated: true},
	}
}

func newCase(id analysis.ClassID, name string, parent analysis.ClassID, tag int) *analysis.Class {
	c := newClass(id, name, parent)
	c.IsData = true
	c.Tag = tag
	return c
}

func newField(owner analysis.ClassID, name string, t analysis.Type) *analysis.Field {
	return &analysis.Field{Name: name, Type: t, Owner: owner, Read: true, Live: true}
}

func newModule(classes ...*analysis.Class) *analysis.Module {
	mod := &analysis.Module{Name: "test", Classes: classes}
	for _, c := range classes {
		if parent := mod.Class(c.Parent); parent != nil {
			parent.Children = append(parent.Children, c.ID)
		}
	}
	return mod
}

func testPass(mod *analysis.Module) *Pass {
	return newPass(mod, analysis.DefaultConfig())
}

// variantModule is the recurring two-case fixture: an empty case with tag 0
// and a single-int-field case with tag 1.
func variantModule() *analysis.Module {
	root := newCase(0, "Shape", analysis.NoClass, -1)
	root.Facts.Allocated = false
	empty := newCase(1, "Dot", 0, 0)
	payload := newCase(2, "Circle", 0, 1)
	payload.Fields = []*analysis.Field{newField(2, "radius", analysis.IntType)}
	return newModule(root, empty, payload)
}
