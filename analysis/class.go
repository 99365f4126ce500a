package analysis

import (
	"github.com/benbjohnson/immutable"
	"github.com/veldt-lang/veldt/util"
)

// ClassID addresses a class descriptor inside Module.Classes. The forest is
// an arena: parents and children are stored as indices, never as pointers,
// so descriptors stay cheap to copy and the forest has no reference cycles.
type ClassID int32

const NoClass ClassID = -1

// Facts are what the reachability analysis concluded about a class.
type Facts struct {
	Live       bool
	Allocated  bool // at least one instance is constructed
	Boxed      bool // the program forced heap representation
	ClosedOver bool // some instance state is captured by a closure
	Recursive  bool // the type is recursive beyond shallow self-reference
}

type Class struct {
	ID       ClassID
	Name     string
	Parent   ClassID // NoClass for hierarchy roots
	Children []ClassID
	Fields   []*Field
	Methods  []*Method
	Facts    Facts

	// IsData marks members of a variant ("data") hierarchy. Tag is the
	// declared variant tag value, -1 when the class is not a tagged case.
	IsData bool
	Tag    int
}

// IsRoot reports whether c heads its hierarchy.
func (c *Class) IsRoot() bool { return c.Parent == NoClass }

// Field is a declared instance field plus its per-member analysis facts.
type Field struct {
	Name     string
	Type     Type
	Owner    ClassID
	Read     bool
	Write    bool
	Live     bool
	Constant bool // folded to a constant everywhere; needs no storage
}

// MethodRef names a method by owning class and name.
type MethodRef struct {
	Class ClassID
	Name  string
}

type Method struct {
	Name        string
	Owner       ClassID
	Params      []Type
	Results     []Type
	Abstract    bool
	Constructor bool
	Live        bool
	VirtualUsed bool // invoked through at least one virtual call site
	Body        *Body
}

// Body is the method's SSA form. The middle end never looks inside it; the
// rewriter collaborator owns its contents.
type Body struct {
	Instrs []any
}

// Module is the live program as reported by the reachability analysis.
type Module struct {
	Name    string
	Classes []*Class
	Records []*Record // every live heap value, classes and arrays alike
	Roots   []MethodRef
}

// Class resolves an id against the arena; nil for NoClass.
func (m *Module) Class(id ClassID) *Class {
	if id == NoClass || int(id) >= len(m.Classes) {
		return nil
	}
	return m.Classes[id]
}

// RootOf walks parent links up to the hierarchy root.
func (m *Module) RootOf(id ClassID) ClassID {
	for c := m.Class(id); c != nil && c.Parent != NoClass; c = m.Class(c.Parent) {
		id = c.Parent
	}
	return id
}

// AncestorNames collects the names of every (transitive) superclass of id,
// excluding id itself.
func (m *Module) AncestorNames(id ClassID) immutable.Set[string] {
	builder := util.NewEmptySet[string]()
	for c := m.Class(id); c != nil && c.Parent != NoClass; c = m.Class(c.Parent) {
		builder.Add(m.Class(c.Parent).Name)
	}
	return builder.Immutable(immutable.NewHasher(""))
}

// LiveLeaves returns the live, allocated classes of the subtree rooted at id,
// in depth-first declaration order.
func (m *Module) LiveLeaves(id ClassID) []*Class {
	var leaves []*Class
	var walk func(ClassID)
	walk = func(at ClassID) {
		c := m.Class(at)
		if c == nil || !c.Facts.Live {
			return
		}
		if c.Facts.Allocated {
			leaves = append(leaves, c)
		}
		for _, child := range c.Children {
			walk(child)
		}
	}
	walk(id)
	return leaves
}

// FindMethod looks up a declared method by name on c only (no inheritance).
func (c *Class) FindMethod(name string) *Method {
	for _, method := range c.Methods {
		if method.Name == name {
			return method
		}
	}
	return nil
}
