package analysis

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"
)

// Type is a resolved source-level type as the reachability analysis saw it.
// Generic parameters have already been substituted upstream; an Open type
// reaching the middle end is an analysis bug.
type Type interface {
	fmt.Stringer
	Hash() uint64
}

var (
	_ Type = (*Prim)(nil)
	_ Type = (*Void)(nil)
	_ Type = (*ModuleNS)(nil)
	_ Type = (*Array)(nil)
	_ Type = (*View)(nil)
	_ Type = (*Tuple)(nil)
	_ Type = (*Closure)(nil)
	_ Type = (*Func)(nil)
	_ Type = (*Data)(nil)
	_ Type = (*ClassRef)(nil)
	_ Type = (*Enum)(nil)
	_ Type = (*Buffer)(nil)
	_ Type = (*AnyObject)(nil)
	_ Type = (*AnyFunc)(nil)
	_ Type = (*Open)(nil)
)

func hashOf(tag string, children ...uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tag))
	arr := make([]byte, 0, 8*len(children))
	for _, c := range children {
		arr = binary.LittleEndian.AppendUint64(arr, c)
	}
	_, _ = h.Write(arr)
	return h.Sum64()
}

func hashAll(types []Type) []uint64 {
	hashes := make([]uint64, len(types))
	for i, t := range types {
		hashes[i] = t.Hash()
	}
	return hashes
}

type PrimKind uint8

const (
	_ PrimKind = iota
	KindInt
	KindFloat
	KindBool
	KindByte
)

func (k PrimKind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindByte:
		return "Byte"
	default:
		return "invalid"
	}
}

// Prim is a machine scalar. Variant tags are plain Ints.
type Prim struct {
	Kind PrimKind
}

func (t *Prim) String() string { return t.Kind.String() }
func (t *Prim) Hash() uint64   { return hashOf("Prim", uint64(t.Kind)) }

var (
	IntType   = &Prim{Kind: KindInt}
	FloatType = &Prim{Kind: KindFloat}
	BoolType  = &Prim{Kind: KindBool}
	ByteType  = &Prim{Kind: KindByte}
)

// Void has no runtime representation at all.
type Void struct{}

func (t *Void) String() string { return "Void" }
func (t *Void) Hash() uint64   { return hashOf("Void") }

var VoidType = &Void{}

// ModuleNS is a module used as a namespace value; like Void it occupies
// no slots after normalization.
type ModuleNS struct {
	Name string
}

func (t *ModuleNS) String() string { return "module " + t.Name }
func (t *ModuleNS) Hash() uint64   { return hashOf("ModuleNS " + t.Name) }

type Array struct {
	Elem Type
}

func (t *Array) String() string { return "[" + t.Elem.String() + "]" }
func (t *Array) Hash() uint64   { return hashOf("Array", t.Elem.Hash()) }

// View is a bounded window into an array: the array plus an offset and a
// length.
type View struct {
	Arr *Array
}

func (t *View) String() string { return "view " + t.Arr.String() }
func (t *View) Hash() uint64   { return hashOf("View", t.Arr.Hash()) }

type Tuple struct {
	Elems []Type
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (t *Tuple) Hash() uint64 { return hashOf("Tuple", hashAll(t.Elems)...) }

// Closure is a function value together with its captured state.
type Closure struct {
	Params  []Type
	Results []Type
}

func (t *Closure) String() string {
	return fmt.Sprintf("closure(%d -> %d)", len(t.Params), len(t.Results))
}
func (t *Closure) Hash() uint64 {
	return hashOf("Closure",
		hashOf("params", hashAll(t.Params)...),
		hashOf("results", hashAll(t.Results)...))
}

// Func is a plain function reference with no captured state. Closures
// normalize into a Func (with a capture cell prepended) plus a state slot.
type Func struct {
	Params  []Type
	Results []Type
}

func (t *Func) String() string {
	return fmt.Sprintf("fn(%d -> %d)", len(t.Params), len(t.Results))
}
func (t *Func) Hash() uint64 {
	return hashOf("Func",
		hashOf("params", hashAll(t.Params)...),
		hashOf("results", hashAll(t.Results)...))
}

// Data is an algebraic/variant type backed by a class hierarchy rooted at
// Root. Whether its instances keep heap identity is decided by the middle
// end, not here.
type Data struct {
	Name string
	Root ClassID
}

func (t *Data) String() string { return "data " + t.Name }
func (t *Data) Hash() uint64   { return hashOf("Data "+t.Name, uint64(t.Root)) }

// ClassRef is an opaque reference to an instance of Class.
type ClassRef struct {
	Name  string
	Class ClassID
}

func (t *ClassRef) String() string { return t.Name }
func (t *ClassRef) Hash() uint64   { return hashOf("ClassRef "+t.Name, uint64(t.Class)) }

// Enum is a closed set of named constants; it normalizes to its tag's
// integer type.
type Enum struct {
	Name string
}

func (t *Enum) String() string { return "enum " + t.Name }
func (t *Enum) Hash() uint64   { return hashOf("Enum " + t.Name) }

// Buffer is an opaque byte-buffer reference; it normalizes to a
// (buffer, integer offset) pair.
type Buffer struct{}

func (t *Buffer) String() string { return "buffer" }
func (t *Buffer) Hash() uint64   { return hashOf("Buffer") }

var BufferType = &Buffer{}

// AnyObject is the top reference type, used when overflow slots erase
// unrelated reference types so they can share storage.
type AnyObject struct{}

func (t *AnyObject) String() string { return "anyobject" }
func (t *AnyObject) Hash() uint64   { return hashOf("AnyObject") }

var AnyObjectType = &AnyObject{}

// AnyFunc is the top function type, the function-valued counterpart of
// AnyObject.
type AnyFunc struct{}

func (t *AnyFunc) String() string { return "anyfunc" }
func (t *AnyFunc) Hash() uint64   { return hashOf("AnyFunc") }

var AnyFuncType = &AnyFunc{}

// Open is an unresolved (generic or otherwise un-substituted) type. It must
// never reach the middle end.
type Open struct {
	Name string
}

func (t *Open) String() string { return "open " + t.Name }
func (t *Open) Hash() uint64   { return hashOf("Open " + t.Name) }
