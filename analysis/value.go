package analysis

// Value is a live constant or heap-held value under the original
// representation.
type Value interface {
	isValue()
}

var (
	_ Value = (*Scalar)(nil)
	_ Value = (*Null)(nil)
	_ Value = (*Ref)(nil)
	_ Value = (*ClosureVal)(nil)
	_ Value = (*TupleVal)(nil)
	_ Value = (*ViewVal)(nil)
	_ Value = (*BufVal)(nil)
)

// Scalar is an immediate machine value.
type Scalar struct {
	Type Type
	Bits int64
}

func (*Scalar) isValue() {}

type Null struct{}

func (*Null) isValue() {}

// Ref points at another live heap record.
type Ref struct {
	Target *Record
}

func (*Ref) isValue() {}

// ClosureVal pairs a function with its captured state.
type ClosureVal struct {
	Fn    MethodRef
	State Value
}

func (*ClosureVal) isValue() {}

type TupleVal struct {
	Type  *Tuple
	Elems []Value
}

func (*TupleVal) isValue() {}

// ViewVal is a bounded window into an array record.
type ViewVal struct {
	Arr      *Record
	Off, Len int64
}

func (*ViewVal) isValue() {}

// BufVal is an offset view into an opaque byte buffer.
type BufVal struct {
	Buf *Record
	Off int64
}

func (*BufVal) isValue() {}

// Record is a live heap instance: a class instance (Fields set, in declared
// order including inherited fields) or an array (Elems set).
type Record struct {
	Type   Type
	Class  ClassID // NoClass for arrays and buffers
	Fields []Value
	Elems  []Value
}

// IsArray reports whether the record is an array instance.
func (r *Record) IsArray() bool {
	_, ok := r.Type.(*Array)
	return ok
}
