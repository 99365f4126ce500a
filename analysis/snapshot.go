package analysis

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Snapshot is the JSON wire form of a Module, as dumped by the analysis
// driver. It carries enough to re-run the middle end offline; method bodies
// travel as opaque blobs and in-heap value graphs are limited to scalars,
// nulls and record references.

type snapshotModule struct {
	Name    string           `json:"name"`
	Classes []snapshotClass  `json:"classes"`
	Records []snapshotRecord `json:"records"`
	Roots   []snapshotRef    `json:"roots"`
}

type snapshotClass struct {
	Name    string           `json:"name"`
	Parent  int32            `json:"parent"` // -1 for roots
	Fields  []snapshotField  `json:"fields,omitempty"`
	Methods []snapshotMethod `json:"methods,omitempty"`
	IsData  bool             `json:"isData,omitempty"`
	Tag     *int             `json:"tag,omitempty"`

	Live       bool `json:"live"`
	Allocated  bool `json:"allocated,omitempty"`
	Boxed      bool `json:"boxed,omitempty"`
	ClosedOver bool `json:"closedOver,omitempty"`
	Recursive  bool `json:"recursive,omitempty"`
}

type snapshotField struct {
	Name     string       `json:"name"`
	Type     snapshotType `json:"type"`
	Read     bool         `json:"read"`
	Write    bool         `json:"write,omitempty"`
	Live     bool         `json:"live"`
	Constant bool         `json:"constant,omitempty"`
}

type snapshotMethod struct {
	Name        string         `json:"name"`
	Params      []snapshotType `json:"params,omitempty"`
	Results     []snapshotType `json:"results,omitempty"`
	Abstract    bool           `json:"abstract,omitempty"`
	Constructor bool           `json:"constructor,omitempty"`
	Live        bool           `json:"live"`
	VirtualUsed bool           `json:"virtualUsed,omitempty"`
}

type snapshotType struct {
	Kind    string         `json:"kind"`
	Name    string         `json:"name,omitempty"`
	Class   int32          `json:"class,omitempty"`
	Elem    *snapshotType  `json:"elem,omitempty"`
	Elems   []snapshotType `json:"elems,omitempty"`
	Params  []snapshotType `json:"params,omitempty"`
	Results []snapshotType `json:"results,omitempty"`
}

type snapshotRecord struct {
	Class  int32           `json:"class"` // -1 for arrays
	Type   snapshotType    `json:"type"`
	Fields []snapshotValue `json:"fields,omitempty"`
	Elems  []snapshotValue `json:"elems,omitempty"`
}

type snapshotValue struct {
	Kind   string        `json:"kind"` // "scalar" | "null" | "ref"
	Type   *snapshotType `json:"type,omitempty"`
	Bits   int64         `json:"bits,omitempty"`
	Record int           `json:"record,omitempty"` // index into records
}

type snapshotRef struct {
	Class int32  `json:"class"`
	Name  string `json:"name"`
}

// LoadSnapshot decodes a Module from its JSON snapshot form.
func LoadSnapshot(r io.Reader) (*Module, error) {
	var snap snapshotModule
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, errors.Wrap(err, "decoding analysis snapshot")
	}
	mod := &Module{Name: snap.Name}
	for i, sc := range snap.Classes {
		if sc.IsData && ClassID(sc.Parent) == NoClass && sc.Allocated {
			// a variant root shares its class id with the tag-0 case, so a
			// concrete root instance would be indistinguishable from it
			return nil, errors.Errorf("class %s: a variant root cannot be allocated", sc.Name)
		}
		tag := -1
		if sc.Tag != nil {
			tag = *sc.Tag
		}
		class := &Class{
			ID:     ClassID(i),
			Name:   sc.Name,
			Parent: ClassID(sc.Parent),
			IsData: sc.IsData,
			Tag:    tag,
			Facts: Facts{
				Live:       sc.Live,
				Allocated:  sc.Allocated,
				Boxed:      sc.Boxed,
				ClosedOver: sc.ClosedOver,
				Recursive:  sc.Recursive,
			},
		}
		for _, sf := range sc.Fields {
			fieldType, err := sf.Type.decode()
			if err != nil {
				return nil, errors.Wrapf(err, "field %s.%s", sc.Name, sf.Name)
			}
			class.Fields = append(class.Fields, &Field{
				Name:     sf.Name,
				Type:     fieldType,
				Owner:    class.ID,
				Read:     sf.Read,
				Write:    sf.Write,
				Live:     sf.Live,
				Constant: sf.Constant,
			})
		}
		for _, sm := range sc.Methods {
			params, err := decodeAll(sm.Params)
			if err != nil {
				return nil, errors.Wrapf(err, "method %s.%s", sc.Name, sm.Name)
			}
			results, err := decodeAll(sm.Results)
			if err != nil {
				return nil, errors.Wrapf(err, "method %s.%s", sc.Name, sm.Name)
			}
			class.Methods = append(class.Methods, &Method{
				Name:        sm.Name,
				Owner:       class.ID,
				Params:      params,
				Results:     results,
				Abstract:    sm.Abstract,
				Constructor: sm.Constructor,
				Live:        sm.Live,
				VirtualUsed: sm.VirtualUsed,
				Body:        &Body{},
			})
		}
		mod.Classes = append(mod.Classes, class)
	}
	// children are derived, not part of the wire form
	for _, class := range mod.Classes {
		if parent := mod.Class(class.Parent); parent != nil {
			parent.Children = append(parent.Children, class.ID)
		}
	}
	records := make([]*Record, len(snap.Records))
	for i := range snap.Records {
		records[i] = &Record{}
	}
	for i, sr := range snap.Records {
		recType, err := sr.Type.decode()
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", i)
		}
		records[i].Type = recType
		records[i].Class = ClassID(sr.Class)
		if records[i].Fields, err = decodeValues(sr.Fields, records); err != nil {
			return nil, errors.Wrapf(err, "record %d", i)
		}
		if records[i].Elems, err = decodeValues(sr.Elems, records); err != nil {
			return nil, errors.Wrapf(err, "record %d", i)
		}
	}
	mod.Records = records
	for _, root := range snap.Roots {
		mod.Roots = append(mod.Roots, MethodRef{Class: ClassID(root.Class), Name: root.Name})
	}
	return mod, nil
}

func decodeValues(vals []snapshotValue, records []*Record) ([]Value, error) {
	if vals == nil {
		return nil, nil
	}
	out := make([]Value, len(vals))
	for i, sv := range vals {
		switch sv.Kind {
		case "scalar":
			valType, err := sv.Type.decode()
			if err != nil {
				return nil, err
			}
			out[i] = &Scalar{Type: valType, Bits: sv.Bits}
		case "null":
			out[i] = &Null{}
		case "ref":
			if sv.Record < 0 || sv.Record >= len(records) {
				return nil, errors.Errorf("ref to record %d out of range", sv.Record)
			}
			out[i] = &Ref{Target: records[sv.Record]}
		default:
			return nil, errors.Errorf("unknown value kind %q", sv.Kind)
		}
	}
	return out, nil
}

func decodeAll(types []snapshotType) ([]Type, error) {
	if types == nil {
		return nil, nil
	}
	out := make([]Type, len(types))
	for i, st := range types {
		var err error
		if out[i], err = st.decode(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (st *snapshotType) decode() (Type, error) {
	switch st.Kind {
	case "int":
		return IntType, nil
	case "float":
		return FloatType, nil
	case "bool":
		return BoolType, nil
	case "byte":
		return ByteType, nil
	case "void":
		return VoidType, nil
	case "module":
		return &ModuleNS{Name: st.Name}, nil
	case "buffer":
		return BufferType, nil
	case "enum":
		return &Enum{Name: st.Name}, nil
	case "array":
		elem, err := st.Elem.decode()
		if err != nil {
			return nil, err
		}
		return &Array{Elem: elem}, nil
	case "view":
		elem, err := st.Elem.decode()
		if err != nil {
			return nil, err
		}
		return &View{Arr: &Array{Elem: elem}}, nil
	case "tuple":
		elems, err := decodeAll(st.Elems)
		if err != nil {
			return nil, err
		}
		return &Tuple{Elems: elems}, nil
	case "closure", "func":
		params, err := decodeAll(st.Params)
		if err != nil {
			return nil, err
		}
		results, err := decodeAll(st.Results)
		if err != nil {
			return nil, err
		}
		if st.Kind == "closure" {
			return &Closure{Params: params, Results: results}, nil
		}
		return &Func{Params: params, Results: results}, nil
	case "data":
		return &Data{Name: st.Name, Root: ClassID(st.Class)}, nil
	case "classref":
		return &ClassRef{Name: st.Name, Class: ClassID(st.Class)}, nil
	case "open":
		return &Open{Name: st.Name}, nil
	default:
		return nil, errors.Errorf("unknown type kind %q", st.Kind)
	}
}
