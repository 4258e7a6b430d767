package value

import (
	"reflect"
	"strings"
	"sync"
)

// FieldSpec describes how one field of a host structure is exposed.
type FieldSpec struct {
	// Name is the Go field name.
	Name string

	// Output is the name expressions use to select the field.
	Output string

	// Skip hides the field entirely.
	Skip bool

	// SkipIf hides the field when it returns true for the field's value.
	SkipIf func(field reflect.Value) bool

	// Flatten splices the field's own fields into the enclosing structure.
	Flatten bool

	// Accessor converts the field's value; FromGo is used when nil.
	Accessor func(field reflect.Value) Value

	index []int
}

// FieldTable is the ordered field layout of one Go struct type. Tables are
// built once per type, from `cel` struct tags (falling back to `json` tags),
// and drive Field, Materialize and MaterializeInto without further reflection
// over the type's shape.
//
// Tag syntax:
//
//	Model   string            `cel:"model"`
//	Secret  string            `cel:"-"`
//	Stream  bool              `cel:"stream,omitempty"`
//	Common  CommonFields      `cel:",flatten"`
type FieldTable struct {
	Type   reflect.Type
	Fields []FieldSpec

	byOutput map[string]int
	flatten  []int
}

var tables sync.Map // reflect.Type -> *FieldTable

// TableFor returns the field table for a struct type (or pointer to one),
// building and caching it on first use.
func TableFor(t reflect.Type) *FieldTable {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := tables.Load(t); ok {
		return cached.(*FieldTable)
	}
	table := buildTable(t, nil)
	actual, _ := tables.LoadOrStore(t, table)
	return actual.(*FieldTable)
}

// RegisterFields builds the table for sample's type, applying overrides keyed
// by Go field name, and replaces any cached table. It is meant to run during
// startup, before evaluations begin.
func RegisterFields(sample any, overrides map[string]func(*FieldSpec)) *FieldTable {
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	table := buildTable(t, overrides)
	tables.Store(t, table)
	return table
}

func buildTable(t reflect.Type, overrides map[string]func(*FieldSpec)) *FieldTable {
	table := &FieldTable{
		Type:     t,
		byOutput: make(map[string]int),
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		spec := FieldSpec{
			Name:   sf.Name,
			Output: sf.Name,
			index:  sf.Index,
		}

		tag, hasTag := sf.Tag.Lookup("cel")
		if !hasTag {
			tag, hasTag = sf.Tag.Lookup("json")
		}
		if hasTag {
			applyTag(&spec, tag)
		} else if sf.Anonymous && indirectKind(sf.Type) == reflect.Struct {
			spec.Flatten = true
		}

		if fn, ok := overrides[sf.Name]; ok {
			fn(&spec)
		}
		if spec.Skip {
			continue
		}

		idx := len(table.Fields)
		table.Fields = append(table.Fields, spec)
		if spec.Flatten {
			table.flatten = append(table.flatten, idx)
		} else {
			table.byOutput[spec.Output] = idx
		}
	}
	return table
}

func applyTag(spec *FieldSpec, tag string) {
	if tag == "-" {
		spec.Skip = true
		return
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		spec.Output = parts[0]
	}
	for _, opt := range parts[1:] {
		switch opt {
		case "omitempty":
			spec.SkipIf = func(v reflect.Value) bool { return v.IsZero() }
		case "flatten", "inline":
			spec.Flatten = true
		}
	}
}

func indirectKind(t reflect.Type) reflect.Kind {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind()
}

func (spec *FieldSpec) value(field reflect.Value) Value {
	if spec.Accessor != nil {
		return spec.Accessor(field)
	}
	return fromReflect(field)
}

func (spec *FieldSpec) hidden(field reflect.Value) bool {
	return spec.SkipIf != nil && spec.SkipIf(field)
}

// structDynamic exposes a Go struct through its FieldTable.
type structDynamic struct {
	v     reflect.Value
	table *FieldTable
}

// Reflect wraps a Go struct (or pointer to one) as a Dynamic value. Other Go
// values are converted with FromGo.
func Reflect(x any) Value {
	return FromGo(x)
}

func newStructDynamic(v reflect.Value) Value {
	return Dynamic{dyn: &structDynamic{v: v, table: TableFor(v.Type())}}
}

func (s *structDynamic) AutoMaterialize() bool {
	return false
}

func (s *structDynamic) Field(name string) (Value, bool) {
	if idx, ok := s.table.byOutput[name]; ok {
		spec := &s.table.Fields[idx]
		fv := s.v.FieldByIndex(spec.index)
		if spec.hidden(fv) {
			return nil, false
		}
		return spec.value(fv), true
	}
	for _, idx := range s.table.flatten {
		spec := &s.table.Fields[idx]
		fv := s.v.FieldByIndex(spec.index)
		if spec.hidden(fv) {
			continue
		}
		if v, ok := Field(spec.value(fv), name); ok {
			return v, true
		}
	}
	return nil, false
}

func (s *structDynamic) Materialize() Value {
	b := NewMapBuilder(len(s.table.Fields))
	s.MaterializeInto(b)
	return b.Build()
}

func (s *structDynamic) MaterializeInto(b *MapBuilder) {
	for i := range s.table.Fields {
		spec := &s.table.Fields[i]
		fv := s.v.FieldByIndex(spec.index)
		if spec.hidden(fv) {
			continue
		}
		if !spec.Flatten {
			b.SetString(spec.Output, spec.value(fv))
			continue
		}
		switch inner := spec.value(fv).(type) {
		case Dynamic:
			if flat, ok := inner.dyn.(DynamicFlatten); ok {
				flat.MaterializeInto(b)
			} else if m, ok := Materialize(inner).(Map); ok {
				m.Range(func(k Key, v Value) bool {
					b.Set(k, v)
					return true
				})
			}
		case Map:
			inner.Range(func(k Key, v Value) bool {
				b.Set(k, v)
				return true
			})
		}
	}
}
