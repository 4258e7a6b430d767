package value

// DynamicType lets a host structure take part in evaluation lazily.
//
// AutoMaterialize reports that the structure is a cheap scalar wrapper and
// should be treated as its materialized value right away. Materialize performs
// the full, possibly expensive conversion. Field projects a single field
// without materializing the rest of the structure.
type DynamicType interface {
	AutoMaterialize() bool
	Materialize() Value
	Field(name string) (Value, bool)
}

// DynamicFlatten is implemented by structures whose fields can be spliced
// into an enclosing structure's map representation.
type DynamicFlatten interface {
	DynamicType
	MaterializeInto(b *MapBuilder)
}

// NewDynamic wraps d. Auto-materializing types are converted immediately.
func NewDynamic(d DynamicType) Value {
	if d == nil {
		return NullValue
	}
	if d.AutoMaterialize() {
		return d.Materialize()
	}
	return Dynamic{dyn: d}
}

// Field projects name from a map, dynamic or object value without
// materializing dynamic structures.
func Field(v Value, name string) (Value, bool) {
	switch x := v.(type) {
	case Dynamic:
		if x.dyn == nil {
			return nil, false
		}
		return x.dyn.Field(name)
	case Map:
		return x.GetString(name)
	case Object:
		if fp, ok := x.opaque.(FieldProvider); ok {
			return fp.Field(name)
		}
	}
	return nil, false
}

// FieldProvider is implemented by opaque values with selectable fields.
type FieldProvider interface {
	Opaque
	Field(name string) (Value, bool)
}

// IsContainer reports whether v supports field selection.
func IsContainer(v Value) bool {
	switch x := v.(type) {
	case Map, Dynamic:
		return true
	case Object:
		_, ok := x.opaque.(FieldProvider)
		return ok
	}
	return false
}
