package snapshot

import (
	"net/url"
	"sort"
	"strings"

	"mercator-hq/gateway/pkg/cel/value"
)

// Query is the parsed URL query string. Parameter names are case-sensitive,
// so ?Team=a and ?team=b are distinct keys. Repeated parameters are joined
// with ", ".
type Query url.Values

// AutoMaterialize implements value.DynamicType.
func (q Query) AutoMaterialize() bool {
	return false
}

// Materialize returns the parameters as a map keyed by their names as sent.
func (q Query) Materialize() value.Value {
	b := value.NewMapBuilder(len(q))
	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.SetString(name, value.String(strings.Join(q[name], ", ")))
	}
	return b.Build()
}

// Field implements value.DynamicType with an exact name match.
func (q Query) Field(name string) (value.Value, bool) {
	vs, ok := q[name]
	if !ok {
		return nil, false
	}
	return value.String(strings.Join(vs, ", ")), true
}

// Get returns the first value of name, or "".
func (q Query) Get(name string) string {
	return url.Values(q).Get(name)
}
