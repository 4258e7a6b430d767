package snapshot

import (
	"net/http"
	"sort"
	"strings"

	"mercator-hq/gateway/pkg/cel/value"
)

// Headers is an HTTP header collection with case-insensitive lookup. Multiple
// values for one name are joined with ", ".
type Headers http.Header

// AutoMaterialize implements value.DynamicType.
func (h Headers) AutoMaterialize() bool {
	return false
}

// Materialize returns the headers as a map keyed by lowercase name.
func (h Headers) Materialize() value.Value {
	b := value.NewMapBuilder(len(h))
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.SetString(strings.ToLower(name), value.String(strings.Join(h[name], ", ")))
	}
	return b.Build()
}

// Field implements value.DynamicType.
func (h Headers) Field(name string) (value.Value, bool) {
	return h.Header(name)
}

// Header looks up name ignoring case. It implements
// interpreter.HeaderProvider, so optimized header lookups avoid
// materializing the collection.
func (h Headers) Header(name string) (value.Value, bool) {
	if vs, ok := h[http.CanonicalHeaderKey(name)]; ok {
		return value.String(strings.Join(vs, ", ")), true
	}
	for k, vs := range h {
		if strings.EqualFold(k, name) {
			return value.String(strings.Join(vs, ", ")), true
		}
	}
	return nil, false
}

// Get returns the first value of name, or "".
func (h Headers) Get(name string) string {
	return http.Header(h).Get(name)
}

// Carrier returns the headers as a lowercase single-value map suitable for
// trace context extraction.
func (h Headers) Carrier() map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[strings.ToLower(k)] = vs[0]
		}
	}
	return out
}
