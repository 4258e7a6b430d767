package references

import (
	"reflect"
	"sort"
	"strings"
	"testing"

	"mercator-hq/gateway/pkg/cel/optimizer"
	"mercator-hq/gateway/pkg/cel/parser"
)

func dotted(paths [][]string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = strings.Join(p, ".")
	}
	sort.Strings(out)
	return out
}

// TestProperties tests access path extraction
func TestProperties(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{name: "select chain", src: "foo.bar.baz", want: []string{"foo.bar.baz"}},
		{name: "index", src: `foo["bar"]`, want: []string{"foo"}},
		{name: "index then select", src: `a["b"].c`, want: []string{"a.c"}},
		{name: "map macro", src: "foo.map(x, x.body)", want: []string{"foo", "x", "x.body"}},
		{name: "map literal select", src: `{"a": "b"}.a`, want: []string{}},
		{name: "index key variable", src: "m[k].v", want: []string{"k", "m.v"}},
		{name: "has", src: "has(request.body)", want: []string{"request.body"}},
		{name: "duplicates", src: "a.b == a.b || a.c", want: []string{"a.b", "a.c"}},
		{name: "method receiver", src: "request.model.startsWith(prefix)", want: []string{"prefix", "request.model"}},
		{name: "two variable", src: "m.all(k, v, k == v.name)", want: []string{"k", "m", "v", "v.name"}},
		{name: "filter", src: "items.filter(i, i.cost > limit)", want: []string{"i", "i.cost", "items", "limit"}},
		{name: "nested", src: "xs.exists(x, x.ys.all(y, y == x.z))", want: []string{"x", "x.ys", "x.z", "xs", "y"}},
		{name: "literal only", src: "1 + 2", want: []string{}},
		{name: "call on list literal", src: "[a, b.c].size()", want: []string{"a", "b.c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := parser.Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.src, err)
			}
			got := dotted(Properties(expr))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Properties(%q) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

// TestProperties_Optimized tests that analysis sees the source form
func TestProperties_Optimized(t *testing.T) {
	expr, err := parser.Parse(`request.headers["x-team"] == "a" && request.model.matches("^gpt")`)
	if err != nil {
		t.Fatal(err)
	}
	want := dotted(Properties(expr))
	got := dotted(Properties(optimizer.Apply(expr, optimizer.Builtins())))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Properties(optimized) = %v, want %v", got, want)
	}
}

// TestProperties_InvalidAtRuntime tests that analysis never evaluates
func TestProperties_InvalidAtRuntime(t *testing.T) {
	expr, err := parser.Parse("(1 / 0) + missing.field")
	if err != nil {
		t.Fatal(err)
	}
	if got := dotted(Properties(expr)); !reflect.DeepEqual(got, []string{"missing.field"}) {
		t.Errorf("Properties() = %v", got)
	}
}

// TestReferences tests variable and function summaries
func TestReferences(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		variables []string
		functions []string
	}{
		{
			name:      "free variables",
			src:       "request.model in allowed && size(request.body) < limit",
			variables: []string{"allowed", "limit", "request"},
			functions: []string{"size"},
		},
		{
			name:      "bound variables excluded",
			src:       "items.all(i, i.cost < budget)",
			variables: []string{"budget", "items"},
			functions: []string{},
		},
		{
			name:      "shadowed and free",
			src:       "x + xs.map(x, x * 2).size()",
			variables: []string{"x", "xs"},
			functions: []string{"size"},
		},
		{
			name:      "methods",
			src:       `name.lowerAscii().startsWith("gpt")`,
			variables: []string{"name"},
			functions: []string{"lowerAscii", "startsWith"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := parser.Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.src, err)
			}
			refs := References(expr)
			if !reflect.DeepEqual(refs.Variables, tt.variables) {
				t.Errorf("Variables = %v, want %v", refs.Variables, tt.variables)
			}
			if !reflect.DeepEqual(refs.Functions, tt.functions) {
				t.Errorf("Functions = %v, want %v", refs.Functions, tt.functions)
			}
			for _, v := range tt.variables {
				if !refs.HasVariable(v) {
					t.Errorf("HasVariable(%q) = false", v)
				}
			}
			for _, f := range tt.functions {
				if !refs.HasFunction(f) {
					t.Errorf("HasFunction(%q) = false", f)
				}
			}
		})
	}
}

// TestReferences_Qualified tests that namespaces of qualified functions are
// not reported as variables
func TestReferences_Qualified(t *testing.T) {
	qualified := []string{"json.parse", "optional.of", "optional.none"}

	tests := []struct {
		name      string
		src       string
		variables []string
		functions []string
		paths     []string
	}{
		{
			name:      "json parse",
			src:       `json.parse(request.body).model == "gpt-4o"`,
			variables: []string{"request"},
			functions: []string{"json.parse"},
			paths:     []string{"request.body"},
		},
		{
			name:      "optional",
			src:       `optional.of(x).orValue(optional.none())`,
			variables: []string{"x"},
			functions: []string{"optional.none", "optional.of", "orValue"},
			paths:     []string{"x"},
		},
		{
			name:      "unregistered name stays a method",
			src:       `json.size()`,
			variables: []string{"json"},
			functions: []string{"size"},
			paths:     []string{"json"},
		},
		{
			name:      "namespace inside comprehension",
			src:       `items.all(i, json.parse(i).ok)`,
			variables: []string{"items"},
			functions: []string{"json.parse"},
			paths:     []string{"items"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := parser.Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.src, err)
			}
			refs := References(expr, qualified...)
			if !reflect.DeepEqual(refs.Variables, tt.variables) {
				t.Errorf("Variables = %v, want %v", refs.Variables, tt.variables)
			}
			if !reflect.DeepEqual(refs.Functions, tt.functions) {
				t.Errorf("Functions = %v, want %v", refs.Functions, tt.functions)
			}
			if !reflect.DeepEqual(refs.Paths, tt.paths) {
				t.Errorf("Paths = %v, want %v", refs.Paths, tt.paths)
			}
		})
	}

	expr, err := parser.Parse(`json.parse(s)`)
	if err != nil {
		t.Fatal(err)
	}
	if got := References(expr).Variables; !reflect.DeepEqual(got, []string{"json", "s"}) {
		t.Errorf("Variables without qualified names = %v", got)
	}
}

// TestRefs_HasPath tests path queries used to prepare request data
func TestRefs_HasPath(t *testing.T) {
	tests := []struct {
		src  string
		path string
		want bool
	}{
		{src: "request.body.model == 'x'", path: "request.body", want: true},
		{src: "size(request.body) > 0", path: "request.body", want: true},
		{src: "size(request) > 0", path: "request.body", want: true},
		{src: "request.headers['a'] == 'b'", path: "request.body", want: false},
		{src: "request.bodyless", path: "request.body", want: false},
		{src: "llm.tokens > 10", path: "llm", want: true},
		{src: "items.all(request, request.body)", path: "request.body", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expr, err := parser.Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.src, err)
			}
			if got := References(expr).HasPath(tt.path); got != tt.want {
				t.Errorf("HasPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
