package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/config"
	"mercator-hq/gateway/pkg/policy/snapshot"
)

func TestNewLoader(t *testing.T) {
	loader, _ := newTestLoader(t, nil, nil)
	if loader.defaultAction != ActionAllow {
		t.Errorf("defaultAction = %q, want allow", loader.defaultAction)
	}

	engine := loader.engine
	if _, err := NewLoader(nil, nil, nil); err == nil {
		t.Error("expected error for nil engine")
	}
	if _, err := NewLoader(engine, &config.RulesConfig{DefaultAction: "maybe"}, nil); err == nil {
		t.Error("expected error for invalid default action")
	}
	l, err := NewLoader(engine, &config.RulesConfig{DefaultAction: "deny"}, nil)
	if err != nil || l.defaultAction != ActionDeny {
		t.Errorf("NewLoader(deny) = %v, %v", l, err)
	}
}

func TestLoader_Parse(t *testing.T) {
	loader, logs := newTestLoader(t, nil, nil)
	rs := mustParse(t, loader, testRules)

	if rs.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", rs.Len())
	}
	if rs.Generation == "" || rs.Source != "rules.yaml" {
		t.Errorf("Generation = %q, Source = %q", rs.Generation, rs.Source)
	}

	deny, ok := rs.Rule("deny-blocked-team")
	if !ok {
		t.Fatal("missing rule deny-blocked-team")
	}
	if deny.Kind != KindAuthorization || deny.Action != ActionDeny {
		t.Errorf("defaults not applied: kind=%q action=%q", deny.Kind, deny.Action)
	}
	if deny.Description == "" {
		t.Error("description not loaded")
	}
	if !deny.Refs.HasPath("request.headers") {
		t.Errorf("Refs = %+v", deny.Refs)
	}

	want := snapshot.Requirements{Request: true, LLM: true}
	if rs.Requirements != want {
		t.Errorf("Requirements = %+v, want %+v", rs.Requirements, want)
	}

	if !strings.Contains(logs.String(), "Rule set loaded") {
		t.Errorf("expected load log, got %s", logs.String())
	}

	other := mustParse(t, loader, testRules)
	if other.Generation == rs.Generation {
		t.Error("each load must get a new generation")
	}
}

func TestLoader_Parse_Empty(t *testing.T) {
	loader, _ := newTestLoader(t, nil, nil)

	for _, src := range []string{"", "rules: []\n", "# nothing\n"} {
		rs := mustParse(t, loader, src)
		if rs.Len() != 0 {
			t.Errorf("Parse(%q) Len() = %d, want 0", src, rs.Len())
		}
	}
}

func TestLoader_Parse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing name",
			src:       "rules:\n  - expr: 'true'\n",
			wantField: "rules[0].name",
			wantMsg:   "name is required",
		},
		{
			name:      "missing expr",
			src:       "rules:\n  - name: a\n",
			wantField: "rules[0].expr",
			wantMsg:   "expression is required",
		},
		{
			name:      "duplicate name",
			src:       "rules:\n  - name: a\n    expr: 'true'\n  - name: a\n    expr: 'false'\n",
			wantField: "rules[1].name",
			wantMsg:   "duplicate rule name",
		},
		{
			name:      "unknown kind",
			src:       "rules:\n  - name: a\n    kind: audit\n    expr: 'true'\n",
			wantField: "rules[0].kind",
			wantMsg:   `unknown kind "audit"`,
		},
		{
			name:      "bad action",
			src:       "rules:\n  - name: a\n    action: maybe\n    expr: 'true'\n",
			wantField: "rules[0].action",
			wantMsg:   "invalid action",
		},
		{
			name:      "action on transform",
			src:       "rules:\n  - name: a\n    kind: transform\n    header: x\n    action: allow\n    expr: 'true'\n",
			wantField: "rules[0].action",
			wantMsg:   "only applies to authorization",
		},
		{
			name:      "transform without header",
			src:       "rules:\n  - name: a\n    kind: transform\n    expr: 'true'\n",
			wantField: "rules[0].header",
			wantMsg:   "require a header",
		},
		{
			name:      "route without backend",
			src:       "rules:\n  - name: a\n    kind: route\n    expr: 'true'\n",
			wantField: "rules[0].backend",
			wantMsg:   "require a backend",
		},
		{
			name:      "expression does not compile",
			src:       "rules:\n  - name: a\n    expr: 'request.'\n",
			wantField: "rules[0].expr",
			wantMsg:   "does not compile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, _ := newTestLoader(t, nil, nil)
			_, err := loader.Parse(context.Background(), "rules.yaml", []byte(tt.src))

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Parse() error = %v, want *ValidationError", err)
			}
			if ve.FieldPath != tt.wantField {
				t.Errorf("FieldPath = %q, want %q", ve.FieldPath, tt.wantField)
			}
			if !strings.Contains(ve.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want to contain %q", ve.Message, tt.wantMsg)
			}
		})
	}
}

func TestLoader_Parse_CollectsAllErrors(t *testing.T) {
	loader, _ := newTestLoader(t, nil, nil)
	src := `
rules:
  - name: a
  - expr: "true"
  - name: c
    expr: "1 +"
`
	_, err := loader.Parse(context.Background(), "rules.yaml", []byte(src))

	var list *ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("Parse() error = %v, want *ErrorList", err)
	}
	if len(list.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(list.Errors), err)
	}

	var perr *celerrors.ParseErrors
	if !errors.As(list.Errors[2], &perr) {
		t.Errorf("compile failure should wrap *ParseErrors, got %v", list.Errors[2])
	}
}

func TestLoader_Parse_Lenient(t *testing.T) {
	loader, logs := newTestLoader(t, &config.ExpressionConfig{Lenient: true}, nil)
	src := `
rules:
  - name: broken
    expr: "request.headers["
  - name: fine
    action: allow
    expr: "true"
`
	rs := mustParse(t, loader, src)
	if rs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rs.Len())
	}

	broken, _ := rs.Rule("broken")
	if broken.Program.CompileError() == nil {
		t.Error("expected the broken rule to carry its compile error")
	}
	if !strings.Contains(logs.String(), "Expression failed to compile") {
		t.Error("expected a compile warning")
	}

	// The broken deny rule fails closed.
	d := rs.Authorize(context.Background(), teamSnapshot("search", 10))
	if d.Allowed() || d.Rule != "broken" || len(d.Errors) != 1 {
		t.Errorf("Authorize() = %+v", d)
	}
}

func TestLoader_Parse_MalformedYAML(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
	}{
		{name: "unknown field", src: "rules:\n  - name: a\n    expression: 'true'\n", wantLine: 3},
		{name: "wrong type", src: "rules: 5\n", wantLine: 1},
		{name: "syntax", src: "rules:\n  - name: [\n", wantLine: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, _ := newTestLoader(t, nil, nil)
			_, err := loader.Parse(context.Background(), "rules.yaml", []byte(tt.src))

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse() error = %v, want *ParseError", err)
			}
			if tt.wantLine > 0 && perr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", perr.Line, tt.wantLine)
			}
		})
	}
}

func TestLoader_LoadFile(t *testing.T) {
	loader, _ := newTestLoader(t, nil, nil, WithMaxFileSize(64))
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := writeRules(t, dir, "rules:\n  - name: a\n    expr: 'false'\n")
		rs, err := loader.LoadFile(context.Background(), path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if rs.Source != path || rs.Len() != 1 {
			t.Errorf("Source = %q, Len() = %d", rs.Source, rs.Len())
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := loader.LoadFile(context.Background(), filepath.Join(dir, "missing.yaml"))
		var le *LoadError
		if !errors.As(err, &le) || le.Message != "file not found" {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Error("expected errors.Is(err, os.ErrNotExist)")
		}
	})

	t.Run("directory", func(t *testing.T) {
		_, err := loader.LoadFile(context.Background(), dir)
		var le *LoadError
		if !errors.As(err, &le) || le.Message != "not a regular file" {
			t.Fatalf("LoadFile() error = %v", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		path := writeRules(t, dir, "rules:\n"+strings.Repeat("# padding\n", 10))
		_, err := loader.LoadFile(context.Background(), path)
		var le *LoadError
		if !errors.As(err, &le) || !strings.Contains(le.Message, "exceeds maximum") {
			t.Fatalf("LoadFile() error = %v", err)
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		path := writeRules(t, dir, "rules: []\n# \xff\n")
		_, err := loader.LoadFile(context.Background(), path)
		var le *LoadError
		if !errors.As(err, &le) || !strings.Contains(le.Message, "UTF-8") {
			t.Fatalf("LoadFile() error = %v", err)
		}
	})
}
