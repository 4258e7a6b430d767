package main

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestExprEval(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "literal",
			args: []string{"expr", "eval", "1 + 2 * 3"},
			want: "7\n",
		},
		{
			name: "inline vars",
			args: []string{"expr", "eval", "tokens * 2", "--var", "tokens=1200"},
			want: "2400\n",
		},
		{
			name: "string var",
			args: []string{"expr", "eval", `team + "-prod"`, "--var", "team=search"},
			want: "\"search-prod\"\n",
		},
		{
			name: "input file",
			args: []string{"expr", "eval", `request.model.startsWith("gpt-") && "ads" in teams`, "--input", "testdata/vars.yaml"},
			want: "true\n",
		},
		{
			name: "var overrides input file",
			args: []string{"expr", "eval", "request.tokens", "--input", "testdata/vars.yaml", "--var", "request={tokens: 5}"},
			want: "5\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("expr eval returned error: %v", err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestExprEval_JSON(t *testing.T) {
	out, err := execute(t, "expr", "eval", `{"a": [1, 2]}`, "--format", "json")
	if err != nil {
		t.Fatalf("expr eval returned error: %v", err)
	}

	var result struct {
		Expression string         `json:"expression"`
		Type       string         `json:"type"`
		Value      map[string]any `json:"value"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result.Type != "map" {
		t.Errorf("type = %q, want map", result.Type)
	}
	if !reflect.DeepEqual(result.Value, map[string]any{"a": []any{1.0, 2.0}}) {
		t.Errorf("value = %v", result.Value)
	}
}

func TestExprEval_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "syntax", args: []string{"expr", "eval", "1 +"}},
		{name: "undeclared", args: []string{"expr", "eval", "missing + 1"}},
		{name: "bad var", args: []string{"expr", "eval", "1", "--var", "novalue"}, wantErr: "expected name=value"},
		{name: "missing input", args: []string{"expr", "eval", "1", "--input", "testdata/nonexistent.yaml"}, wantErr: "failed to read input file"},
		{name: "bad format", args: []string{"expr", "eval", "1", "--format", "xml"}, wantErr: "invalid output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestExprRefs(t *testing.T) {
	out, err := execute(t, "expr", "refs", `request.headers["x-team"] == "a" && size(llm.prompt) > 0`, "--format", "json")
	if err != nil {
		t.Fatalf("expr refs returned error: %v", err)
	}

	var result RefsResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !reflect.DeepEqual(result.Variables, []string{"llm", "request"}) {
		t.Errorf("variables = %v, want [llm request]", result.Variables)
	}
	for _, want := range []string{"request", "llm", "llm.prompt"} {
		if !containsString(result.Requirements, want) {
			t.Errorf("requirements %v missing %q", result.Requirements, want)
		}
	}
	if containsString(result.Requirements, "request.body") {
		t.Errorf("requirements %v should not include request.body", result.Requirements)
	}
}

func TestLoadVariables(t *testing.T) {
	vars, err := loadVariables("", []string{"n=3", "flag=true", "list=[1, 2]", "s=hello world"})
	if err != nil {
		t.Fatalf("loadVariables() error = %v", err)
	}
	want := map[string]any{
		"n":    3,
		"flag": true,
		"list": []any{1, 2},
		"s":    "hello world",
	}
	if !reflect.DeepEqual(vars, want) {
		t.Errorf("loadVariables() = %#v, want %#v", vars, want)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
