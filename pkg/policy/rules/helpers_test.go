package rules

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/gateway/pkg/cel"
	"mercator-hq/gateway/pkg/config"
	"mercator-hq/gateway/pkg/policy/snapshot"
)

const testRules = `
rules:
  - name: deny-blocked-team
    description: The blocked team may not call the gateway
    expr: request.headers["x-team"] == "blocked"

  - name: allow-known-teams
    action: allow
    expr: request.headers["x-team"] in ["search", "ads"]

  - name: tag-team
    kind: transform
    header: x-mercator-team
    expr: request.headers["x-team"]

  - name: tag-tokens
    kind: transform
    header: x-mercator-tokens
    expr: llm.inputTokens

  - name: small-prompts
    kind: route
    backend: gpt-4o-mini
    expr: llm.inputTokens < 500

  - name: everything-else
    kind: route
    backend: gpt-4o
    expr: "true"
`

// newTestLoader creates a loader whose logs go to the returned buffer.
func newTestLoader(t testing.TB, exprCfg *config.ExpressionConfig, rulesCfg *config.RulesConfig, opts ...LoaderOption) (*Loader, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	engine, err := cel.NewEngine(exprCfg, logger)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	loader, err := NewLoader(engine, rulesCfg, logger, opts...)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	return loader, &logs
}

func mustParse(t testing.TB, loader *Loader, src string) *RuleSet {
	t.Helper()
	rs, err := loader.Parse(context.Background(), "rules.yaml", []byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return rs
}

func writeRules(t testing.TB, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func teamSnapshot(team string, tokens int) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Request: &snapshot.Request{
			ID:      "req-" + team,
			Method:  "POST",
			Path:    "/v1/chat/completions",
			Headers: snapshot.Headers{"X-Team": {team}},
		},
		LLM: &snapshot.LLM{Provider: "openai", RequestModel: "gpt-4o", InputTokens: tokens},
	}
}
