package main

import (
	"bytes"
	"context"
	"testing"
)

// execute runs the root command with args and returns what it wrote to
// stdout. Flag values are reset first since cobra keeps them between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, verbose = "", false
	exprEvalFlags.input, exprEvalFlags.vars, exprEvalFlags.format = "", nil, "text"
	exprRefsFlags.format = "text"
	rulesCheckFlags.format = "text"
	rulesEvalFlags.input, rulesEvalFlags.provider, rulesEvalFlags.format = "", "openai", "text"
	serveFlags.listenAddress, serveFlags.rulesFile, serveFlags.provider = "", "", "openai"
	serveFlags.watchConfig, serveFlags.dryRun = false, false
	auditListFlags.since, auditListFlags.limit, auditListFlags.oldest = 0, 50, false
	auditListFlags.decision, auditListFlags.rule, auditListFlags.generation = "", "", ""
	auditListFlags.format = "text"
	versionFlags.format = "text"

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}
