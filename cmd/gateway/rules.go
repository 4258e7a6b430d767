package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/gateway/pkg/cel"
	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cli"
	"mercator-hq/gateway/pkg/policy/rules"
	"mercator-hq/gateway/pkg/policy/snapshot"
	"mercator-hq/gateway/pkg/server"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Check and evaluate rule files",
}

var rulesCheckFlags struct {
	format string
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Validate rule files",
	Long: `Validate rule files for YAML syntax, rule structure and expression errors.

Every problem in a file is reported, not just the first. Expressions are
compiled strictly even when expression.lenient is set in the config. The
command exits with status 1 when any file has errors.

Examples:
  # Check one file
  gateway rules check rules.yaml

  # JSON output for CI/CD
  gateway rules check rules/*.yaml --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRulesCheck,
}

var rulesEvalFlags struct {
	input    string
	provider string
	format   string
}

var rulesEvalCmd = &cobra.Command{
	Use:   "eval FILE",
	Short: "Run a rule file against a sample request",
	Long: `Run the authorization, transform and route rules of a rule file against
a request described in YAML:

  method: POST
  url: https://gateway.example.com/v1/chat/completions
  remote_addr: 10.0.0.7:51234
  headers:
    x-team: search
  body: |
    {"model": "gpt-4o", "messages": [{"role": "user", "content": "hi"}]}

The command exits with status 1 when the request is denied.`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesEval,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd, rulesEvalCmd)

	rulesCheckCmd.Flags().StringVar(&rulesCheckFlags.format, "format", "text", "output format: text, json")

	rulesEvalCmd.Flags().StringVarP(&rulesEvalFlags.input, "input", "i", "", "YAML file describing the request")
	rulesEvalCmd.Flags().StringVar(&rulesEvalFlags.provider, "provider", server.DefaultProvider, "provider name reported as llm.provider")
	rulesEvalCmd.Flags().StringVar(&rulesEvalFlags.format, "format", "text", "output format: text, json")
	_ = rulesEvalCmd.MarkFlagRequired("input")
}

// CheckResult is the validation result for a single rule file.
type CheckResult struct {
	File         string    `json:"file"`
	Valid        bool      `json:"valid"`
	Rules        int       `json:"rules"`
	Requirements []string  `json:"requirements,omitempty"`
	Errors       []Finding `json:"errors,omitempty"`
}

// Finding is a single problem in a rule file.
type Finding struct {
	Type    string `json:"type"`
	Rule    string `json:"rule,omitempty"`
	Field   string `json:"field,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	var where []string
	if f.Line > 0 {
		where = append(where, fmt.Sprintf("line %d", f.Line))
	}
	if f.Rule != "" {
		where = append(where, fmt.Sprintf("rule %q", f.Rule))
	}
	if f.Field != "" {
		where = append(where, f.Field)
	}
	if len(where) == 0 {
		return fmt.Sprintf("%s error: %s", f.Type, f.Message)
	}
	return fmt.Sprintf("%s error at %s: %s", f.Type, strings.Join(where, ", "), f.Message)
}

// CheckReport is the output of "rules check".
type CheckReport []CheckResult

// Text implements cli.Texter.
func (r CheckReport) Text() string {
	var sb strings.Builder
	for _, res := range r {
		if res.Valid {
			fmt.Fprintf(&sb, "✓ %s: %d rules", res.File, res.Rules)
			if len(res.Requirements) > 0 {
				fmt.Fprintf(&sb, " (reads %s)", strings.Join(res.Requirements, ", "))
			}
			sb.WriteString("\n")
			continue
		}
		fmt.Fprintf(&sb, "✗ %s\n", res.File)
		for _, f := range res.Errors {
			fmt.Fprintf(&sb, "    %s\n", f)
		}
	}
	return sb.String()
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(rulesCheckFlags.format)
	if err != nil {
		return err
	}
	loader, err := newRulesLoader(cmd, true)
	if err != nil {
		return err
	}

	report := make(CheckReport, 0, len(args))
	failed := 0
	for _, path := range args {
		result := CheckResult{File: path, Valid: true}
		rs, err := loader.LoadFile(cmd.Context(), path)
		if err != nil {
			result.Valid = false
			result.Errors = findings(err)
			failed++
		} else {
			result.Rules = rs.Len()
			result.Requirements = requirementNames(rs.Requirements)
		}
		report = append(report, result)
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if failed > 0 {
		return &cli.ExitError{Code: 1, Err: fmt.Errorf("%d of %d rule files have errors", failed, len(args))}
	}
	return nil
}

// newRulesLoader builds a loader from the --config settings. strict forces
// strict compilation.
func newRulesLoader(cmd *cobra.Command, strict bool) (*rules.Loader, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if strict {
		cfg.Expression.Lenient = false
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	engine, err := cel.NewEngine(&cfg.Expression, logger)
	if err != nil {
		return nil, err
	}
	return rules.NewLoader(engine, &cfg.Rules, logger)
}

// findings flattens a load error into one finding per problem.
func findings(err error) []Finding {
	var (
		list  *rules.ErrorList
		verr  *rules.ValidationError
		perr  *rules.ParseError
		lerr  *rules.LoadError
		exprs *celerrors.ParseErrors
	)
	switch {
	case errors.As(err, &list):
		var out []Finding
		for _, e := range list.Errors {
			out = append(out, findings(e)...)
		}
		return out
	case errors.As(err, &verr):
		f := Finding{Type: "validation", Rule: verr.Rule, Field: verr.FieldPath, Message: verr.Message}
		if !errors.As(verr.Cause, &exprs) {
			return []Finding{f}
		}
		out := make([]Finding, 0, len(exprs.Errors))
		for _, pe := range exprs.Errors {
			g := f
			g.Type = "expression"
			g.Message = pe.Error()
			out = append(out, g)
		}
		return out
	case errors.As(err, &perr):
		return []Finding{{Type: "parse", Line: perr.Line, Message: perr.Message}}
	case errors.As(err, &lerr):
		msg := lerr.Message
		if lerr.Cause != nil {
			msg = fmt.Sprintf("%s: %v", msg, lerr.Cause)
		}
		return []Finding{{Type: "load", Message: msg}}
	}
	return []Finding{{Type: "unknown", Message: err.Error()}}
}

// requestFixture describes a sample request for "rules eval".
type requestFixture struct {
	Method     string            `yaml:"method"`
	URL        string            `yaml:"url"`
	RemoteAddr string            `yaml:"remote_addr"`
	Headers    map[string]string `yaml:"headers"`
	Body       string            `yaml:"body"`
}

func loadFixture(path string) (*http.Request, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read input file: %w", err)
	}
	var fx requestFixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, nil, fmt.Errorf("failed to parse input file %q: %w", path, err)
	}
	if fx.Method == "" {
		fx.Method = http.MethodGet
	}
	if fx.URL == "" {
		fx.URL = "/"
	}

	body := []byte(fx.Body)
	r, err := http.NewRequest(strings.ToUpper(fx.Method), fx.URL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid request in %q: %w", path, err)
	}
	if r.Host == "" {
		r.Host = "localhost"
	}
	r.RemoteAddr = fx.RemoteAddr
	for k, v := range fx.Headers {
		r.Header.Set(k, v)
	}
	return r, body, nil
}

// EvalReport is the output of "rules eval".
type EvalReport struct {
	server.AuthorizeResponse
}

// Text implements cli.Texter.
func (r EvalReport) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "decision: %s\n", r.Decision)
	if r.Rule != "" {
		fmt.Fprintf(&sb, "rule:     %s\n", r.Rule)
	}
	if r.Reason != "" {
		fmt.Fprintf(&sb, "reason:   %s\n", r.Reason)
	}
	if r.Backend != "" {
		fmt.Fprintf(&sb, "backend:  %s\n", r.Backend)
	}
	for name, v := range r.Headers {
		fmt.Fprintf(&sb, "header:   %s: %s\n", name, v)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&sb, "error:    %s\n", e)
	}
	return sb.String()
}

func runRulesEval(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(rulesEvalFlags.format)
	if err != nil {
		return err
	}
	loader, err := newRulesLoader(cmd, false)
	if err != nil {
		return err
	}
	rs, err := loader.LoadFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	r, body, err := loadFixture(rulesEvalFlags.input)
	if err != nil {
		return err
	}
	snap, err := snapshot.Capture(r, body, rs.Requirements, rulesEvalFlags.provider)
	if err != nil {
		return err
	}
	if u := r.URL; u.Scheme != "" {
		snap.Request.Scheme = u.Scheme
	}

	report := EvalReport{server.Decide(cmd.Context(), rs, snap)}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Allowed() {
		return &cli.ExitError{Code: 1, Err: fmt.Errorf("request denied")}
	}
	return nil
}
