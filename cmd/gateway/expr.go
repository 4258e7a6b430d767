package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/gateway/pkg/cel"
	"mercator-hq/gateway/pkg/cel/interpreter"
	"mercator-hq/gateway/pkg/cel/value"
	"mercator-hq/gateway/pkg/cli"
	"mercator-hq/gateway/pkg/policy/snapshot"
)

var exprCmd = &cobra.Command{
	Use:   "expr",
	Short: "Evaluate and inspect expressions",
}

var exprEvalFlags struct {
	input  string
	vars   []string
	format string
}

var exprEvalCmd = &cobra.Command{
	Use:   "eval EXPRESSION",
	Short: "Evaluate an expression",
	Long: `Evaluate an expression and print its result.

Variables come from a YAML or JSON file given with --input, whose top-level
keys are the variable names, and from --var flags. A --var value is read
as YAML, so numbers, booleans and lists keep their type.

Examples:
  # Evaluate with variables from a file
  gateway expr eval 'request.model.startsWith("gpt-")' --input vars.yaml

  # Evaluate with inline variables
  gateway expr eval 'tokens * price' --var tokens=1200 --var price=0.00001

  # JSON output
  gateway expr eval '{"a": [1, 2]}' --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runExprEval,
}

var exprRefsFlags struct {
	format string
}

var exprRefsCmd = &cobra.Command{
	Use:   "refs EXPRESSION",
	Short: "Show the variables, functions and paths an expression reads",
	Long: `Compile an expression and list what it references.

The requirements line shows which parts of the traffic the gateway must
capture for the expression, such as the request body or the LLM prompt.`,
	Args: cobra.ExactArgs(1),
	RunE: runExprRefs,
}

func init() {
	rootCmd.AddCommand(exprCmd)
	exprCmd.AddCommand(exprEvalCmd, exprRefsCmd)

	exprEvalCmd.Flags().StringVarP(&exprEvalFlags.input, "input", "i", "", "YAML or JSON file of variables")
	exprEvalCmd.Flags().StringArrayVar(&exprEvalFlags.vars, "var", nil, "variable as name=value (repeatable)")
	exprEvalCmd.Flags().StringVar(&exprEvalFlags.format, "format", "text", "output format: text, json")

	exprRefsCmd.Flags().StringVar(&exprRefsFlags.format, "format", "text", "output format: text, json")
}

// EvalResult is the output of "expr eval".
type EvalResult struct {
	Expression string `json:"expression"`
	Type       string `json:"type"`
	Value      any    `json:"value"`

	text string
}

// Text implements cli.Texter.
func (r EvalResult) Text() string {
	return r.text
}

func runExprEval(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(exprEvalFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	engine, err := cel.NewEngine(&cfg.Expression, logger)
	if err != nil {
		return err
	}

	vars, err := loadVariables(exprEvalFlags.input, exprEvalFlags.vars)
	if err != nil {
		return err
	}

	v, err := engine.Eval(cmd.Context(), args[0], interpreter.GoResolver(vars))
	if err != nil {
		return err
	}
	j, err := value.JSON(v)
	if err != nil {
		return fmt.Errorf("result has no JSON form: %w", err)
	}
	result := EvalResult{
		Expression: args[0],
		Type:       value.TypeName(v),
		Value:      j,
		text:       value.Format(v),
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)
}

// loadVariables reads the variables file, then applies name=value pairs.
func loadVariables(path string, pairs []string) (map[string]any, error) {
	vars := make(map[string]any)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("failed to parse input file %q: %w", path, err)
		}
		if vars == nil {
			vars = make(map[string]any)
		}
	}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: expected name=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		vars[name] = v
	}
	return vars, nil
}

// RefsResult is the output of "expr refs".
type RefsResult struct {
	Variables    []string `json:"variables"`
	Functions    []string `json:"functions"`
	Paths        []string `json:"paths"`
	Requirements []string `json:"requirements"`
}

// Text implements cli.Texter.
func (r RefsResult) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "variables:    %s\n", strings.Join(r.Variables, ", "))
	fmt.Fprintf(&sb, "functions:    %s\n", strings.Join(r.Functions, ", "))
	fmt.Fprintf(&sb, "paths:        %s\n", strings.Join(r.Paths, ", "))
	fmt.Fprintf(&sb, "requirements: %s\n", strings.Join(r.Requirements, ", "))
	return sb.String()
}

func runExprRefs(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(exprRefsFlags.format)
	if err != nil {
		return err
	}
	p, err := cel.Compile(args[0])
	if err != nil {
		return err
	}

	refs := p.References()
	result := RefsResult{
		Variables:    nonNil(refs.Variables),
		Functions:    nonNil(refs.Functions),
		Paths:        nonNil(refs.Paths),
		Requirements: requirementNames(snapshot.RequirementsOf(refs)),
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)
}

// requirementNames lists the captured parts named by r.
func requirementNames(r snapshot.Requirements) []string {
	names := []string{}
	add := func(ok bool, name string) {
		if ok {
			names = append(names, name)
		}
	}
	add(r.Request, "request")
	add(r.RequestBody, "request.body")
	add(r.Response, "response")
	add(r.ResponseBody, "response.body")
	add(r.LLM, "llm")
	add(r.LLMPrompt, "llm.prompt")
	add(r.LLMCompletion, "llm.completion")
	return names
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
