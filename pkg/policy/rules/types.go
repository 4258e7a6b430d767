package rules

import (
	"time"

	"mercator-hq/gateway/pkg/cel"
	"mercator-hq/gateway/pkg/cel/references"
)

// Kind selects how a rule's result is used.
type Kind string

const (
	// KindAuthorization rules evaluate to a bool that allows or denies the
	// request.
	KindAuthorization Kind = "authorization"

	// KindTransform rules compute the value of a request header.
	KindTransform Kind = "transform"

	// KindRoute rules evaluate to a bool selecting a backend.
	KindRoute Kind = "route"
)

// Action is the outcome of authorization.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// Outcomes recorded for a single rule evaluation besides its action.
const (
	outcomeNoMatch = "none"
	outcomeError   = "error"
)

// Rule is one compiled rule.
type Rule struct {
	Name        string
	Description string
	Kind        Kind

	// Action applies to authorization rules.
	Action Action

	// Header is the header a transform rule sets.
	Header string

	// Backend is the target of a route rule.
	Backend string

	Program *cel.Program
	Refs    references.Refs
}

// Decision is the result of authorizing one request.
type Decision struct {
	// Action is the final decision.
	Action Action

	// Rule names the rule that decided, or is empty when the default
	// action applied.
	Rule string

	// Reason explains the decision.
	Reason string

	// Errors holds rules that failed to evaluate.
	Errors []*RuleError

	// Generation identifies the rule set that decided.
	Generation string

	// Duration is the total evaluation time.
	Duration time.Duration
}

// Allowed reports whether the request may proceed.
func (d *Decision) Allowed() bool {
	return d.Action == ActionAllow
}

// ruleFile is the YAML layout of a rule file.
type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Kind        Kind   `yaml:"kind"`
	Action      Action `yaml:"action"`
	Header      string `yaml:"header"`
	Backend     string `yaml:"backend"`
	Expr        string `yaml:"expr"`
}
