package rules

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/interpreter"
	"mercator-hq/gateway/pkg/cel/value"
	"mercator-hq/gateway/pkg/policy/snapshot"
	"mercator-hq/gateway/pkg/telemetry/logging"
	"mercator-hq/gateway/pkg/telemetry/tracing"
)

// RuleSet is an immutable, compiled rule file. It is safe for concurrent
// evaluation.
type RuleSet struct {
	// Rules are in file order.
	Rules []*Rule

	// Generation is a unique id assigned at load time.
	Generation string

	// Source is the file the rules were loaded from.
	Source   string
	LoadedAt time.Time

	// Requirements is the union of what the rules read.
	Requirements snapshot.Requirements

	loader *Loader
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.Rules)
}

// Rule returns the rule called name.
func (rs *RuleSet) Rule(name string) (*Rule, bool) {
	for _, r := range rs.Rules {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Authorize decides whether the request in snap may proceed:
//
//  1. The first deny rule that evaluates to true denies.
//  2. Otherwise, if there are allow rules, the request is allowed only when
//     one of them evaluates to true.
//  3. Otherwise the configured default action applies.
//
// A rule that fails to evaluate, or evaluates to something other than a
// bool, is reported in Decision.Errors. A failing deny rule denies; a failing
// allow rule does not match.
func (rs *RuleSet) Authorize(ctx context.Context, snap *snapshot.Snapshot) *Decision {
	start := time.Now()
	ctx = rs.context(ctx, snap)

	ctx, span := rs.loader.tracer.Start(ctx, "rules.authorize")
	defer span.End()
	tracing.SetRuleSetAttributes(span, rs.Generation, len(rs.Rules))

	resolver := resolverFor(snap)
	d := &Decision{Generation: rs.Generation}
	hasAllow := false
	var allowedBy string

	for _, rule := range rs.Rules {
		if rule.Kind != KindAuthorization {
			continue
		}
		if rule.Action == ActionAllow {
			hasAllow = true
			if allowedBy != "" {
				continue
			}
		}

		matched, err := rs.evalBool(ctx, rule, resolver)
		if err != nil {
			d.Errors = append(d.Errors, &RuleError{Rule: rule.Name, Err: err})
			if rule.Action == ActionDeny {
				d.Action, d.Rule = ActionDeny, rule.Name
				d.Reason = fmt.Sprintf("rule %q failed to evaluate", rule.Name)
				break
			}
			continue
		}
		if !matched {
			continue
		}
		if rule.Action == ActionDeny {
			d.Action, d.Rule = ActionDeny, rule.Name
			d.Reason = fmt.Sprintf("denied by rule %q", rule.Name)
			break
		}
		allowedBy = rule.Name
	}

	if d.Action == "" {
		switch {
		case allowedBy != "":
			d.Action, d.Rule = ActionAllow, allowedBy
			d.Reason = fmt.Sprintf("allowed by rule %q", allowedBy)
		case hasAllow:
			d.Action = ActionDeny
			d.Reason = "no allow rule matched"
		default:
			d.Action = rs.loader.defaultAction
			d.Reason = "default action"
		}
	}

	d.Duration = time.Since(start)
	rs.loader.metrics.RecordRuleDecision(string(d.Action))
	tracing.SetRuleAttributes(span, d.Rule, string(d.Action))
	tracing.SetStatus(span, nil)

	msg := "Request allowed"
	if !d.Allowed() {
		msg = "Request denied"
	}
	rs.loader.logger.DebugContext(ctx, msg,
		"rule", d.Rule,
		"reason", d.Reason,
		"errors", len(d.Errors),
		"duration", d.Duration,
	)
	return d
}

// Transform evaluates every transform rule and returns the headers to set.
// String results are used as is; other values are formatted. Rules that fail
// are skipped and returned as errors.
func (rs *RuleSet) Transform(ctx context.Context, snap *snapshot.Snapshot) (map[string]string, []*RuleError) {
	ctx = rs.context(ctx, snap)
	ctx, span := rs.loader.tracer.Start(ctx, "rules.transform")
	defer span.End()
	tracing.SetRuleSetAttributes(span, rs.Generation, len(rs.Rules))

	resolver := resolverFor(snap)
	headers := make(map[string]string)
	var errs []*RuleError
	for _, rule := range rs.Rules {
		if rule.Kind != KindTransform {
			continue
		}
		start := time.Now()
		v, err := rs.loader.engine.Execute(logging.WithRule(ctx, rule.Name), rule.Program, resolver)
		if err != nil {
			rs.loader.metrics.RecordRuleEvaluation(rule.Name, outcomeError, time.Since(start))
			errs = append(errs, &RuleError{Rule: rule.Name, Err: err})
			continue
		}
		rs.loader.metrics.RecordRuleEvaluation(rule.Name, string(KindTransform), time.Since(start))
		if s, ok := value.Materialize(v).(value.String); ok {
			headers[rule.Header] = string(s)
		} else {
			headers[rule.Header] = value.Format(v)
		}
	}

	span.SetAttributes(attribute.Int("mercator.transform.headers", len(headers)))
	tracing.SetStatus(span, nil)
	return headers, errs
}

// Route returns the backend of the first route rule that evaluates to true.
func (rs *RuleSet) Route(ctx context.Context, snap *snapshot.Snapshot) (string, bool, []*RuleError) {
	ctx = rs.context(ctx, snap)
	ctx, span := rs.loader.tracer.Start(ctx, "rules.route")
	defer span.End()
	tracing.SetRuleSetAttributes(span, rs.Generation, len(rs.Rules))

	resolver := resolverFor(snap)
	var errs []*RuleError
	for _, rule := range rs.Rules {
		if rule.Kind != KindRoute {
			continue
		}
		matched, err := rs.evalBool(ctx, rule, resolver)
		if err != nil {
			errs = append(errs, &RuleError{Rule: rule.Name, Err: err})
			continue
		}
		if matched {
			tracing.SetRuleAttributes(span, rule.Name, string(KindRoute))
			span.SetAttributes(attribute.String("mercator.route.backend", rule.Backend))
			tracing.SetStatus(span, nil)
			return rule.Backend, true, errs
		}
	}
	tracing.SetStatus(span, nil)
	return "", false, errs
}

// evalBool runs a boolean rule and records its outcome.
func (rs *RuleSet) evalBool(ctx context.Context, rule *Rule, resolver interpreter.Resolver) (bool, error) {
	start := time.Now()
	matched, err := rs.execBool(logging.WithRule(ctx, rule.Name), rule, resolver)
	duration := time.Since(start)

	outcome := outcomeNoMatch
	switch {
	case err != nil:
		outcome = outcomeError
	case matched && rule.Kind == KindAuthorization:
		outcome = string(rule.Action)
	case matched:
		outcome = string(rule.Kind)
	}
	rs.loader.metrics.RecordRuleEvaluation(rule.Name, outcome, duration)
	return matched, err
}

func (rs *RuleSet) execBool(ctx context.Context, rule *Rule, resolver interpreter.Resolver) (bool, error) {
	v, err := rs.loader.engine.Execute(ctx, rule.Program, resolver)
	if err != nil {
		return false, err
	}
	b, ok := value.Materialize(v).(value.Bool)
	if !ok {
		return false, celerrors.UnexpectedType(value.TypeName(value.Materialize(v)), "bool")
	}
	return bool(b), nil
}

// context attaches the rule set generation, request id and, unless ctx
// already carries a span, the trace context from the request headers.
func (rs *RuleSet) context(ctx context.Context, snap *snapshot.Snapshot) context.Context {
	ctx = logging.WithRuleSet(ctx, rs.Generation)
	if snap == nil || snap.Request == nil {
		return ctx
	}
	if snap.Request.ID != "" {
		ctx = logging.WithRequestID(ctx, snap.Request.ID)
	}
	if !tracing.SpanContext(ctx).IsValid() {
		ctx = tracing.ExtractFromMap(ctx, snap.Request.Headers.Carrier())
	}
	return ctx
}

// resolverFor binds the snapshot's variables. A nil snapshot binds none.
func resolverFor(snap *snapshot.Snapshot) interpreter.Resolver {
	if snap == nil {
		return nil
	}
	return snap
}
