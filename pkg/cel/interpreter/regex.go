package interpreter

import (
	"encoding/json"
	"fmt"
	"regexp"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

// RegexTypeName is the type name of compiled regular expressions.
const RegexTypeName = "regex"

// Regex is a compiled regular expression. It is produced by regex(pattern)
// at runtime or by the regex precompile optimization at compile time.
type Regex struct {
	re *regexp.Regexp
}

// NewRegex compiles pattern using RE2 syntax.
func NewRegex(pattern string) (*Regex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return &Regex{re: re}, nil
}

// TypeName implements value.Opaque.
func (r *Regex) TypeName() string {
	return RegexTypeName
}

// Pattern returns the source pattern.
func (r *Regex) Pattern() string {
	return r.re.String()
}

func (r *Regex) String() string {
	return r.re.String()
}

// EqualOpaque reports whether both regexes were compiled from the same
// pattern.
func (r *Regex) EqualOpaque(other value.Opaque) bool {
	x, ok := other.(*Regex)
	return ok && x.re.String() == r.re.String()
}

// MarshalJSON renders the pattern as a JSON string.
func (r *Regex) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.re.String())
}

// CallFunction implements value.MethodProvider.
//
//	re.matches(s)          bool
//	re.extract(s)          first capture group, the whole match, or null
//	re.extractAll(s)       list of matches
//	re.replace(s, repl)    s with every match replaced; repl may use $1
func (r *Regex) CallFunction(name string, call value.Call) (value.Value, bool, error) {
	switch name {
	case "matches", "extract", "extractAll":
		s, err := regexInput(call, 1)
		if err != nil {
			return nil, true, err
		}
		switch name {
		case "matches":
			return value.Bool(r.re.MatchString(s)), true, nil
		case "extract":
			return r.extract(s), true, nil
		default:
			return r.extractAll(s), true, nil
		}
	case "replace":
		s, err := regexInput(call, 2)
		if err != nil {
			return nil, true, err
		}
		rv, err := call.Arg(1)
		if err != nil {
			return nil, true, err
		}
		repl, err := asString(rv)
		if err != nil {
			return nil, true, err
		}
		return value.String(r.re.ReplaceAllString(s, repl)), true, nil
	}
	return nil, false, nil
}

func (r *Regex) extract(s string) value.Value {
	m := r.re.FindStringSubmatch(s)
	switch {
	case m == nil:
		return value.NullValue
	case len(m) > 1:
		return value.String(m[1])
	default:
		return value.String(m[0])
	}
}

func (r *Regex) extractAll(s string) value.Value {
	matches := r.re.FindAllStringSubmatch(s, -1)
	items := make([]value.Value, len(matches))
	for i, m := range matches {
		if len(m) > 1 {
			items[i] = value.String(m[1])
		} else {
			items[i] = value.String(m[0])
		}
	}
	return value.NewList(items...)
}

// regexInput checks the argument count and returns argument 0 as a string.
func regexInput(call value.Call, n int) (string, error) {
	if call.ArgCount() != n {
		return "", celerrors.InvalidArgumentCount(n, call.ArgCount())
	}
	v, err := call.Arg(0)
	if err != nil {
		return "", err
	}
	return asString(v)
}

func installRegex(c *Context) {
	c.AddFunction("regex", func(call *FunctionCall) (value.Value, error) {
		ops, err := call.ExpectOperands(1, 1)
		if err != nil {
			return nil, err
		}
		pattern, err := asString(ops[0])
		if err != nil {
			return nil, err
		}
		re, err := NewRegex(pattern)
		if err != nil {
			return nil, call.Error(err.Error())
		}
		return value.NewObject(re), nil
	})
}
