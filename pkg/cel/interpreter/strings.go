package interpreter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

func installStrings(c *Context) {
	c.AddFunction("contains", stringPredicate(strings.Contains))
	c.AddFunction("startsWith", stringPredicate(strings.HasPrefix))
	c.AddFunction("endsWith", stringPredicate(strings.HasSuffix))
	c.AddFunction("matches", fnMatches)
	c.AddFunction("lowerAscii", stringMapper(asciiLower))
	c.AddFunction("upperAscii", stringMapper(asciiUpper))
	c.AddFunction("trim", stringMapper(strings.TrimSpace))
	c.AddFunction("split", fnSplit)
	c.AddFunction("replace", fnReplace)
	c.AddFunction("join", fnJoin)
	c.AddFunction("indexOf", fnIndexOf)
	c.AddFunction("lastIndexOf", fnLastIndexOf)
	c.AddFunction("substring", fnSubstring)
}

func stringPredicate(pred func(s, x string) bool) Function {
	return func(call *FunctionCall) (value.Value, error) {
		ops, err := call.ExpectOperands(2, 2)
		if err != nil {
			return nil, err
		}
		strs, err := stringValues(ops)
		if err != nil {
			return nil, err
		}
		return value.Bool(pred(strs[0], strs[1])), nil
	}
}

func stringMapper(fn func(string) string) Function {
	return func(call *FunctionCall) (value.Value, error) {
		ops, err := call.ExpectOperands(1, 1)
		if err != nil {
			return nil, err
		}
		s, err := asString(ops[0])
		if err != nil {
			return nil, err
		}
		return value.String(fn(s)), nil
	}
}

func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

func asciiUpper(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r - ('a' - 'A')
		}
		return r
	}, s)
}

// fnMatches implements s.matches(pattern) with RE2 syntax. Literal patterns
// are normally precompiled at compile time; this path compiles per call.
func fnMatches(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(2, 2)
	if err != nil {
		return nil, err
	}
	strs, err := stringValues(ops)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(strs[1])
	if err != nil {
		return nil, celerrors.FunctionError("matches", fmt.Sprintf("invalid regex %q: %v", strs[1], err))
	}
	return value.Bool(re.MatchString(strs[0])), nil
}

// fnSplit implements s.split(sep) and s.split(sep, n).
func fnSplit(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(2, 3)
	if err != nil {
		return nil, err
	}
	strs, err := stringValues(ops[:2])
	if err != nil {
		return nil, err
	}
	n := int64(-1)
	if len(ops) == 3 {
		if n, err = asInt(ops[2]); err != nil {
			return nil, err
		}
	}
	parts := strings.SplitN(strs[0], strs[1], int(n))
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.String(p)
	}
	return value.NewList(out...), nil
}

// fnReplace implements s.replace(old, new) and s.replace(old, new, n).
func fnReplace(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(3, 4)
	if err != nil {
		return nil, err
	}
	strs, err := stringValues(ops[:3])
	if err != nil {
		return nil, err
	}
	n := int64(-1)
	if len(ops) == 4 {
		if n, err = asInt(ops[3]); err != nil {
			return nil, err
		}
	}
	return value.String(strings.Replace(strs[0], strs[1], strs[2], int(n))), nil
}

// fnJoin implements list.join() and list.join(sep).
func fnJoin(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(1, 2)
	if err != nil {
		return nil, err
	}
	l, err := asList(ops[0])
	if err != nil {
		return nil, err
	}
	sep := ""
	if len(ops) == 2 {
		if sep, err = asString(ops[1]); err != nil {
			return nil, err
		}
	}
	parts, err := stringValues(l.Items())
	if err != nil {
		return nil, err
	}
	return value.String(strings.Join(parts, sep)), nil
}

// fnIndexOf returns the code point index of the first occurrence of a
// substring at or after an optional offset, or -1.
func fnIndexOf(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(2, 3)
	if err != nil {
		return nil, err
	}
	strs, err := stringValues(ops[:2])
	if err != nil {
		return nil, err
	}
	runes := []rune(strs[0])
	offset := int64(0)
	if len(ops) == 3 {
		if offset, err = asInt(ops[2]); err != nil {
			return nil, err
		}
		if offset < 0 || offset > int64(len(runes)) {
			return nil, celerrors.IndexOutOfBounds(offset, len(runes))
		}
	}
	i := strings.Index(string(runes[offset:]), strs[1])
	if i < 0 {
		return value.Int(-1), nil
	}
	return value.Int(offset + int64(utf8.RuneCountInString(string(runes[offset:])[:i]))), nil
}

func fnLastIndexOf(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(2, 2)
	if err != nil {
		return nil, err
	}
	strs, err := stringValues(ops)
	if err != nil {
		return nil, err
	}
	i := strings.LastIndex(strs[0], strs[1])
	if i < 0 {
		return value.Int(-1), nil
	}
	return value.Int(utf8.RuneCountInString(strs[0][:i])), nil
}

// fnSubstring implements s.substring(start) and s.substring(start, end) over
// code points.
func fnSubstring(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(2, 3)
	if err != nil {
		return nil, err
	}
	s, err := asString(ops[0])
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	start, err := asInt(ops[1])
	if err != nil {
		return nil, err
	}
	end := int64(len(runes))
	if len(ops) == 3 {
		if end, err = asInt(ops[2]); err != nil {
			return nil, err
		}
	}
	if start < 0 || start > int64(len(runes)) {
		return nil, celerrors.IndexOutOfBounds(start, len(runes))
	}
	if end < start || end > int64(len(runes)) {
		return nil, celerrors.IndexOutOfBounds(end, len(runes))
	}
	return value.String(string(runes[start:end])), nil
}
