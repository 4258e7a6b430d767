package ast

import (
	"strconv"
	"strings"

	"mercator-hq/gateway/pkg/cel/value"
)

// Format renders e back into expression syntax. Macros are printed in their
// call form and Optimized nodes print their original subtree, so the output
// re-parses to an equivalent program.
func Format(e *Expr) string {
	var sb strings.Builder
	format(&sb, e)
	return sb.String()
}

func format(sb *strings.Builder, e *Expr) {
	if e == nil {
		return
	}
	switch e.Type {
	case ExprLiteral, ExprInline:
		formatValue(sb, e.Value)

	case ExprIdent:
		sb.WriteString(e.Name)

	case ExprSelect:
		if e.Test {
			sb.WriteString("has(")
		}
		format(sb, e.Operand)
		sb.WriteString(".")
		sb.WriteString(e.Field)
		if e.Test {
			sb.WriteString(")")
		}

	case ExprCall:
		formatCall(sb, e)

	case ExprList:
		sb.WriteString("[")
		for i, el := range e.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, el)
		}
		sb.WriteString("]")

	case ExprMap, ExprStruct:
		sb.WriteString(e.TypeName)
		sb.WriteString("{")
		for i, en := range e.Entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			if en.Key != nil {
				format(sb, en.Key)
			} else {
				sb.WriteString(en.Field)
			}
			sb.WriteString(": ")
			format(sb, en.Value)
		}
		sb.WriteString("}")

	case ExprComprehension:
		formatComprehension(sb, e.Comprehension)

	case ExprOptimized:
		format(sb, e.Original)
	}
}

func formatCall(sb *strings.Builder, e *Expr) {
	switch {
	case e.Function == OpConditional && len(e.Args) == 3:
		sb.WriteString("(")
		format(sb, e.Args[0])
		sb.WriteString(" ? ")
		format(sb, e.Args[1])
		sb.WriteString(" : ")
		format(sb, e.Args[2])
		sb.WriteString(")")
		return
	case e.Function == OpIndex && len(e.Args) == 2:
		format(sb, e.Args[0])
		sb.WriteString("[")
		format(sb, e.Args[1])
		sb.WriteString("]")
		return
	}

	if sym, ok := OperatorSymbol(e.Function); ok {
		if len(e.Args) == 1 {
			sb.WriteString(sym)
			format(sb, e.Args[0])
			return
		}
		if len(e.Args) == 2 {
			sb.WriteString("(")
			format(sb, e.Args[0])
			sb.WriteString(" " + sym + " ")
			format(sb, e.Args[1])
			sb.WriteString(")")
			return
		}
	}

	if e.Target != nil {
		format(sb, e.Target)
		sb.WriteString(".")
	}
	sb.WriteString(e.Function)
	sb.WriteString("(")
	for i, a := range e.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		format(sb, a)
	}
	sb.WriteString(")")
}

func formatComprehension(sb *strings.Builder, c *Comprehension) {
	if c.Macro == MacroNone {
		sb.WriteString("__comprehension__(")
		format(sb, c.IterRange)
		sb.WriteString(")")
		return
	}
	format(sb, c.IterRange)
	sb.WriteString("." + string(c.Macro) + "(")
	sb.WriteString(c.IterVar)
	if c.IterVar2 != "" {
		sb.WriteString(", " + c.IterVar2)
	}
	switch c.Macro {
	case MacroFilter:
		sb.WriteString(", ")
		format(sb, c.LoopCond)
	case MacroMap:
		if c.LoopCond != nil {
			sb.WriteString(", ")
			format(sb, c.LoopCond)
		}
		sb.WriteString(", ")
		format(sb, c.LoopStep)
	default:
		sb.WriteString(", ")
		format(sb, c.LoopStep)
	}
	sb.WriteString(")")
}

func formatValue(sb *strings.Builder, v value.Value) {
	switch x := v.(type) {
	case value.Int:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case value.UInt:
		sb.WriteString(strconv.FormatUint(uint64(x), 10) + "u")
	case value.Float:
		s := strconv.FormatFloat(float64(x), 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		sb.WriteString(s)
	case value.String:
		sb.WriteString(strconv.Quote(string(x)))
	case value.Bytes:
		sb.WriteString("b" + strconv.Quote(string(x.Data())))
	case value.Bool:
		sb.WriteString(strconv.FormatBool(bool(x)))
	case value.Null:
		sb.WriteString("null")
	case value.List:
		sb.WriteString("[")
		for i, item := range x.Items() {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatValue(sb, item)
		}
		sb.WriteString("]")
	case value.Map:
		sb.WriteString("{")
		i := 0
		x.Range(func(k value.Key, item value.Value) bool {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatValue(sb, k.Value())
			sb.WriteString(": ")
			formatValue(sb, item)
			i++
			return true
		})
		sb.WriteString("}")
	default:
		sb.WriteString(value.Format(v))
	}
}
