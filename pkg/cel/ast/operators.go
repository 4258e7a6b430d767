package ast

// Function names used for operators in ExprCall nodes.
const (
	OpConditional   = "_?_:_"
	OpLogicalAnd    = "_&&_"
	OpLogicalOr     = "_||_"
	OpLogicalNot    = "!_"
	OpNegate        = "-_"
	OpEquals        = "_==_"
	OpNotEquals     = "_!=_"
	OpLess          = "_<_"
	OpLessEquals    = "_<=_"
	OpGreater       = "_>_"
	OpGreaterEquals = "_>=_"
	OpAdd           = "_+_"
	OpSubtract      = "_-_"
	OpMultiply      = "_*_"
	OpDivide        = "_/_"
	OpModulo        = "_%_"
	OpIn            = "@in"
	OpIndex         = "_[_]"
)

var operatorSymbols = map[string]string{
	OpLogicalAnd:    "&&",
	OpLogicalOr:     "||",
	OpLogicalNot:    "!",
	OpNegate:        "-",
	OpEquals:        "==",
	OpNotEquals:     "!=",
	OpLess:          "<",
	OpLessEquals:    "<=",
	OpGreater:       ">",
	OpGreaterEquals: ">=",
	OpAdd:           "+",
	OpSubtract:      "-",
	OpMultiply:      "*",
	OpDivide:        "/",
	OpModulo:        "%",
	OpIn:            "in",
}

// OperatorSymbol returns the source symbol of an operator function name.
func OperatorSymbol(function string) (string, bool) {
	s, ok := operatorSymbols[function]
	return s, ok
}

// IsOperator reports whether function is an operator rather than a named function.
func IsOperator(function string) bool {
	if _, ok := operatorSymbols[function]; ok {
		return true
	}
	return function == OpConditional || function == OpIndex
}
