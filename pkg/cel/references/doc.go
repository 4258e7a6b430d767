// Package references reports what an expression reads without evaluating it.
//
// Policy callers use the result to decide which parts of a request to
// prepare before evaluation, for example whether the body has to be
// buffered:
//
//	refs := references.References(expr)
//	if refs.HasPath("request.body") {
//		// buffer the body
//	}
//
// The analysis is syntactic. Namespaces of qualified calls such as math.abs
// appear as variables because the analyzer does not consult a Context.
package references
