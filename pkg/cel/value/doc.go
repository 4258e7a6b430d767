// Package value implements the runtime value model of the expression engine.
//
// # Variants
//
// Value is a closed tagged union: Int, UInt, Float, String, Bytes, Bool, Null,
// List, Map, Timestamp, Duration, Object (an opaque foreign value) and Dynamic
// (a lazily materialized host structure). Type switches over these types are
// exhaustive.
//
// # Ownership
//
// Values built with BorrowBytes, BorrowList, BorrowMap and FromGo alias the
// caller's memory. They are valid only while that memory is unchanged, which
// in the gateway means for the lifetime of one request or response. Owned
// returns an independent deep copy:
//
//	v := value.FromGo(req)   // borrows req
//	keep := value.Owned(v)   // safe to cache
//
// # Maps and keys
//
// Map keys are restricted to int, uint, bool and string. Lookups treat int and
// uint keys holding the same number as the same key, so m[5] finds an entry
// stored under 5u; a string key "5" is never found by a numeric lookup.
//
// # Host structures
//
// Go structs are exposed as Dynamic values through a FieldTable built once per
// type from `cel` (or `json`) struct tags. Field projects one field without
// materializing the structure; Materialize converts the whole structure.
//
// # Opaque values
//
// Opaque values carry a stable TypeName. Two opaque values are equal only if
// their type names match and their own equality says so.
package value
