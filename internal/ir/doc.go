// Package ir provides the tagged record model shared by every layer.
//
// A Record is an ordered mapping from column or property name to a
// sealed Value: scalars (Null, String, Int, Float, Bool, Time, Bytes) for
// columns, One and Many for relationship edges. This package imports
// nothing internal so the schema, store and engine packages can all
// depend on it.
//
// Key design constraints:
//   - Cardinality is explicit: a one edge holds One, a many edge holds Many
//   - Diffing compares scalars loosely via ScalarKey (Int(7) matches "7")
//   - Strings are NFC normalized in keys and in canonical JSON
package ir
