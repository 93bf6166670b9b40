// Package queryir is the statement representation between the table
// builder in package store and the SQL compiler in package querysql.
//
// Statement and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch exhaustively:
//
//	switch s := stmt.(type) {
//	case *Select:
//	case *Insert:
//	case *Update:
//	case *Delete:
//	}
//
// Values are ir.Value scalars and are always parameterized by the
// compiler. MapColumns rewrites column references without touching
// values, which is how the engine qualifies columns once a query joins
// other tables.
package queryir
