// Package queryir provides a small query intermediate representation for
// reading the chronicle event log.
//
// The IR sits between the store's read API and the SQL backend:
//
//	[store.EventFilter] → [Query IR] → [querysql] → SQLite
//
// Store methods build Select queries from typed filters instead of
// concatenating SQL, so every read shares one set of rules:
//
//   - Explicit columns (no SELECT *)
//   - Literal values are parameterized, never interpolated
//   - Identifiers are plain snake_case names
//   - Results are always ordered, with the insertion sequence as the final
//     tiebreaker so equal timestamps keep their append order
//
// # Sealed Interfaces
//
// Query, Predicate and Literal are sealed with marker methods. Backends can
// switch over them exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case Compare:
//	case And:
//	}
package queryir
