// Package store provides SQLite-backed durable storage for the chronicle
// event log.
//
// The store holds:
//   - Entities and their typed attributes (initial values)
//   - Events: the append-only attribute mutation log
//   - Conflicts: detection results a caller chose to record
//
// # Ordering
//
// Every table carries an autoincrement seq and every read orders by it
// last. Events with equal timestamps therefore come back in append order,
// which is the tie-break the reconstructor and the rule engine rely on.
//
// # Values
//
// Attribute and event values are stored as tagged JSON (ir.MarshalTagged)
// so Text and Choice survive the round trip.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Attributes are removed with their entity
package store
