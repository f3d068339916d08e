// Package timeline reconstructs point-in-time entity state from an
// append-only log of attribute mutations.
//
// A Reconstructor folds every event with timestamp <= T, in ascending
// timestamp order, over the entity's initial attribute values. Events with
// equal timestamps apply in the order they appear in the supplied slice, so
// the later insertion wins.
//
// Two caches sit in front of the fold:
//   - a per-entity sorted event index, searched with a binary search
//   - a bounded snapshot memo keyed by exact (entity, timestamp) pairs
//
// The snapshot memo evicts the earliest-inserted entry when full. It does
// not track access recency.
//
// All methods are safe for concurrent use. The core performs no I/O.
package timeline
