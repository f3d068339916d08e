// Package ir provides the canonical data model for chronicle.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Attribute values are a sealed union (Value). Every site that interprets
//     a value switches over the closed set of variants.
//   - Numbers are float64 but must be finite; NaN and Inf are rejected at
//     validation and canonical-encoding boundaries.
//   - Timestamps are int64 epoch milliseconds. Ordering ties are broken by
//     position in the caller-supplied collection (stable sort).
//   - All JSON tags use snake_case.
package ir
