// Package ir defines the value model shared by concepts and the sync
// engine, plus the canonical serialization used for content-addressed
// identity.
//
// Values are a constrained subset of JSON: string, int64, bool, array,
// object, and None. Floats are rejected everywhere - they break the
// deterministic hashing that firing dedup depends on. None is an explicit
// "not applicable" marker: an adapter reporting mutually exclusive outcome
// branches sets the inapplicable branch to None rather than omitting the
// field, so downstream stages can distinguish "bound to nothing" from
// "never bound".
package ir
