// Package engine implements the loom synchronization engine.
//
// The engine holds the registered sync rules and, for each inbound
// request, runs one causal round: the request is turned into the first
// action event, every rule's when-list is matched against the events
// accumulated so far, surviving frames flow through the rule's where
// pipeline, and the dispatcher fires the rule's then-clauses. Dispatched
// actions complete into new events that feed back into matching within
// the same round, until the round quiesces.
//
// Orchestration is cooperative and single-threaded: events are processed
// in FIFO order from a per-round queue, rules are evaluated in
// declaration order, and all sequencing comes from a logical clock.
// True suspension happens only inside query adapters, which may perform
// I/O against other concepts.
//
// Termination is defensive. A firing ledger keyed by (rule, binding
// hash) stops causal cycles - the same rule cannot fire twice on the
// same when-bindings within a round - and a step quota stops linear
// blowups. Both produce attributable runtime errors instead of hangs.
//
// Failure taxonomy:
//   - pattern mismatch: zero frames, expected, not an error
//   - {error} output from a concept: ordinary data, routed by rules
//   - unbound symbol read or adapter fault: aborts that rule's
//     evaluation for the round, other rules unaffected
//   - quota exceeded: aborts the round
package engine
