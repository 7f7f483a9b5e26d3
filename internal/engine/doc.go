// Package engine implements the classprep provisioning and cleanup protocol.
//
// One Run retires the previous run's resources and provisions the next
// day's file/assignment pairs:
//
// Phase A (cleanup):
// For every pair in the stored RunRecord, delete the assignment and then the
// file. Failures are reported and the loop continues (best effort). Pairs
// that could not be deleted are carried forward into the record so the next
// run retries them.
//
// Phase B (provision):
// For every template in order, copy the source file and create a scheduled
// draft assignment attached to it. The first failure rolls back every
// resource created in this phase and aborts (all or nothing).
//
// RECORD CONTRACT:
// Every path out of Run leaves the record store either unchanged or naming
// exactly the resources that still exist remotely. A record that cannot be
// parsed stops the run before any remote call.
//
// Execution is strictly sequential. Do not run two engines against the same
// record store and course at the same time; nothing locks the record.
package engine
