// Package store provides the SQLite-backed run history ledger.
//
// The ledger is append-only:
//   - Runs: one row per invocation (provisioning or course listing)
//   - Actions: one row per remote call, ordered by the run's logical clock
//
// The ledger is diagnostic. The RunRecord file, not the ledger, decides what
// the next run cleans up, and ledger write failures never fail a run.
//
// # Deterministic Query Results
//
//   - Actions are read with ORDER BY seq ASC
//   - Runs are read with ORDER BY started_at DESC, id DESC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
