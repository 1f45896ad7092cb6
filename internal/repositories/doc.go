// Package repositories implements SQLite persistence for migration history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Runs support soft deletes via deleted_at timestamps and deleted runs are excluded from queries.
//
// Key Implementations:
//   - [RunRepository] : Runs with status, dry-run flag and outcome counters
//   - [RunItemRepository] : Per-entity outcomes of a run, in insertion order
//   - [RunRecorder] : Records runs and items as a migration executes
//
// History is an audit log only. Nothing here is read back when resolving or writing entities.
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
