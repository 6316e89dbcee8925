// Package repositories persists sync state.
//
// Key Implementations:
//   - [TrackStore] : the JSON state document mapping users to their track tables
//   - [SessionRepository] : SQLite history of update and resume runs
//
// The track store is the source of truth for what has been downloaded; session history is
// informational and never consulted by the sync pipeline.
//
// Sequence numbers provide stable, human-readable ordering (e.g., session #42) independent of UUIDs.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
