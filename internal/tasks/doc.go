// Package tasks syncs a user's SoundCloud favorites into local MP3 files with real-time progress reporting.
//
// # Core Operations
//
// The [SyncEngine] interface defines two operations:
//
//  1. [SyncEngine.UpdateFavorites] : Full favorites sync
//     - Loads the user's track table from the [TrackStore]
//     - Walks every favorites page with [Enumerator], recording tracks via [Recorder]
//     - Downloads every undownloaded track with [Downloader]
//
//  2. [SyncEngine.Resume] : Download only
//     - Loads the user's track table
//     - Downloads every undownloaded track without contacting the favorites API
//
// Both run strictly sequentially: one page, one track, one file at a time.
//
// # State
//
// The track table returned by the store is mutated in place and checkpointed with Save before each
// favorites page, after the last page and after each completed download. Save failures are logged and
// never stop a run, so an interrupted run loses at most the work since the last checkpoint.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Session History
//
// The optional [SessionRecorder] interface records each run (repositories.SessionRepository).
// Recorder errors are logged and never disrupt a sync.
package tasks
