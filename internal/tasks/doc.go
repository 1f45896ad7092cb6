// Package tasks moves a music library from one provider to another with real-time progress reporting.
//
// # Migration
//
// [Migrator.Run] executes the selected passes in a fixed order:
//
//  1. Artists: resolve each subscribed artist on the target, then follow it
//  2. Albums: filter by album type, resolve, then save
//  3. Liked tracks: resolve, then like
//  4. Playlists: ensure a playlist with the same name exists on the target,
//     resolve each member track and append the ones not already present
//
// Each run owns a fresh [cache.Store] for target searches and playlist listings.
// Nothing is carried over between runs, so a rerun sees the target as it is now.
//
// Item failures (no match, search or write errors) are recorded as outcomes and never stop
// the pass. A listing failure ends its pass. A capability error on a listing, or a target that
// cannot write what the pass needs, marks the pass skipped.
//
// # Write guard
//
// [WriteGuard] checks membership before every follow, save and like, and memoizes each target
// playlist's membership so a track is never appended twice. In dry-run mode the checks still
// run but no mutation is sent.
//
// # Export
//
// [Exporter.Export] writes a snapshot of one provider's library: a library file, one file per
// playlist and a JSON manifest. Playlist memberships are fetched by a rate-limited worker pool.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, pass, step counters, a message and optional data.
// Updates use select with default so a slow consumer never stalls a run.
//
// # Recording
//
// The optional [Recorder] persists a run and each item outcome (repositories.RunRecorder).
// Recording errors are logged and ignored.
package tasks
