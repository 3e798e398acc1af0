// Package tasks mirrors catalog playlists to local media files with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines three operations:
//
//  1. [Engine.Run] : Mirror one playlist
//     - Loads the catalog and looks the playlist up by exact name
//     - Processes every track in catalog order through a [TrackProcessor]
//     - Publishes one [models.ProgressEvent] per processed track
//
//  2. [Engine.Start] : Asynchronous Run used by the HTTP server and TUI
//     - Claims the playlist synchronously so a second trigger fails with [shared.ErrRunInProgress]
//     - Runs on a background context
//
//  3. [Engine.MirrorAll] : Mirror several playlists
//     - Worker pool with rate-limited launches
//     - Optional JSON manifest
//
// # Track Processing
//
// [TrackProcessor] walks a track through
//
//	pending → resolving → resolved → downloading → downloaded → [converting →] complete
//
// with resolution_failed, download_failed and conversion_failed as terminal failures.
// Every transition is checked against the transition table. Failures are returned in a
// [TrackResult] and never abort the run.
//
// # Progress Reporting
//
// Per-track progress goes to a [Publisher] (normally the broadcast package).
// MirrorAll additionally reports [ProgressUpdate] values on a non-blocking channel; updates use select with default to prevent blocking.
//
// # Run Journal
//
// The optional [RunRecorder] receives each run and track outcome.
// Recorder errors are logged and ignored so a broken database never stops a download.
package tasks
