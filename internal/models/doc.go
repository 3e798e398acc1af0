// Package models defines domain entities and persistence interfaces for the tapedeck playlist mirror.
//
// The package contains two categories of types:
//
// 1. Catalog and pipeline values: plain structs that flow through a run
//   - [Catalog], [Playlist], [Track] : the persisted playlist→track catalog
//   - [ResolvedSource] : media and art locators attached to a track while it is processed
//   - [ProgressEvent] : percentage-complete notification published once per processed track
//   - [TrackState] : states of the per-track state machine
//
// 2. Persistent Entities: database-backed run journal
//   - [Run] : one pipeline run over a playlist, with counters and status
//   - [TrackOutcome] : terminal state of one track within a run
//
// Persistent entities implement the [Model] interface; [Repository] defines CRUD access for them.
package models
