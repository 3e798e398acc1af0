// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one download at a time:
//  1. [PlaylistListView] : Browse the playlists in the catalog
//  2. [TrackListView] : Preview a playlist's tracks
//  3. [ConfirmView] : Confirm the download
//  4. [DownloadView] : Watch the progress bar and the state of the current track
//  5. [ResultView] : Counts plus the tracks that failed and why
//
// The [Model] implements bubbletea's Init/Update/View pattern, receiving messages via the [Msg] union type.
// Progress comes from the same broadcaster the HTTP stream uses; the model subscribes when a run starts
// and closes the subscription when it ends. Track states arrive through [Model.TransitionHook].
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
