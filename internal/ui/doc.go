// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through three views:
//  1. [ConnectView] : Restore the saved session while showing each auth state change
//  2. [PlaylistListView] : Browse library playlists
//  3. [TrackListView] : Browse a playlist's tracks and toggle favorites
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Auth state changes arrive on the session notifier channel. Track lists come from the response cache: cached
// tracks render immediately and the list re-renders when a background refresh or a favorite toggle publishes
// a new value for the open playlist.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, f, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
