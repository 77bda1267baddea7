package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/massctl/internal/auth"
	"github.com/desertthunder/massctl/internal/cache"
	"github.com/desertthunder/massctl/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStateChanged MsgKind = iota
	MsgConnected
	MsgPlaylistsFetched
	MsgTracksFetched
	MsgTracksUpdated
	MsgFavoriteToggled
)

type playlistsResult struct {
	playlists []models.Playlist
	err       error
}

type tracksResult struct {
	playlist models.Playlist
	tracks   []models.Track
	err      error
}

type trackUpdate struct {
	ref    string
	update cache.Update[[]models.Track]
}

type favoriteResult struct {
	track models.Track
	state bool
	err   error
}

// stateChangedMsg is the constructor for [MsgStateChanged]
func stateChangedMsg(change auth.StateChange) Msg {
	return Msg{kind: MsgStateChanged, data: change}
}

// connectedMsg is the constructor for [MsgConnected]
func connectedMsg(err error) Msg {
	return Msg{kind: MsgConnected, data: err}
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsResult{playlists, err}}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(playlist models.Playlist, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgTracksFetched, data: tracksResult{playlist, tracks, err}}
}

// tracksUpdatedMsg is the constructor for [MsgTracksUpdated]
func tracksUpdatedMsg(ref string, update cache.Update[[]models.Track]) Msg {
	return Msg{kind: MsgTracksUpdated, data: trackUpdate{ref, update}}
}

// favoriteToggledMsg is the constructor for [MsgFavoriteToggled]
func favoriteToggledMsg(track models.Track, state bool, err error) Msg {
	return Msg{kind: MsgFavoriteToggled, data: favoriteResult{track, state, err}}
}
