package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/massctl/internal/auth"
	"github.com/desertthunder/massctl/internal/cache"
	"github.com/desertthunder/massctl/internal/models"
)

const defaultPageSize = 100

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConnectView ViewState = iota
	PlaylistListView
	TrackListView
)

// Session restores a saved sign-in and reports its progress.
type Session interface {
	Restore(ctx context.Context) error
	SetNotifier(ch chan<- auth.StateChange)
}

// Library is the cached library surface the TUI browses.
type Library interface {
	Playlists(ctx context.Context, limit, offset int, force bool) ([]models.Playlist, error)
	PlaylistTracks(ctx context.Context, itemID, provider string, force bool) ([]models.Track, error)
	SubscribeTracks(itemID, provider string) (<-chan cache.Update[[]models.Track], func())
	ToggleFavorite(ctx context.Context, item models.MediaItem) (bool, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	session Session
	library Library
	states  chan auth.StateChange

	state    auth.State
	stateLog []string
	spinner  spinner.Model

	width  int
	height int

	playlistList list.Model
	trackList    list.Model
	selected     *models.Playlist
	tracks       []models.Track
	updates      <-chan cache.Update[[]models.Track]
	unsubscribe  func()

	status string
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model and registers it as the session's state notifier.
func NewModel(ctx context.Context, session Session, library Library) *Model {
	m := &Model{
		ctx:          ctx,
		view:         ConnectView,
		session:      session,
		library:      library,
		states:       make(chan auth.StateChange, 16),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.spinner)),
		playlistList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		trackList:    list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:         help.New(),
		keys:         newKeyMap(),
	}
	m.playlistList.Title = "Playlists"
	session.SetNotifier(m.states)
	return m
}

// Init restores the session and starts listening for state changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connect(), m.waitForState())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-6)
		m.trackList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case spinner.TickMsg:
		if m.view != ConnectView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		switch m.view {
		case ConnectView:
			return m.handleConnectKeys(msg)
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStateChanged:
		change := msg.data.(auth.StateChange)
		m.state = change.To
		line := change.To.String()
		if change.Err != nil {
			line += ": " + auth.UserMessage(change.Err)
		}
		m.stateLog = append(m.stateLog, line)
		return m, m.waitForState()

	case MsgConnected:
		if err, _ := msg.data.(error); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.view = PlaylistListView
		return m, m.fetchPlaylists(false)

	case MsgPlaylistsFetched:
		res := msg.data.(playlistsResult)
		if res.err != nil {
			m.status = styles.err.Render(auth.UserMessage(res.err))
			return m, nil
		}
		m.status = ""
		return m, m.playlistList.SetItems(playlistItems(res.playlists))

	case MsgTracksFetched:
		res := msg.data.(tracksResult)
		if res.err != nil {
			m.status = styles.err.Render(auth.UserMessage(res.err))
			return m, nil
		}
		m.status = ""
		if m.view == TrackListView && m.selected != nil && m.selected.Ref() == res.playlist.Ref() {
			return m, m.setTracks(res.tracks)
		}
		m.open(res.playlist)
		return m, tea.Batch(m.setTracks(res.tracks), m.waitForTracks())

	case MsgTracksUpdated:
		u := msg.data.(trackUpdate)
		if m.selected == nil || u.ref != m.selected.Ref() {
			return m, nil
		}
		if u.update.Err != nil {
			m.status = styles.warn.Render("refresh failed: " + auth.UserMessage(u.update.Err))
			return m, m.waitForTracks()
		}
		return m, tea.Batch(m.setTracks(u.update.Value), m.waitForTracks())

	case MsgFavoriteToggled:
		res := msg.data.(favoriteResult)
		switch {
		case res.err != nil:
			m.status = styles.err.Render(auth.UserMessage(res.err))
		case res.state:
			m.status = styles.ok.Render("♥ " + res.track.Name)
		default:
			m.status = styles.help.Render("removed " + res.track.Name + " from favorites")
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case ConnectView:
		body = m.renderConnect()
	case PlaylistListView:
		body = m.renderPlaylistList()
	case TrackListView:
		body = m.renderTrackList()
	}
	return styles.frame.Render(body)
}

func (m *Model) handleConnectKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.retry) && m.err != nil:
		m.err = nil
		m.stateLog = nil
		return m, tea.Batch(m.spinner.Tick, m.connect())
	}
	return m, nil
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchPlaylists(true)
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.fetchTracks(pl.playlist, false)
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.back):
		m.close()
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		if m.selected != nil {
			return m, m.fetchTracks(*m.selected, true)
		}
		return m, nil
	case key.Matches(msg, m.keys.favorite):
		if tr, ok := m.trackList.SelectedItem().(trackItem); ok {
			return m, m.toggleFavorite(tr.track)
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

// open subscribes to cache updates for playlist and switches to the track view.
func (m *Model) open(playlist models.Playlist) {
	m.close()
	m.selected = &playlist
	m.trackList.Title = fmt.Sprintf("Tracks in '%s'", playlist.Name)
	m.trackList.ResetSelected()
	m.updates, m.unsubscribe = m.library.SubscribeTracks(playlist.ItemID, playlist.Provider)
	m.view = TrackListView
}

func (m *Model) close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.unsubscribe = nil
	m.updates = nil
	m.selected = nil
	m.tracks = nil
}

// setTracks replaces the track list, keeping the cursor where it was.
func (m *Model) setTracks(tracks []models.Track) tea.Cmd {
	m.tracks = tracks
	index := m.trackList.Index()
	cmd := m.trackList.SetItems(trackItems(tracks))
	if index < len(tracks) {
		m.trackList.Select(index)
	}
	return cmd
}

func (m *Model) quit() tea.Cmd {
	m.close()
	return tea.Quit
}

func (m *Model) connect() tea.Cmd {
	return func() tea.Msg {
		return connectedMsg(m.session.Restore(m.ctx))
	}
}

func (m *Model) waitForState() tea.Cmd {
	states := m.states
	return func() tea.Msg {
		select {
		case change := <-states:
			return stateChangedMsg(change)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForTracks() tea.Cmd {
	updates := m.updates
	if updates == nil || m.selected == nil {
		return nil
	}
	ref := m.selected.Ref()
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return nil
		}
		return tracksUpdatedMsg(ref, u)
	}
}

func (m *Model) fetchPlaylists(force bool) tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.library.Playlists(m.ctx, defaultPageSize, 0, force)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(playlist models.Playlist, force bool) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.library.PlaylistTracks(m.ctx, playlist.ItemID, playlist.Provider, force)
		return tracksFetchedMsg(playlist, tracks, err)
	}
}

func (m *Model) toggleFavorite(track models.Track) tea.Cmd {
	return func() tea.Msg {
		state, err := m.library.ToggleFavorite(m.ctx, track.MediaItem)
		return favoriteToggledMsg(track, state, err)
	}
}

func (m *Model) renderConnect() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Connecting to Music Assistant"))
	b.WriteString("\n")
	for _, line := range m.stateLog {
		fmt.Fprintf(&b, "  • %s\n", line)
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(styles.err.Render("✗ " + auth.UserMessage(m.err)))
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.retry, m.keys.quit}))
		return b.String()
	}

	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), m.state)
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderPlaylistList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.refresh, m.keys.quit})
	return m.withStatus(m.playlistList.View(), helpView)
}

func (m *Model) renderTrackList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.favorite, m.keys.refresh, m.keys.back, m.keys.quit})
	return m.withStatus(m.trackList.View(), helpView)
}

func (m *Model) withStatus(body, helpView string) string {
	if m.status == "" {
		return fmt.Sprintf("%s\n\n%s", body, helpView)
	}
	return fmt.Sprintf("%s\n%s\n\n%s", body, m.status, helpView)
}
