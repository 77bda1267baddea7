package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/massctl/internal/models"
)

// FakeLibrary serves canned library data and records calls, standing in for the transport client.
type FakeLibrary struct {
	mu    sync.Mutex
	calls map[string]int

	Playlists []models.Playlist
	// Tracks and Albums are keyed by "provider_itemId".
	Tracks map[string][]models.Track
	Albums map[string][]models.Album
	Recent []models.MediaItem

	// Err fails every read.
	Err error
	// FavoriteErr fails favorite updates.
	FavoriteErr error
	// Favorites records the URIs or ids whose flag was set (true) or cleared (false).
	Favorites map[string]bool
}

func NewFakeLibrary() *FakeLibrary {
	return &FakeLibrary{
		calls:     make(map[string]int),
		Tracks:    make(map[string][]models.Track),
		Albums:    make(map[string][]models.Album),
		Favorites: make(map[string]bool),
	}
}

// Calls reports how many times the named method was invoked.
func (f *FakeLibrary) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// SetTracks replaces the tracks served for a playlist.
func (f *FakeLibrary) SetTracks(provider, itemID string, tracks []models.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tracks[provider+"_"+itemID] = tracks
}

func (f *FakeLibrary) LibraryPlaylists(_ context.Context, limit, offset int) ([]models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["LibraryPlaylists"]++
	if f.Err != nil {
		return nil, f.Err
	}
	if offset >= len(f.Playlists) {
		return []models.Playlist{}, nil
	}
	end := len(f.Playlists)
	if limit > 0 {
		end = min(end, offset+limit)
	}
	return append([]models.Playlist(nil), f.Playlists[offset:end]...), nil
}

func (f *FakeLibrary) PlaylistTracks(_ context.Context, itemID, provider string) ([]models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PlaylistTracks"]++
	if f.Err != nil {
		return nil, f.Err
	}
	tracks, ok := f.Tracks[provider+"_"+itemID]
	if !ok {
		return nil, fmt.Errorf("playlist %s_%s not found", provider, itemID)
	}
	return append([]models.Track(nil), tracks...), nil
}

func (f *FakeLibrary) ArtistAlbums(_ context.Context, itemID, provider string) ([]models.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ArtistAlbums"]++
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]models.Album(nil), f.Albums[provider+"_"+itemID]...), nil
}

func (f *FakeLibrary) RecentlyPlayed(_ context.Context, limit int) ([]models.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["RecentlyPlayed"]++
	if f.Err != nil {
		return nil, f.Err
	}
	items := f.Recent
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return append([]models.MediaItem(nil), items...), nil
}

func (f *FakeLibrary) AddFavorite(_ context.Context, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["AddFavorite"]++
	if f.FavoriteErr != nil {
		return f.FavoriteErr
	}
	f.Favorites[uri] = true
	return nil
}

func (f *FakeLibrary) RemoveFavorite(_ context.Context, _ models.MediaType, libraryItemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["RemoveFavorite"]++
	if f.FavoriteErr != nil {
		return f.FavoriteErr
	}
	f.Favorites[libraryItemID] = false
	return nil
}
