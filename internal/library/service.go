package library

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/massctl/internal/cache"
	"github.com/desertthunder/massctl/internal/models"
	"github.com/desertthunder/massctl/internal/shared"
)

// Cache scopes.
const (
	ScopePlaylists      = "playlists"
	ScopePlaylistTracks = "playlist_tracks"
	ScopeArtistAlbums   = "artist_albums"
	ScopeHome           = "home"
)

const defaultHomeLimit = 20

// API is the part of the transport client the library reads and writes through.
type API interface {
	LibraryPlaylists(ctx context.Context, limit, offset int) ([]models.Playlist, error)
	PlaylistTracks(ctx context.Context, itemID, provider string) ([]models.Track, error)
	ArtistAlbums(ctx context.Context, itemID, provider string) ([]models.Album, error)
	RecentlyPlayed(ctx context.Context, limit int) ([]models.MediaItem, error)
	AddFavorite(ctx context.Context, uri string) error
	RemoveFavorite(ctx context.Context, mediaType models.MediaType, libraryItemID string) error
}

// Options configures a [Service].
type Options struct {
	API API
	// Authorized gates every call; nil allows all calls.
	Authorized func() bool
	// Cache is applied to each of the service's caches.
	Cache     cache.Options
	HomeLimit int
	Logger    *log.Logger
}

// Service is the cached library facade.
type Service struct {
	api        API
	authorized func() bool
	homeLimit  int
	logger     *log.Logger

	playlists *cache.Cache[[]models.Playlist]
	tracks    *cache.Cache[[]models.Track]
	albums    *cache.Cache[[]models.Album]
	home      *cache.Cache[[]models.MediaItem]
}

// NewService creates a [Service].
func NewService(opts Options) *Service {
	s := &Service{
		api:        opts.API,
		authorized: opts.Authorized,
		homeLimit:  opts.HomeLimit,
		logger:     opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.homeLimit <= 0 {
		s.homeLimit = defaultHomeLimit
	}

	co := opts.Cache
	if co.Logger == nil {
		co.Logger = s.logger
	}
	s.playlists = cache.New[[]models.Playlist](co)
	s.tracks = cache.New[[]models.Track](co)
	s.albums = cache.New[[]models.Album](co)
	s.home = cache.New[[]models.MediaItem](co)
	return s
}

func (s *Service) check() error {
	if s.authorized != nil && !s.authorized() {
		return shared.ErrNotAuthenticated
	}
	return nil
}

// Playlists returns one page of library playlists.
func (s *Service) Playlists(ctx context.Context, limit, offset int, force bool) ([]models.Playlist, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	key := cache.Scoped(ScopePlaylists, strconv.Itoa(limit), strconv.Itoa(offset))
	return s.playlists.FetchWithCache(ctx, key, force, func(ctx context.Context) ([]models.Playlist, error) {
		return s.api.LibraryPlaylists(ctx, limit, offset)
	})
}

// PlaylistTracks returns the tracks of a playlist.
func (s *Service) PlaylistTracks(ctx context.Context, itemID, provider string, force bool) ([]models.Track, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if itemID == "" || provider == "" {
		return nil, fmt.Errorf("%w: playlist id and provider are required", shared.ErrMissingArgument)
	}
	key := cache.Key(ScopePlaylistTracks, provider, itemID)
	return s.tracks.FetchWithCache(ctx, key, force, func(ctx context.Context) ([]models.Track, error) {
		return s.api.PlaylistTracks(ctx, itemID, provider)
	})
}

// ArtistAlbums returns the albums of an artist.
func (s *Service) ArtistAlbums(ctx context.Context, itemID, provider string, force bool) ([]models.Album, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if itemID == "" || provider == "" {
		return nil, fmt.Errorf("%w: artist id and provider are required", shared.ErrMissingArgument)
	}
	key := cache.Key(ScopeArtistAlbums, provider, itemID)
	return s.albums.FetchWithCache(ctx, key, force, func(ctx context.Context) ([]models.Album, error) {
		return s.api.ArtistAlbums(ctx, itemID, provider)
	})
}

// Home returns the recently played items shown on the home view.
func (s *Service) Home(ctx context.Context, force bool) ([]models.MediaItem, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.home.FetchWithCache(ctx, ScopeHome, force, func(ctx context.Context) ([]models.MediaItem, error) {
		return s.api.RecentlyPlayed(ctx, s.homeLimit)
	})
}

// ToggleFavorite flips the favorite flag of item and returns the new state.
//
// The flip is applied to every cached list holding the item before the request is sent.
// If the request fails the flip is reverted and the error returned; on success the home
// scope is invalidated since server-side aggregates may have changed.
func (s *Service) ToggleFavorite(ctx context.Context, item models.MediaItem) (bool, error) {
	if err := s.check(); err != nil {
		return item.Favorite, err
	}
	if item.URI == "" && item.ItemID == "" {
		return item.Favorite, fmt.Errorf("%w: item uri or id is required", shared.ErrMissingArgument)
	}

	want := !item.Favorite
	changed := s.applyFavorite(item, want)
	s.logger.Debug("favorite applied locally", "item", item.URI, "favorite", want, "entries", changed)

	var err error
	if want {
		err = s.api.AddFavorite(ctx, item.URI)
	} else {
		err = s.api.RemoveFavorite(ctx, item.MediaType, item.ItemID)
	}

	if err != nil {
		s.applyFavorite(item, item.Favorite)
		s.logger.Warn("favorite toggle reverted", "item", item.URI, "error", err)
		return item.Favorite, fmt.Errorf("failed to update favorite for %s: %w", item.Name, err)
	}

	s.home.Invalidate(ctx, ScopeHome)
	s.logger.Info("favorite updated", "item", item.URI, "favorite", want)
	return want, nil
}

// applyFavorite sets the favorite flag on every cached copy of item.
func (s *Service) applyFavorite(item models.MediaItem, state bool) int {
	return setFavorite(s.tracks, item, state, func(t *models.Track) *models.MediaItem { return &t.MediaItem }) +
		setFavorite(s.albums, item, state, func(a *models.Album) *models.MediaItem { return &a.MediaItem }) +
		setFavorite(s.playlists, item, state, func(p *models.Playlist) *models.MediaItem { return &p.MediaItem }) +
		setFavorite(s.home, item, state, func(m *models.MediaItem) *models.MediaItem { return m })
}

func setFavorite[T any](c *cache.Cache[[]T], target models.MediaItem, state bool, media func(*T) *models.MediaItem) int {
	return c.Mutate("", func(_ string, list []T) ([]T, bool) {
		var out []T
		for i := range list {
			m := media(&list[i])
			if !sameItem(*m, target) || m.Favorite == state {
				continue
			}
			if out == nil {
				out = slices.Clone(list)
			}
			media(&out[i]).Favorite = state
		}
		return out, out != nil
	})
}

func sameItem(a, b models.MediaItem) bool {
	if a.URI != "" && b.URI != "" {
		return a.URI == b.URI
	}
	return a.ItemID == b.ItemID && a.Provider == b.Provider
}

// CachedTracks returns the cached tracks of a playlist without any I/O.
func (s *Service) CachedTracks(itemID, provider string) ([]models.Track, bool) {
	return s.tracks.Get(cache.Key(ScopePlaylistTracks, provider, itemID))
}

// SubscribeTracks delivers refreshed track lists for one playlist, or all playlists when itemID is empty.
func (s *Service) SubscribeTracks(itemID, provider string) (<-chan cache.Update[[]models.Track], func()) {
	pattern := ScopePlaylistTracks
	if itemID != "" {
		pattern = cache.Key(ScopePlaylistTracks, provider, itemID)
	}
	return s.tracks.Subscribe(pattern)
}

// Invalidate drops scope from every cache and returns the number of in-memory entries removed.
func (s *Service) Invalidate(ctx context.Context, scope string) int {
	return s.playlists.Invalidate(ctx, scope) +
		s.tracks.Invalidate(ctx, scope) +
		s.albums.Invalidate(ctx, scope) +
		s.home.Invalidate(ctx, scope)
}

// Wait blocks until all background refreshes have finished.
func (s *Service) Wait() {
	s.playlists.Wait()
	s.tracks.Wait()
	s.albums.Wait()
	s.home.Wait()
}

// Close stops background refreshes and closes subscriptions.
func (s *Service) Close() {
	s.playlists.Close()
	s.tracks.Close()
	s.albums.Close()
	s.home.Close()
}

