package transport

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/massctl/internal/models"
	"github.com/desertthunder/massctl/internal/shared"
)

// PlayerCommands lists the transport commands accepted by [Client.PlayerCommand].
var PlayerCommands = []string{"play", "pause", "play_pause", "stop", "next", "previous"}

// Queue options for [Client.PlayMedia].
const (
	QueuePlay    = "play"
	QueueReplace = "replace"
	QueueNext    = "next"
	QueueAdd     = "add"
)

func itemArgs(itemID, provider string) map[string]any {
	return map[string]any{"item_id": itemID, "provider_instance_id_or_domain": provider}
}

// PlaylistTracks returns the tracks of a playlist in playlist order.
func (c *Client) PlaylistTracks(ctx context.Context, itemID, provider string) ([]models.Track, error) {
	var tracks []models.Track
	if err := c.Call(ctx, "music/playlists/playlist_tracks", itemArgs(itemID, provider), &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// ArtistAlbums returns the albums of an artist.
func (c *Client) ArtistAlbums(ctx context.Context, itemID, provider string) ([]models.Album, error) {
	var albums []models.Album
	if err := c.Call(ctx, "music/artists/artist_albums", itemArgs(itemID, provider), &albums); err != nil {
		return nil, err
	}
	return albums, nil
}

// LibraryPlaylists pages through the library's playlists.
func (c *Client) LibraryPlaylists(ctx context.Context, limit, offset int) ([]models.Playlist, error) {
	var playlists []models.Playlist
	args := map[string]any{"limit": limit, "offset": offset}
	if err := c.Call(ctx, "music/playlists/library_items", args, &playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// RecentlyPlayed returns recently played items for the home view.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]models.MediaItem, error) {
	var items []models.MediaItem
	if err := c.Call(ctx, "music/recently_played_items", map[string]any{"limit": limit}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddFavorite marks the item at uri as a favorite.
func (c *Client) AddFavorite(ctx context.Context, uri string) error {
	return c.Call(ctx, "music/favorites/add_item", map[string]any{"item": uri}, nil)
}

// RemoveFavorite clears the favorite flag of a library item.
func (c *Client) RemoveFavorite(ctx context.Context, mediaType models.MediaType, libraryItemID string) error {
	args := map[string]any{"media_type": mediaType, "library_item_id": libraryItemID}
	return c.Call(ctx, "music/favorites/remove_item", args, nil)
}

// Players lists the players known to the server.
func (c *Client) Players(ctx context.Context) ([]models.Player, error) {
	var players []models.Player
	if err := c.Call(ctx, "players/all", nil, &players); err != nil {
		return nil, err
	}
	return players, nil
}

// PlayMedia enqueues uris on a player queue using option (play, replace, next, add).
func (c *Client) PlayMedia(ctx context.Context, queueID string, uris []string, option string) error {
	if queueID == "" || len(uris) == 0 {
		return fmt.Errorf("%w: queue id and at least one uri are required", shared.ErrMissingArgument)
	}
	if option == "" {
		option = QueuePlay
	}
	args := map[string]any{"queue_id": queueID, "media": uris, "option": option}
	return c.Call(ctx, "player_queues/play_media", args, nil)
}

// PlayerCommand sends a transport command such as "next" to a player.
func (c *Client) PlayerCommand(ctx context.Context, playerID, command string) error {
	if !slices.Contains(PlayerCommands, command) {
		return fmt.Errorf("%w: unknown player command %q", shared.ErrInvalidArgument, command)
	}
	return c.Call(ctx, "players/cmd/"+command, map[string]any{"player_id": playerID}, nil)
}
