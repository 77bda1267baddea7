// package models defines the data model for the Music Assistant client
package models

import (
	"fmt"
	"strings"
)

// MediaType is the server's media type discriminator.
type MediaType string

const (
	MediaTypeTrack     MediaType = "track"
	MediaTypeAlbum     MediaType = "album"
	MediaTypeArtist    MediaType = "artist"
	MediaTypePlaylist  MediaType = "playlist"
	MediaTypeAudiobook MediaType = "audiobook"
	MediaTypePodcast   MediaType = "podcast"
	MediaTypeRadio     MediaType = "radio"
)

// ServerInfo is the handshake payload describing a server instance.
type ServerInfo struct {
	ServerID                  string `json:"server_id"`
	ServerVersion             string `json:"server_version"`
	SchemaVersion             int    `json:"schema_version"`
	MinSupportedSchemaVersion int    `json:"min_supported_schema_version"`
	BaseURL                   string `json:"base_url"`
	HomeAssistantAddon        bool   `json:"homeassistant_addon"`
	OnboardDone               bool   `json:"onboard_done"`
	AuthRequired              *bool  `json:"auth_required,omitempty"`
}

// Valid reports whether the payload looks like a real handshake.
func (s ServerInfo) Valid() bool {
	return s.ServerID != "" && s.SchemaVersion > 0
}

// ProviderMapping links a library item to an item on a music provider.
type ProviderMapping struct {
	ItemID           string `json:"item_id"`
	ProviderDomain   string `json:"provider_domain"`
	ProviderInstance string `json:"provider_instance"`
	Available        bool   `json:"available"`
}

// MediaItem holds the fields every library item carries.
type MediaItem struct {
	ItemID           string            `json:"item_id"`
	Provider         string            `json:"provider"`
	Name             string            `json:"name"`
	URI              string            `json:"uri"`
	MediaType        MediaType         `json:"media_type"`
	Favorite         bool              `json:"favorite"`
	ProviderMappings []ProviderMapping `json:"provider_mappings,omitempty"`
}

// Ref returns "provider_itemId".
func (m MediaItem) Ref() string {
	return m.Provider + "_" + m.ItemID
}

// ItemRef is the abbreviated form used for artists and albums nested in other items.
type ItemRef struct {
	ItemID   string `json:"item_id"`
	Provider string `json:"provider"`
	Name     string `json:"name"`
	URI      string `json:"uri,omitempty"`
}

// Track represents a track, optionally positioned within a playlist.
type Track struct {
	MediaItem
	Duration    int       `json:"duration"` // seconds
	Artists     []ItemRef `json:"artists"`
	Album       *ItemRef  `json:"album,omitempty"`
	TrackNumber int       `json:"track_number,omitempty"`
	Position    int       `json:"position,omitempty"`
}

// ArtistNames joins the names of the track's artists.
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// AlbumName returns the album name or an empty string.
func (t Track) AlbumName() string {
	if t.Album == nil {
		return ""
	}
	return t.Album.Name
}

// Album represents an album.
type Album struct {
	MediaItem
	Year      int       `json:"year,omitempty"`
	AlbumType string    `json:"album_type,omitempty"`
	Artists   []ItemRef `json:"artists"`
}

// Artist represents an artist.
type Artist struct {
	MediaItem
}

// Playlist represents a playlist.
type Playlist struct {
	MediaItem
	Owner      string `json:"owner"`
	IsEditable bool   `json:"is_editable"`
}

// Player is a playback target known to the server.
type Player struct {
	PlayerID    string `json:"player_id"`
	Name        string `json:"display_name"`
	State       string `json:"state"`
	Available   bool   `json:"available"`
	Powered     bool   `json:"powered"`
	VolumeLevel int    `json:"volume_level"`
}

// FormatDuration renders seconds as m:ss or h:mm:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
