// Package models defines the Music Assistant entities exchanged with the server.
//
// The types mirror the JSON returned by the server's command API:
//   - [ServerInfo] : the first frame sent on every socket connection, also served at /info
//   - [MediaItem] : fields shared by every library item (id, provider, uri, favorite flag)
//   - [Track], [Album], [Artist], [Playlist] : library items embedding [MediaItem]
//   - [Player] : a playback target that accepts queue and transport commands
//
// Items are addressed by provider and item id; [MediaItem.Ref] yields the "provider_itemId"
// form used as the cache key suffix throughout the client.
package models
