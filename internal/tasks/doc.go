// Package tasks runs long library operations with real-time progress reporting.
//
// [Prefetcher] warms the playlist-tracks cache ahead of navigation:
//
//  1. [Prefetcher.CollectPlaylists] pages through the library's playlists
//  2. [Prefetcher.Run] fetches the tracks of each playlist with a bounded worker pool,
//     throttled by a shared rate limiter so the server is not flooded
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on a caller-supplied channel. Sends never block:
// when the channel is full the update is dropped. A nil channel disables reporting.
//
// Failures are reported per playlist in [PrefetchResult]; one failing playlist does not stop the run.
package tasks
