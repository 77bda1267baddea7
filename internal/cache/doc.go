// Package cache implements the response cache used by list-heavy views.
//
// A [Cache] answers reads from memory immediately and refreshes entries in the background:
//
//   - [Cache.Get] is a pure in-memory lookup
//   - [Cache.FetchWithCache] returns a cached value at once and schedules a refresh, or fetches
//     synchronously on a miss or when forced
//   - [Cache.Invalidate] drops a key or a whole scope after a mutation
//   - [Cache.Subscribe] delivers refreshed values so an already rendered view can redraw
//
// Keys have the form "scope:provider_itemId" (see [Key]). Concurrent fetches of the same key are
// collapsed with singleflight. Entries expire after a TTL and the oldest are evicted past a cap.
// An optional [Store] keeps encoded entries between processes.
package cache
