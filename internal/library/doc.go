// Package library serves cached library reads and favorite toggles on top of the transport.
//
// Every read goes through a [cache.Cache] so views render the last known data immediately
// and redraw when the background refresh lands. [Service.ToggleFavorite] flips the flag in
// every cached list first, sends the request, and flips it back if the server refuses.
package library
