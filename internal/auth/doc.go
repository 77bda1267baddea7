// Package auth negotiates and maintains the authenticated session with a Music Assistant server.
//
// # Strategies
//
// A [Detector] probes the server's /info endpoint and classifies how it expects clients to
// authenticate (see [Kind]). Reverse proxies in front of the server ([KindBasic], [KindAuthelia])
// gate the socket itself, so credentials are validated over HTTP before [Manager.Connect]
// opens it. The server's own login ([KindNative]) happens in-band over the open socket.
//
// # Session Lifecycle
//
// [Manager] owns the single live [Session] and moves it through
//
//	Idle -> Detecting -> Undetected | Detected -> Authenticating -> Failed | Authenticated -> Connected
//
// A failed login or connect rolls the session back to Detected and persists nothing. Every
// detection, login and connect is tagged with the generation and server address current when
// it started; a result that no longer matches is discarded with [shared.ErrSuperseded].
//
// # Persistence
//
// Successful logins write the server address, port, owner and username to the settings
// store, and the password, token and [CredentialDescriptor] to the secret store.
package auth
