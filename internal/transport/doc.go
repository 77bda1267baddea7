// Package transport implements the persistent WebSocket connection to a Music Assistant server.
//
// # Wire Format
//
// Frames are JSON text messages. The client sends
//
//	{"message_id": "<uuid>", "command": "music/playlists/library_items", "args": {...}}
//
// and the server answers with the same message_id and either a "result" or an
// "error_code"/"details" pair. Large list results may arrive in several frames marked
// "partial": true; [Client] concatenates them before returning.
//
// The first frame sent by the server is its [models.ServerInfo]. [Client.IsConnected]
// reports true only after that frame has been received, so callers that need an
// in-band handshake should poll it with a bounded retry policy after [Client.Connect].
// Frames carrying an "event" field are server push events and are handed to
// [Options.OnEvent].
//
// # Failure Handling
//
// Commands run through a [gobreaker.CircuitBreaker]. Transport failures and timeouts count
// against the breaker; server-side command errors ([shared.ErrRPC]) do not, since the
// server answered. While the breaker is open, calls fail fast with [shared.ErrServiceUnavailable].
package transport
