// Package services provides [APIService], a raw HTTP client for a Music Assistant server.
//
// The auth package uses it to probe /info during strategy detection and to validate
// credentials against reverse proxies before the socket opens. The CLI uses it for
// one-off requests ("massctl api get", "massctl api command").
//
// # Authentication
//
// Requests may carry two kinds of credentials, each set on a derived copy of the service:
//   - [APIService.WithHeader] : static headers such as "Authorization: Basic" or an Authelia session cookie
//   - [APIService.WithToken] : a native bearer token, attached through an [oauth2.StaticTokenSource]
//
// # Redirects
//
// [NoRedirectClient] returns a client that stops at the first response so callers can
// inspect reverse-proxy redirects instead of following them to a login portal.
//
// # Error Handling
//
// Transport failures are returned as wrapped errors. Status codes are not errors at this
// layer; [APIResponse.Decode] maps non-2xx responses to [shared.ErrAPIRequest].
package services
