package cache

import "strings"

// Key builds the key for one provider item inside scope.
func Key(scope, provider, itemID string) string {
	return scope + ":" + provider + "_" + itemID
}

// Scoped builds a key for a scope-level entry, e.g. Scoped("playlists", "50", "0").
func Scoped(scope string, parts ...string) string {
	if len(parts) == 0 {
		return scope
	}
	return scope + ":" + strings.Join(parts, "_")
}

// Matches reports whether key is pattern itself or lives in the scope pattern names.
// The empty pattern matches every key.
func Matches(key, pattern string) bool {
	return pattern == "" || key == pattern || strings.HasPrefix(key, pattern+":")
}
