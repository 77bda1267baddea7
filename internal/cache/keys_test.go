package cache

import "testing"

func TestKeys(t *testing.T) {
	if got := Key("playlist_tracks", "library", "12"); got != "playlist_tracks:library_12" {
		t.Errorf("Key() = %q", got)
	}
	if got := Scoped("home"); got != "home" {
		t.Errorf("Scoped() without parts = %q", got)
	}
	if got := Scoped("playlists", "50", "0"); got != "playlists:50_0" {
		t.Errorf("Scoped() = %q", got)
	}
}

func TestMatches(t *testing.T) {
	tt := []struct {
		key, pattern string
		want         bool
	}{
		{"home", "home", true},
		{"home:recent", "home", true},
		{"homepage", "home", false},
		{"tracks:lib_1", "tracks:lib_1", true},
		{"tracks:lib_10", "tracks:lib_1", false},
		{"tracks:lib_1", "tracks", true},
		{"albums:lib_1", "tracks", false},
		{"anything", "", true},
	}

	for _, tc := range tt {
		t.Run(tc.key+"~"+tc.pattern, func(t *testing.T) {
			if got := Matches(tc.key, tc.pattern); got != tc.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tc.key, tc.pattern, got, tc.want)
			}
		})
	}
}
