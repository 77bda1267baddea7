package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCurl(t *testing.T) {
	tt := []struct {
		name    string
		curlCmd string
		wantURL string
		want    map[string]string
		wantErr bool
	}{
		{
			name:    "single quoted header",
			curlCmd: `curl -H 'Authorization: Basic c2FtOnNlY3JldA==' https://music.example.com/info`,
			wantURL: "https://music.example.com/info",
			want:    map[string]string{"Authorization": "Basic c2FtOnNlY3JldA=="},
		},
		{
			name:    "double quoted header",
			curlCmd: `curl "https://music.example.com/info" -H "Authorization: Bearer token123"`,
			wantURL: "https://music.example.com/info",
			want:    map[string]string{"Authorization": "Bearer token123"},
		},
		{
			name:    "long flags",
			curlCmd: `curl 'https://music.example.com/api' --header 'Accept: application/json' --cookie 'authelia_session=abc'`,
			wantURL: "https://music.example.com/api",
			want:    map[string]string{"Accept": "application/json", "Cookie": "authelia_session=abc"},
		},
		{
			name:    "cookie flag replaces cookie header",
			curlCmd: `curl -H 'Cookie: old=value' -b 'authelia_session=new' https://music.example.com`,
			wantURL: "https://music.example.com",
			want:    map[string]string{"Cookie": "authelia_session=new"},
		},
		{
			name:    "spaces around colon",
			curlCmd: `curl -H 'authorization : Bearer token' https://music.example.com`,
			wantURL: "https://music.example.com",
			want:    map[string]string{"Authorization": "Bearer token"},
		},
		{
			name: "browser export",
			curlCmd: `curl 'https://music.example.com/info' \
  -H 'accept: */*' \
  -H 'accept-encoding: gzip, deflate, br' \
  -H 'cookie: authelia_session=xyz; theme=dark' \
  -H 'host: music.example.com' \
  --compressed`,
			wantURL: "https://music.example.com/info",
			want:    map[string]string{"Accept": "*/*", "Cookie": "authelia_session=xyz; theme=dark"},
		},
		{name: "no headers", curlCmd: `curl https://music.example.com`, wantErr: true},
		{name: "empty", curlCmd: "", wantErr: true},
		{name: "only managed headers", curlCmd: `curl -H 'Host: x' -H 'Content-Length: 3' https://x`, wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCurl([]byte(tc.curlCmd))
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.URL != tc.wantURL {
				t.Errorf("URL = %q, want %q", got.URL, tc.wantURL)
			}
			if len(got.Header) != len(tc.want) {
				t.Errorf("got %d headers, want %d: %v", len(got.Header), len(tc.want), got.Header)
			}
			for key, want := range tc.want {
				if v := got.Header.Get(key); v != want {
					t.Errorf("header %s = %q, want %q", key, v, want)
				}
			}
		})
	}
}

func TestReadCurlFile(t *testing.T) {
	t.Run("reads command from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "curl.sh")
		if err := os.WriteFile(path, []byte(`curl -b 'authelia_session=abc' https://music.example.com`), 0644); err != nil {
			t.Fatalf("failed to write curl file: %v", err)
		}

		got, err := ReadCurlFile(path)
		if err != nil {
			t.Fatalf("ReadCurlFile() error = %v", err)
		}
		if got.Header.Get("Cookie") != "authelia_session=abc" {
			t.Errorf("unexpected headers: %v", got.Header)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ReadCurlFile("/nonexistent/curl.sh"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
