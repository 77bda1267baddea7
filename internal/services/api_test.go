package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/massctl/internal/shared"
	tu "github.com/desertthunder/massctl/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://music.local:8095", customClient)

			if srv.baseURL != "http://music.local:8095" {
				t.Errorf("expected baseURL 'http://music.local:8095', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.baseURL != "http://localhost:8095" {
				t.Errorf("expected default baseURL 'http://localhost:8095', got %s", srv.baseURL)
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://music.local:8095", nil)

			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("decodes server info", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/info" {
					t.Errorf("expected GET /info, got %s %s", r.Method, r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Server", "music-assistant")
				w.Write([]byte(`{"server_id": "abc", "server_version": "2.5.0", "schema_version": 28}`))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/info")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK || !resp.IsJSON {
				t.Fatalf("expected JSON 200, got %d (json=%v)", resp.StatusCode, resp.IsJSON)
			}
			if resp.Headers.Get("X-Server") != "music-assistant" {
				t.Errorf("response headers should be preserved, got %v", resp.Headers)
			}

			var info struct {
				ServerID      string `json:"server_id"`
				SchemaVersion int    `json:"schema_version"`
			}
			if err := resp.Decode(&info); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if info.ServerID != "abc" || info.SchemaVersion != 28 {
				t.Errorf("unexpected info %+v", info)
			}
		})

		t.Run("portal page is not JSON", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<title>Login - Authelia</title>"))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/info")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON || resp.JSONData != nil {
				t.Error("expected response to not be JSON")
			}
			if !strings.Contains(string(resp.Body), "Authelia") {
				t.Errorf("unexpected body %q", resp.Body)
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected JSON POST, got %s %q", r.Method, r.Header.Get("Content-Type"))
			}
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write(body)
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, nil)

		resp, err := srv.PostJSON(context.Background(), "/api/firstfactor", map[string]string{"username": "sam"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusCreated || !strings.Contains(string(resp.Body), `"username":"sam"`) {
			t.Errorf("unexpected echo %d %s", resp.StatusCode, resp.Body)
		}

		resp, err = srv.Post(context.Background(), "/api", []byte{})
		if err != nil {
			t.Fatalf("expected no error for empty body, got %v", err)
		}
		if len(resp.Body) != 0 {
			t.Errorf("expected empty echo, got %q", resp.Body)
		}
	})

	t.Run("Failures", func(t *testing.T) {
		canceled, cancel := context.WithCancel(context.Background())
		cancel()

		failing := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
		unreadable := &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
			StatusCode: http.StatusOK,
			Body:       &tu.FCloser{},
			Header:     http.Header{},
		}, nil)}

		tt := []struct {
			name   string
			client *http.Client
			ctx    context.Context
			path   string
			want   string
		}{
			{name: "invalid path", path: "/info\x00", want: "failed to create request"},
			{name: "transport error", client: failing, path: "/info", want: "request failed"},
			{name: "body read error", client: unreadable, path: "/info", want: "failed to read response"},
			{name: "canceled context", client: failing, ctx: canceled, path: "/info", want: "request failed"},
		}

		for _, tc := range tt {
			for _, method := range []string{http.MethodGet, http.MethodPost} {
				t.Run(tc.name+" "+method, func(t *testing.T) {
					ctx := tc.ctx
					if ctx == nil {
						ctx = context.Background()
					}
					srv := NewAPIService("http://music.local:8095", tc.client)

					var err error
					if method == http.MethodGet {
						_, err = srv.Get(ctx, tc.path)
					} else {
						_, err = srv.Post(ctx, tc.path, []byte("{}"))
					}
					if err == nil || !strings.Contains(err.Error(), tc.want) {
						t.Errorf("expected %q error, got %v", tc.want, err)
					}
				})
			}
		}
	})

	t.Run("Command", func(t *testing.T) {
		t.Run("posts command envelope to API endpoint", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api" {
					t.Errorf("expected POST /api, got %s %s", r.Method, r.URL.Path)
				}

				var req CommandRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("failed to decode command: %v", err)
				}
				if req.Command != "players/all" {
					t.Errorf("expected command players/all, got %s", req.Command)
				}
				if req.MessageID == "" {
					t.Error("expected a message id")
				}

				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`[{"player_id": "kitchen"}]`))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Command(context.Background(), "players/all", nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			var players []map[string]string
			if err := resp.Decode(&players); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if len(players) != 1 || players[0]["player_id"] != "kitchen" {
				t.Errorf("unexpected players %v", players)
			}
		})

		t.Run("error payload maps to ErrAPIRequest", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error_code": 3, "details": "invalid command"}`))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Command(context.Background(), "nope", nil)
			if err != nil {
				t.Fatalf("expected no transport error, got %v", err)
			}

			err = resp.Decode(nil)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}

			var cmdErr *CommandError
			if !errors.As(err, &cmdErr) || cmdErr.Details != "invalid command" {
				t.Errorf("expected wrapped CommandError, got %v", err)
			}
		})
	})

	t.Run("Credentials", func(t *testing.T) {
		t.Run("WithHeader adds headers without mutating parent", func(t *testing.T) {
			var got []string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = append(got, r.Header.Get("Authorization"))
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			parent := NewAPIService(server.URL, nil)
			child := parent.WithHeader(http.Header{"Authorization": {"Basic c2FtOnB3"}})

			if _, err := child.Get(context.Background(), "/info"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if _, err := parent.Get(context.Background(), "/info"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if got[0] != "Basic c2FtOnB3" || got[1] != "" {
				t.Errorf("unexpected authorization headers %q", got)
			}
		})

		t.Run("WithToken sends bearer token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer abc123" {
					t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil).WithToken(context.Background(), "abc123")
			if _, err := srv.Get(context.Background(), "/info"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("response cookies are captured", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.SetCookie(w, &http.Cookie{Name: "authelia_session", Value: "xyz"})
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Post(context.Background(), "/api/firstfactor", []byte("{}"))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(resp.Cookies) != 1 || resp.Cookies[0].Value != "xyz" {
				t.Errorf("unexpected cookies %v", resp.Cookies)
			}
		})
	})

	t.Run("NoRedirectClient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/info" {
				http.Redirect(w, r, "https://auth.example.com/?rd=x", http.StatusFound)
				return
			}
			t.Errorf("redirect should not be followed, got request for %s", r.URL.Path)
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, NoRedirectClient(nil))
		resp, err := srv.Get(context.Background(), "/info")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected 302, got %d", resp.StatusCode)
		}
		if !strings.Contains(resp.Headers.Get("Location"), "rd=") {
			t.Errorf("expected Location header, got %q", resp.Headers.Get("Location"))
		}
	})

	t.Run("APIResponse", func(t *testing.T) {
		t.Run("JSON Detection", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"server_id": "abc"}`))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Get(context.Background(), "/info")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.IsJSON {
				t.Error("expected valid JSON to be detected")
			}

			data, ok := resp.JSONData.(map[string]any)
			if !ok || data["server_id"] != "abc" {
				t.Errorf("unexpected JSONData %v", resp.JSONData)
			}
		})

		t.Run("Invalid JSON Detection", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("not json"))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Get(context.Background(), "/info")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON {
				t.Error("expected invalid JSON to not be detected as JSON")
			}
			if resp.JSONData != nil {
				t.Error("expected JSONData to be nil for invalid JSON")
			}
		})
	})
}
