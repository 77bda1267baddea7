package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/massctl/internal/models"
	"github.com/desertthunder/massctl/internal/shared"
	tu "github.com/desertthunder/massctl/internal/testing"
	gobreaker "github.com/sony/gobreaker/v2"
)

var testInfo = models.ServerInfo{ServerID: "abc123", ServerVersion: "2.6.0", SchemaVersion: 28}

func waitConnected(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !c.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatal("client did not receive server info")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func connect(t *testing.T, srv *tu.FakeServer, opts Options) *Client {
	t.Helper()
	c := New(opts)
	if err := c.Connect(context.Background(), srv.WSURL(), nil); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	waitConnected(t, c)
	return c
}

func TestClient(t *testing.T) {
	t.Run("Connect", func(t *testing.T) {
		t.Run("handshake populates server info", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			c := connect(t, srv, Options{})

			info := c.ServerInfo()
			if info == nil || info.ServerID != "abc123" || info.SchemaVersion != 28 {
				t.Errorf("unexpected server info %+v", info)
			}
		})

		t.Run("not connected until handshake", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			srv.SkipHandshake = true

			c := New(Options{})
			if err := c.Connect(context.Background(), srv.WSURL(), nil); err != nil {
				t.Fatalf("failed to connect: %v", err)
			}
			defer c.Close()

			time.Sleep(50 * time.Millisecond)
			if c.IsConnected() {
				t.Error("client should not report connected before server info")
			}
			if c.ServerInfo() != nil {
				t.Error("server info should be nil before handshake")
			}
		})

		t.Run("cancelled context does not dial", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			c := New(Options{})
			defer c.Close()
			if err := c.Connect(ctx, srv.WSURL(), nil); !errors.Is(err, shared.ErrConnection) {
				t.Errorf("expected ErrConnection, got %v", err)
			}
			if c.IsConnected() {
				t.Error("client must stay disconnected")
			}
		})

		t.Run("dial failure is ErrConnection", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			srv.Gate(func(*http.Request) bool { return false })

			err := New(Options{}).Connect(context.Background(), srv.WSURL(), nil)
			if !errors.Is(err, shared.ErrConnection) {
				t.Errorf("expected ErrConnection, got %v", err)
			}
		})

		t.Run("header is sent with upgrade", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			srv.Gate(func(r *http.Request) bool { return r.Header.Get("Cookie") == "authelia_session=s1" })

			c := New(Options{})
			header := http.Header{"Cookie": {"authelia_session=s1"}}
			if err := c.Connect(context.Background(), srv.WSURL(), header); err != nil {
				t.Fatalf("expected gated connect to succeed, got %v", err)
			}
			defer c.Close()
			waitConnected(t, c)
		})

		t.Run("server drop resets state", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			c := connect(t, srv, Options{})

			srv.DropConnections()

			deadline := time.Now().Add(2 * time.Second)
			for c.IsConnected() {
				if time.Now().After(deadline) {
					t.Fatal("client should notice the dropped connection")
				}
				time.Sleep(5 * time.Millisecond)
			}

			err := c.Call(context.Background(), "players/all", nil, nil)
			if !errors.Is(err, shared.ErrNotConnected) {
				t.Errorf("expected ErrNotConnected, got %v", err)
			}
		})
	})

	t.Run("Call", func(t *testing.T) {
		t.Run("decodes result", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			srv.Reply("players/all", []map[string]any{{"player_id": "kitchen", "display_name": "Kitchen", "available": true}})
			c := connect(t, srv, Options{})

			players, err := c.Players(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(players) != 1 || players[0].PlayerID != "kitchen" || players[0].Name != "Kitchen" {
				t.Errorf("unexpected players %+v", players)
			}
		})

		t.Run("error frame is RPCError", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			c := connect(t, srv, Options{})

			err := c.Call(context.Background(), "does/not/exist", nil, nil)
			if !errors.Is(err, shared.ErrRPC) {
				t.Fatalf("expected ErrRPC, got %v", err)
			}

			var rpcErr *RPCError
			if !errors.As(err, &rpcErr) || rpcErr.Code != 1 {
				t.Errorf("expected RPCError with code 1, got %v", err)
			}
		})

		t.Run("partial results are joined", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			srv.Reply("music/playlists/playlist_tracks", tu.Partial{
				{map[string]any{"item_id": "1", "provider": "library", "name": "One"}},
				{map[string]any{"item_id": "2", "provider": "library", "name": "Two"}},
				{map[string]any{"item_id": "3", "provider": "library", "name": "Three"}},
			})
			c := connect(t, srv, Options{})

			tracks, err := c.PlaylistTracks(context.Background(), "7", "library")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(tracks) != 3 || tracks[2].Name != "Three" {
				t.Errorf("expected 3 joined tracks, got %+v", tracks)
			}
		})

		t.Run("concurrent calls are matched by message ID", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			srv.Handle("echo", func(args map[string]any) (any, *tu.CommandError) {
				return args["n"], nil
			})
			c := connect(t, srv, Options{})

			var wg sync.WaitGroup
			errs := make(chan error, 20)
			for i := range 20 {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					var got int
					if err := c.Call(context.Background(), "echo", map[string]any{"n": n}, &got); err != nil {
						errs <- err
						return
					}
					if got != n {
						errs <- errors.New("mismatched response")
					}
				}(i)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				t.Error(err)
			}
		})

		t.Run("deadline is ErrTimeout", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			block := make(chan struct{})
			defer close(block)
			srv.Handle("slow", func(map[string]any) (any, *tu.CommandError) {
				<-block
				return nil, nil
			})
			c := connect(t, srv, Options{})

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			if err := c.Call(ctx, "slow", nil, nil); !errors.Is(err, shared.ErrTimeout) {
				t.Errorf("expected ErrTimeout, got %v", err)
			}
		})

		t.Run("cancelled context sends nothing", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			srv.Reply("players/all", []map[string]any{})
			c := connect(t, srv, Options{})

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if err := c.Call(ctx, "players/all", nil, nil); !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
			if srv.Calls("players/all") != 0 {
				t.Error("cancelled call must not reach the server")
			}
		})

		t.Run("not connected", func(t *testing.T) {
			err := New(Options{}).Call(context.Background(), "players/all", nil, nil)
			if !errors.Is(err, shared.ErrNotConnected) {
				t.Errorf("expected ErrNotConnected, got %v", err)
			}
		})

		t.Run("events reach handler", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			events := make(chan Event, 1)
			connect(t, srv, Options{OnEvent: func(e Event) { events <- e }})

			srv.Push("player_updated", map[string]any{"player_id": "kitchen"})

			select {
			case e := <-events:
				if e.Event != "player_updated" {
					t.Errorf("unexpected event %q", e.Event)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("event not delivered")
			}
		})
	})

	t.Run("Breaker", func(t *testing.T) {
		t.Run("server errors do not trip", func(t *testing.T) {
			srv := tu.NewFakeServer(t, testInfo)
			c := connect(t, srv, Options{Breaker: &gobreaker.Settings{
				ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 },
			}})

			for range 3 {
				if err := c.Call(context.Background(), "bad", nil, nil); !errors.Is(err, shared.ErrRPC) {
					t.Fatalf("expected ErrRPC, got %v", err)
				}
			}
		})

		t.Run("transport failures trip", func(t *testing.T) {
			c := New(Options{Breaker: &gobreaker.Settings{
				Timeout:     time.Minute,
				ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 2 },
			}})

			for range 2 {
				c.Call(context.Background(), "players/all", nil, nil)
			}

			if err := c.Call(context.Background(), "players/all", nil, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable once open, got %v", err)
			}
		})
	})

	t.Run("close is idempotent", func(t *testing.T) {
		srv := tu.NewFakeServer(t, testInfo)
		c := connect(t, srv, Options{})

		if err := c.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.Close(); err != nil {
			t.Fatalf("second close should be a no-op: %v", err)
		}
		if c.IsConnected() {
			t.Error("closed client should not report connected")
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("LoginWithCredentials", func(t *testing.T) {
		srv := tu.NewFakeServer(t, testInfo)
		srv.Handle("auth/login", func(args map[string]any) (any, *tu.CommandError) {
			if args["username"] == "sam" && args["password"] == "pw" && args["device_name"] == "test-device" {
				return map[string]any{"success": true, "access_token": "short"}, nil
			}
			return map[string]any{"success": false, "error": "invalid credentials"}, nil
		})
		c := connect(t, srv, Options{DeviceName: "test-device"})

		token, err := c.LoginWithCredentials(context.Background(), "sam", "pw")
		if err != nil || token != "short" {
			t.Errorf("LoginWithCredentials() = %q, %v", token, err)
		}

		if _, err := c.LoginWithCredentials(context.Background(), "sam", "wrong"); !errors.Is(err, shared.ErrAuth) {
			t.Errorf("expected ErrAuth, got %v", err)
		}
	})

	t.Run("AuthenticateWithToken", func(t *testing.T) {
		srv := tu.NewFakeServer(t, testInfo)
		srv.Handle("auth", func(args map[string]any) (any, *tu.CommandError) {
			return map[string]any{"authenticated": args["token"] == "good"}, nil
		})
		c := connect(t, srv, Options{})

		if ok, err := c.AuthenticateWithToken(context.Background(), "good"); err != nil || !ok {
			t.Errorf("expected good token to authenticate, got %v, %v", ok, err)
		}
		if ok, _ := c.AuthenticateWithToken(context.Background(), "bad"); ok {
			t.Error("bad token should not authenticate")
		}
	})

	t.Run("CreateLongLivedToken", func(t *testing.T) {
		srv := tu.NewFakeServer(t, testInfo)
		srv.Handle("auth/token/create", func(args map[string]any) (any, *tu.CommandError) {
			if args["name"] != "massctl-test" {
				return nil, &tu.CommandError{Code: 2, Details: "bad name"}
			}
			return "long", nil
		})
		c := connect(t, srv, Options{TokenName: "massctl-test"})

		token, err := c.CreateLongLivedToken(context.Background())
		if err != nil || token != "long" {
			t.Errorf("CreateLongLivedToken() = %q, %v", token, err)
		}
	})
}

func TestRPCValidation(t *testing.T) {
	c := New(Options{})

	if err := c.PlayerCommand(context.Background(), "kitchen", "explode"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if err := c.PlayMedia(context.Background(), "", nil, ""); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}
