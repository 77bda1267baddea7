// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configFlag is shared by every command that loads configuration.
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, markdown, csv or json",
		Value:   "text",
	}
}

func forceFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "force",
		Usage: "Bypass the response cache and fetch from the server",
	}
}

func curlFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "curl",
		Usage: "Replay the headers of a browser \"Copy as cURL\" export saved to this file",
	}
}

func itemFlags(kind string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    kind + " item ID",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Provider instance the item belongs to",
			Value: "library",
		},
		formatFlag(),
		forceFlag(),
	}
}

// setupCommand handles setup operations for the database and the secret key.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "secrets",
				Usage: "Generate the key that encrypts stored passwords and tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Key file path (default: secrets.key_path from config)",
					},
				},
				Action: r.SetupSecrets,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles session detection, login and logout.
func authCommand(r *Runner) *cli.Command {
	serverFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "Server address (default: saved setting or server.url)",
				Sources: cli.EnvVars("MASSCTL_URL"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Server port, ignored when the address already has one",
			},
		}
	}

	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Music Assistant session",
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "Probe a server and report its login method",
				Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
				Flags: append(serverFlags(),
					&cli.BoolFlag{Name: "open", Usage: "Open the Authelia portal in the browser when one is found"},
				),
				Action: r.AuthDetect,
			},
			{
				Name:  "login",
				Usage: "Sign in and save the session",
				Flags: append(serverFlags(),
					&cli.StringFlag{Name: "owner", Usage: "Display name of the library owner (defaults to the username)"},
					&cli.StringFlag{Name: "username", Usage: "Login username", Sources: cli.EnvVars("MASSCTL_USERNAME")},
					&cli.StringFlag{Name: "password", Usage: "Login password", Sources: cli.EnvVars("MASSCTL_PASSWORD")},
					&cli.StringFlag{Name: "strategy", Usage: "Skip detection: none, basic, authelia or music_assistant"},
					&cli.StringFlag{Name: "auth-server", Usage: "Authelia portal address when it differs from the detected one"},
				),
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the saved session",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "connect", Usage: "Also restore the session and report the live state"},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Disconnect and delete stored credentials",
				Action: r.AuthLogout,
			},
		},
	}
}

// libraryCommand handles cached library reads and favorites.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Browse the music library",
		Commands: []*cli.Command{
			{
				Name:  "playlists",
				Usage: "List library playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of playlists to return", Value: 50},
					&cli.IntFlag{Name: "offset", Usage: "Number of playlists to skip"},
					formatFlag(),
					forceFlag(),
				},
				Action: r.LibraryPlaylists,
			},
			{
				Name:  "tracks",
				Usage: "List the tracks of a playlist",
				Flags: append(itemFlags("Playlist"),
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to a file instead of stdout"},
				),
				Action: r.LibraryTracks,
			},
			{
				Name:   "albums",
				Usage:  "List the albums of an artist",
				Flags:  itemFlags("Artist"),
				Action: r.LibraryAlbums,
			},
			{
				Name:   "home",
				Usage:  "Show recently played items",
				Flags:  []cli.Flag{formatFlag(), forceFlag()},
				Action: r.LibraryHome,
			},
			{
				Name:  "favorite",
				Usage: "Toggle the favorite flag of an item",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "uri", Usage: "Item URI, required to add a favorite"},
					&cli.StringFlag{Name: "id", Usage: "Library item ID, required to remove a favorite"},
					&cli.StringFlag{Name: "provider", Usage: "Provider instance", Value: "library"},
					&cli.StringFlag{Name: "media-type", Usage: "Media type of the item", Value: "track"},
					&cli.BoolFlag{Name: "remove", Usage: "The item is currently a favorite"},
				},
				Action: r.LibraryFavorite,
			},
			{
				Name:  "prefetch",
				Usage: "Warm the cache with every playlist's tracks",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "workers", Usage: "Concurrent fetches (default: prefetch.workers)"},
					&cli.FloatFlag{Name: "rate", Usage: "Requests per second (default: prefetch.rate_limit)"},
					forceFlag(),
				},
				Action: r.LibraryPrefetch,
			},
		},
	}
}

// playerCommand handles playback targets.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "player",
		Usage: "Control players",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List players",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.PlayerList,
			},
			{
				Name:      "play",
				Usage:     "Play one or more URIs on a player",
				ArgsUsage: "<uri> [uri...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "player", Usage: "Player (queue) ID", Required: true},
					&cli.StringFlag{Name: "option", Usage: "Queue option: play, replace, next, add", Value: "play"},
				},
				Action: r.PlayerPlay,
			},
			{
				Name:      "cmd",
				Usage:     "Send a command (play, pause, stop, next, previous) to a player",
				Arguments: []cli.Argument{&cli.StringArg{Name: "command"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "player", Usage: "Player ID", Required: true},
				},
				Action: r.PlayerCmd,
			},
		},
	}
}

// cacheCommand manages the persistent response cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear cached responses",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show the number of stored responses",
				Action: r.CacheStats,
			},
			{
				Name:  "clear",
				Usage: "Delete cached responses",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "scope", Usage: "Only delete this scope or key (e.g. playlist_tracks)"},
				},
				Action: r.CacheClear,
			},
			{
				Name:  "prune",
				Usage: "Delete responses older than a duration",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "older-than", Usage: "Age cutoff", Required: true},
				},
				Action: r.CachePrune,
			},
		},
	}
}

// apiCommand handles direct HTTP calls to the server
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct HTTP calls to the Music Assistant server",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a server path, prints the raw body",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true},
					&cli.BoolFlag{Name: "anonymous", Usage: "Send no session credentials"},
					curlFlag(),
				},
				Action: r.APIGet,
			},
			{
				Name:      "command",
				Usage:     "Run a server command through POST /api",
				Arguments: []cli.Argument{&cli.StringArg{Name: "command"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "args", Aliases: []string{"d"}, Usage: "JSON object of command arguments"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true},
					curlFlag(),
				},
				Action: r.APICommand,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive library browser",
		Action:  r.TUI,
	}
}
