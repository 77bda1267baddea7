package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/massctl/internal/formatter"
	"github.com/desertthunder/massctl/internal/models"
	"github.com/desertthunder/massctl/internal/shared"
	"github.com/desertthunder/massctl/internal/tasks"
	"github.com/urfave/cli/v3"
)

// render writes data produced by a formatter call.
func (r *Runner) render(data []byte, err error) error {
	if err != nil {
		return err
	}
	return formatter.Write(r.output, data)
}

// LibraryPlaylists lists playlists. Cached pages print immediately and refresh in the background.
func (r *Runner) LibraryPlaylists(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.connect(ctx); err != nil {
		return err
	}

	playlists, err := r.library.Playlists(ctx, cmd.Int("limit"), cmd.Int("offset"), cmd.Bool("force"))
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}
	r.logger.Debug("playlists loaded", "count", len(playlists))
	return r.render(formatter.Playlists(f, "Playlists", playlists))
}

// LibraryTracks lists a playlist's tracks, optionally writing them to a file.
func (r *Runner) LibraryTracks(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.connect(ctx); err != nil {
		return err
	}

	id, provider := cmd.String("id"), cmd.String("provider")
	tracks, err := r.library.PlaylistTracks(ctx, id, provider, cmd.Bool("force"))
	if err != nil {
		return fmt.Errorf("failed to list tracks: %w", err)
	}

	playlist := models.Playlist{MediaItem: models.MediaItem{ItemID: id, Provider: provider, Name: "Playlist " + id}}
	if out := cmd.String("output"); out != "" {
		path, err := formatter.WriteTracksExport(playlist, tracks, f, out)
		if err != nil {
			return err
		}
		r.logger.Info("tracks exported", "path", path, "count", len(tracks))
		return r.writePlain("✓ Wrote %d tracks to %s\n", len(tracks), path)
	}
	return r.render(formatter.Tracks(f, playlist.Name, tracks))
}

// LibraryAlbums lists an artist's albums.
func (r *Runner) LibraryAlbums(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.connect(ctx); err != nil {
		return err
	}

	albums, err := r.library.ArtistAlbums(ctx, cmd.String("id"), cmd.String("provider"), cmd.Bool("force"))
	if err != nil {
		return fmt.Errorf("failed to list albums: %w", err)
	}
	return r.render(formatter.Albums(f, "Albums", albums))
}

// LibraryHome lists recently played items.
func (r *Runner) LibraryHome(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.connect(ctx); err != nil {
		return err
	}

	items, err := r.library.Home(ctx, cmd.Bool("force"))
	if err != nil {
		return fmt.Errorf("failed to load recently played: %w", err)
	}
	if f == formatter.JSON {
		return r.writeJSON(items, true)
	}

	r.writePlainHeader("Recently played")
	for i, item := range items {
		r.writePlain("%3d. %s [%s] %s\n", i+1, item.Name, item.MediaType, item.URI)
	}
	return nil
}

// LibraryFavorite flips the favorite flag of one item.
func (r *Runner) LibraryFavorite(ctx context.Context, cmd *cli.Command) error {
	item := models.MediaItem{
		ItemID:    cmd.String("id"),
		Provider:  cmd.String("provider"),
		URI:       cmd.String("uri"),
		MediaType: models.MediaType(cmd.String("media-type")),
		Favorite:  cmd.Bool("remove"),
	}
	if item.ItemID == "" && item.URI == "" {
		return fmt.Errorf("%w: --uri or --id", shared.ErrMissingArgument)
	}
	if err := r.connect(ctx); err != nil {
		return err
	}

	state, err := r.library.ToggleFavorite(ctx, item)
	if err != nil {
		return err
	}
	if state {
		return r.writePlain("♥ Added to favorites\n")
	}
	return r.writePlain("✓ Removed from favorites\n")
}

// LibraryPrefetch warms the cache with the tracks of every playlist.
func (r *Runner) LibraryPrefetch(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(ctx); err != nil {
		return err
	}

	opts := tasks.PrefetchOpts{
		NumWorkers: r.config.Prefetch.Workers,
		RateLimit:  r.config.Prefetch.RateLimit,
		Force:      cmd.Bool("force"),
	}
	if n := cmd.Int("workers"); n > 0 {
		opts.NumWorkers = n
	}
	if rate := cmd.Float("rate"); rate > 0 {
		opts.RateLimit = rate
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range progress {
			switch {
			case u.Message == "":
			case u.Total > 0 && u.Step > 0:
				r.writePlain("[%d/%d] %s\n", u.Step, u.Total, u.Message)
			default:
				r.writePlain("%s\n", u.Message)
			}
		}
	}()

	prefetcher := tasks.NewPrefetcher(r.library, r.logger)
	playlists, err := prefetcher.CollectPlaylists(ctx, progress, 0)
	if err != nil {
		close(progress)
		wg.Wait()
		return fmt.Errorf("failed to list playlists: %w", err)
	}

	summary, runErr := prefetcher.Run(ctx, progress, playlists, opts)
	close(progress)
	wg.Wait()

	if summary != nil {
		r.writePlainln("Prefetched %d/%d playlists in %s", summary.Succeeded, summary.Total, summary.Duration.Round(time.Millisecond))
		for _, res := range summary.Results {
			if res.Error != nil {
				r.writePlain("  ✗ %s: %v\n", res.Playlist.Name, res.Error)
			}
		}
	}
	return runErr
}
