package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/massctl/internal/models"
	"github.com/desertthunder/massctl/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 4
	maxWorkers       = 10
	defaultRateLimit = 5.0
	defaultPageSize  = 50
	maxPages         = 100
)

// Library is the cached library the prefetcher warms.
type Library interface {
	Playlists(ctx context.Context, limit, offset int, force bool) ([]models.Playlist, error)
	PlaylistTracks(ctx context.Context, itemID, provider string, force bool) ([]models.Track, error)
}

// PrefetchOpts contains configuration for a prefetch run.
type PrefetchOpts struct {
	NumWorkers int     // Concurrent workers (default: 4, max: 10)
	RateLimit  float64 // Requests per second across all workers (default: 5)
	Force      bool    // Refetch playlists that are already cached
}

// PrefetchResult is the outcome for one playlist.
type PrefetchResult struct {
	Playlist models.Playlist
	Tracks   int
	Error    error
}

// PrefetchSummary aggregates a run. Results are in input order.
type PrefetchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []PrefetchResult
	Duration  time.Duration
}

// Prefetcher warms playlist track lists through a [Library].
type Prefetcher struct {
	library Library
	logger  *log.Logger
}

// NewPrefetcher creates a [Prefetcher].
func NewPrefetcher(library Library, logger *log.Logger) *Prefetcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Prefetcher{library: library, logger: logger}
}

// CollectPlaylists pages through the library's playlists until a short page is returned.
func (p *Prefetcher) CollectPlaylists(ctx context.Context, prog chan<- ProgressUpdate, pageSize int) ([]models.Playlist, error) {
	if p.library == nil {
		return nil, fmt.Errorf("%w: library not initialized", shared.ErrServiceUnavailable)
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var all []models.Playlist
	for page := 1; page <= maxPages; page++ {
		items, err := p.library.Playlists(ctx, pageSize, (page-1)*pageSize, true)
		if err != nil {
			return all, fmt.Errorf("failed to fetch playlists page %d: %w", page, err)
		}
		all = append(all, items...)
		sendProgress(prog, playlistPageUpdate(page, len(all)))

		if len(items) < pageSize {
			break
		}
	}
	return all, nil
}

type prefetchJob struct {
	index    int
	playlist models.Playlist
}

type prefetchOutcome struct {
	index  int
	result PrefetchResult
}

// Run fetches the tracks of every playlist with a rate-limited worker pool.
//
// Per-playlist failures are recorded in the summary. The returned error is non-nil only
// when ctx ends before all playlists were processed; the partial summary is still returned.
func (p *Prefetcher) Run(ctx context.Context, prog chan<- ProgressUpdate, playlists []models.Playlist, opts PrefetchOpts) (*PrefetchSummary, error) {
	if p.library == nil {
		return nil, fmt.Errorf("%w: library not initialized", shared.ErrServiceUnavailable)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultWorkers
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}

	start := time.Now()
	total := len(playlists)
	summary := &PrefetchSummary{Total: total, Results: make([]PrefetchResult, total)}
	sendProgress(prog, warmStartUpdate(total))

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan prefetchJob)
	outcomes := make(chan prefetchOutcome, total)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go p.worker(ctx, &wg, limiter, jobs, outcomes, opts.Force)
	}

	go func() {
		defer close(jobs)
		for i, pl := range playlists {
			select {
			case <-ctx.Done():
				return
			case jobs <- prefetchJob{index: i, playlist: pl}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	seen := make([]bool, total)
	completed := 0
	for out := range outcomes {
		completed++
		seen[out.index] = true
		summary.Results[out.index] = out.result

		if out.result.Error == nil {
			summary.Succeeded++
			sendProgress(prog, warmCompletedUpdate(completed, total, out.result))
		} else {
			summary.Failed++
			p.logger.Warn("prefetch failed", "playlist", playlistLabel(out.result.Playlist), "error", out.result.Error)
			sendProgress(prog, warmFailedUpdate(completed, total, out.result))
		}
	}

	summary.Duration = time.Since(start)

	if err := ctx.Err(); err != nil && summary.Succeeded < total {
		for i, ok := range seen {
			if !ok {
				summary.Results[i] = PrefetchResult{Playlist: playlists[i], Error: err}
				summary.Failed++
			}
		}
		return summary, fmt.Errorf("prefetch interrupted after %d of %d playlists: %w", summary.Succeeded, total, err)
	}

	p.logger.Info("prefetch finished", "total", total, "succeeded", summary.Succeeded, "failed", summary.Failed, "duration", summary.Duration)
	return summary, nil
}

func (p *Prefetcher) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan prefetchJob,
	outcomes chan<- prefetchOutcome,
	force bool,
) {
	defer wg.Done()

	for job := range jobs {
		res := PrefetchResult{Playlist: job.playlist}

		if err := limiter.Wait(ctx); err != nil {
			res.Error = err
			outcomes <- prefetchOutcome{index: job.index, result: res}
			continue
		}

		tracks, err := p.library.PlaylistTracks(ctx, job.playlist.ItemID, job.playlist.Provider, force)
		if err != nil {
			res.Error = fmt.Errorf("failed to fetch tracks: %w", err)
		}
		res.Tracks = len(tracks)
		outcomes <- prefetchOutcome{index: job.index, result: res}
	}
}
