package tasks

import (
	"fmt"

	"github.com/desertthunder/massctl/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	WarmTracks
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case WarmTracks:
		return "warm_tracks"
	default:
		return ""
	}
}

// sendProgress sends update without blocking; it is dropped when progress is nil or full.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func playlistPageUpdate(page, collected int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    page,
		Total:   0,
		Message: fmt.Sprintf("Fetched page %d (%d playlists)...", page, collected),
	}
}

func warmStartUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WarmTracks,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Prefetching tracks for %d playlists...", total),
	}
}

func warmCompletedUpdate(step, total int, res PrefetchResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WarmTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✓ %s (%d tracks)", playlistLabel(res.Playlist), res.Tracks),
		Data:    res,
	}
}

func warmFailedUpdate(step, total int, res PrefetchResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WarmTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %s: %v", playlistLabel(res.Playlist), res.Error),
		Data:    res,
	}
}

func playlistLabel(p models.Playlist) string {
	if p.Name != "" {
		return p.Name
	}
	return p.Ref()
}
