package tasks

import (
	"fmt"

	"github.com/desertthunder/scsync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or server logs for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	UserID  string // User whose state is being synced
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	LoadState Phase = iota
	FetchFavorites
	DownloadTracks
	SkipTrack
	Complete
)

func (p Phase) String() string {
	switch p {
	case LoadState:
		return "load_state"
	case FetchFavorites:
		return "fetch_favorites"
	case DownloadTracks:
		return "download_tracks"
	case SkipTrack:
		return "skip_track"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func loadStateUpdate(userID string, total, downloaded int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadState,
		UserID:  userID,
		Step:    downloaded,
		Total:   total,
		Message: fmt.Sprintf("Loaded %d tracks for user %s (%d downloaded)", total, userID, downloaded),
	}
}

func fetchPageUpdate(userID string, page int, stats RecordStats) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFavorites,
		UserID:  userID,
		Step:    page,
		Message: fmt.Sprintf("Page %d: %d new tracks, %d already known", page, stats.Inserted, stats.Duplicates),
		Data:    stats,
	}
}

func downloadUpdate(userID string, step, total int, rec *models.TrackRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		UserID:  userID,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s.mp3", step, total, rec.SafeFileName()),
		Data:    rec,
	}
}

func skipUpdate(userID string, step, total int, rec *models.TrackRecord, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipTrack,
		UserID:  userID,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, rec.SafeFileName(), err),
		Data:    rec,
	}
}

func completeUpdate(result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:  Complete,
		UserID: result.UserID,
		Step:   result.Downloads.Downloaded,
		Total:  result.Downloads.Queued,
		Message: fmt.Sprintf("Finished %s for user %s: %d downloaded, %d skipped",
			result.Mode, result.UserID, result.Downloads.Downloaded, result.Downloads.Skipped),
		Data: result,
	}
}
