// package tasks implements the favorites sync pipeline.
//
// The core abstraction is SyncEngine, which orchestrates favorites enumeration and queued downloads.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/server layers.
package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/services"
	"github.com/desertthunder/scsync/internal/shared"
)

// TrackStore is the persisted state the pipeline reads and checkpoints.
type TrackStore interface {
	Load(userID string) (models.UserTrackTable, error)
	Save() error
}

// SessionRecorder persists a history row for each run.
type SessionRecorder interface {
	Begin(userID string, mode models.SessionMode) (*models.SyncSession, error)
	Complete(session *models.SyncSession) error
}

// SyncResult contains the outcome of an update or resume run.
type SyncResult struct {
	UserID    string
	Mode      models.SessionMode
	Pages     int         // Favorites pages fetched (update only)
	Records   RecordStats // Recording tally (update only)
	Downloads DownloadResult
}

// CompletionFunc is invoked once every queued track has been attempted.
type CompletionFunc func(result *SyncResult)

// SyncEngine defines the two entry points of the pipeline.
type SyncEngine interface {
	// UpdateFavorites enumerates every favorites page, records new tracks, then downloads the queue.
	UpdateFavorites(ctx context.Context, userID string, onComplete CompletionFunc, progress chan<- ProgressUpdate) (*SyncResult, error)

	// Resume downloads the queue from the persisted state without contacting the favorites API.
	Resume(ctx context.Context, userID string, onComplete CompletionFunc, progress chan<- ProgressUpdate) (*SyncResult, error)
}

// SyncController implements [SyncEngine].
type SyncController struct {
	store      TrackStore
	enumerator *Enumerator
	downloader *Downloader
	sessions   SessionRecorder
	logger     *log.Logger
}

// NewSyncController creates a controller that syncs favorites from service into store and dir.
func NewSyncController(service services.Service, store TrackStore, dir string, logger *log.Logger) *SyncController {
	return &SyncController{
		store:      store,
		enumerator: NewEnumerator(service, store, logger),
		downloader: NewDownloader(service, store, dir, logger),
		logger:     logger,
	}
}

// WithSessions records every run through r. Recorder failures are logged and otherwise ignored.
func (c *SyncController) WithSessions(r SessionRecorder) *SyncController {
	c.sessions = r
	return c
}

// Downloader returns the queue runner so callers can configure it.
func (c *SyncController) Downloader() *Downloader {
	return c.downloader
}

// UpdateFavorites runs Load → Enumerate → Download for userID.
//
// onComplete fires only when the download queue was fully attempted; it is not called when
// enumeration fails or ctx is cancelled.
func (c *SyncController) UpdateFavorites(ctx context.Context, userID string, onComplete CompletionFunc, progress chan<- ProgressUpdate) (*SyncResult, error) {
	return c.run(ctx, userID, models.ModeUpdate, onComplete, progress)
}

// Resume runs Load → Download for userID.
func (c *SyncController) Resume(ctx context.Context, userID string, onComplete CompletionFunc, progress chan<- ProgressUpdate) (*SyncResult, error) {
	return c.run(ctx, userID, models.ModeResume, onComplete, progress)
}

func (c *SyncController) run(ctx context.Context, userID string, mode models.SessionMode, onComplete CompletionFunc, progress chan<- ProgressUpdate) (result *SyncResult, err error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrMissingArgument)
	}

	logger := c.logger.With("user", userID, "mode", mode)
	result = &SyncResult{UserID: userID, Mode: mode}

	session := c.beginSession(logger, userID, mode)
	defer func() { c.completeSession(logger, session, result, err) }()

	table, err := c.store.Load(userID)
	if err != nil {
		return result, fmt.Errorf("failed to load track state: %w", err)
	}
	total, downloaded := table.Counts()
	sendProgress(progress, loadStateUpdate(userID, total, downloaded))

	if mode == models.ModeUpdate {
		logger.Info("updating favorites list")
		enumeration, err := c.enumerator.Enumerate(ctx, userID, table, progress)
		if enumeration != nil {
			result.Pages = enumeration.Pages
			result.Records = enumeration.Records
		}
		if err != nil {
			return result, err
		}
	}

	downloads, err := c.downloader.Run(ctx, userID, table, progress)
	if downloads != nil {
		result.Downloads = *downloads
	}
	if err != nil {
		return result, err
	}

	sendProgress(progress, completeUpdate(result))
	if onComplete != nil {
		onComplete(result)
	}
	return result, nil
}

func (c *SyncController) beginSession(logger *log.Logger, userID string, mode models.SessionMode) *models.SyncSession {
	if c.sessions == nil {
		return nil
	}
	session, err := c.sessions.Begin(userID, mode)
	if err != nil {
		logger.Warn("failed to record sync session", "error", err)
		return nil
	}
	return session
}

func (c *SyncController) completeSession(logger *log.Logger, session *models.SyncSession, result *SyncResult, err error) {
	if session == nil {
		return
	}
	session.SetCounts(result.Pages, result.Records.Inserted, result.Downloads.Downloaded, result.Downloads.Skipped)
	session.Finish(err)
	if err := c.sessions.Complete(session); err != nil {
		logger.Warn("failed to record sync session", "error", err)
	}
}
