package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/cheggaaa/pb/v3"
	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/services"
	"github.com/desertthunder/scsync/internal/shared"
)

const barTemplate = `{{ string . "prefix" }} {{ bar . }} {{ percent . }} | {{ speed . "%s/s" }} | ETA {{ rtime . "%s" }}`

// TrackFailure records a track skipped during a run.
type TrackFailure struct {
	Track models.TrackRecord
	Err   error
}

// DownloadResult summarizes one pass over a user's download queue.
type DownloadResult struct {
	Queued     int
	Downloaded int
	Skipped    int
	Failures   []TrackFailure
}

// Downloader drains a user's download queue one track at a time.
type Downloader struct {
	service services.Service
	store   TrackStore
	dir     string
	bars    io.Writer
	logger  *log.Logger
}

// NewDownloader creates a Downloader writing <permalink>.mp3 files into dir.
func NewDownloader(service services.Service, store TrackStore, dir string, logger *log.Logger) *Downloader {
	return &Downloader{service: service, store: store, dir: dir, logger: logger}
}

// WithProgressBars renders a progress bar per transfer to w. A nil w disables bars.
func (d *Downloader) WithProgressBars(w io.Writer) *Downloader {
	d.bars = w
	return d
}

// Dir returns the downloads directory.
func (d *Downloader) Dir() string {
	return d.dir
}

// Run attempts every undownloaded track in table exactly once, in ascending id order.
//
// A track whose stream cannot be resolved or transferred is logged, counted as skipped and
// left undownloaded for a later resume. A completed track is marked downloaded and the store
// saved before moving on. Only a failure to create the downloads directory or cancellation of
// ctx stops the run early.
func (d *Downloader) Run(ctx context.Context, userID string, table models.UserTrackTable, progress chan<- ProgressUpdate) (*DownloadResult, error) {
	logger := d.logger.With("user", userID)

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}

	queue := table.Pending()
	result := &DownloadResult{Queued: len(queue)}
	logger.Info("downloading tracks", "count", len(queue), "dir", d.dir)

	for i, rec := range queue {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		step := i + 1
		sendProgress(progress, downloadUpdate(userID, step, len(queue), rec))
		logger.Info("downloading", "file", rec.SafeFileName()+".mp3", "remaining", len(queue)-step)

		if err := d.download(ctx, rec); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}

			logger.Warn("skipping track", "id", rec.ID, "permalink", rec.Permalink, "error", err)
			result.Skipped++
			result.Failures = append(result.Failures, TrackFailure{Track: *rec, Err: err})
			sendProgress(progress, skipUpdate(userID, step, len(queue), rec, err))
			continue
		}

		table.MarkDownloaded(rec.ID)
		result.Downloaded++
		if err := d.store.Save(); err != nil {
			logger.Error("failed to save track state", "error", err)
		}
	}

	logger.Info("downloading finished", "downloaded", result.Downloaded, "skipped", result.Skipped)
	return result, nil
}

// Path returns the destination file for rec.
func (d *Downloader) Path(rec *models.TrackRecord) string {
	return filepath.Join(d.dir, rec.SafeFileName()+".mp3")
}

// download resolves and transfers one track. The destination only appears once the transfer completes.
func (d *Downloader) download(ctx context.Context, rec *models.TrackRecord) error {
	info, err := d.service.Streams(ctx, rec.ID)
	if err != nil {
		return err
	}
	if info == nil || info.HTTPMP3128URL == "" {
		return fmt.Errorf("%w: track %s", shared.ErrStreamUnavailable, rec.ID)
	}

	body, size, err := d.service.Open(ctx, info.HTTPMP3128URL)
	if err != nil {
		return err
	}
	defer body.Close()

	var bar *pb.ProgressBar
	if d.bars != nil {
		bar = pb.New64(0)
		bar.SetWriter(d.bars)
		bar.SetTemplateString(barTemplate)
		bar.Set("prefix", fmt.Sprintf("%-40s", truncate(rec.SafeFileName(), 40)))
		if size > 0 {
			bar.SetTotal(size)
		}
		bar.Start()
		defer bar.Finish()
		body = bar.NewProxyReader(body)
	}

	dest := d.Path(rec)
	part := dest + ".part"

	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransferFailed, err)
	}

	written, err := io.Copy(out, body)
	closeErr := out.Close()
	switch {
	case err != nil:
	case closeErr != nil:
		err = closeErr
	case size > 0 && written != size:
		err = fmt.Errorf("incomplete download: expected %d bytes, got %d", size, written)
	}
	if err != nil {
		os.Remove(part)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", shared.ErrTransferFailed, err)
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return fmt.Errorf("%w: %v", shared.ErrTransferFailed, err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
