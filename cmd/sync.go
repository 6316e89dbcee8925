package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Update fetches favorites and downloads new tracks for each user in turn.
func (r *Runner) Update(ctx context.Context, cmd *cli.Command) error {
	return r.syncAll(ctx, cmd, models.ModeUpdate)
}

// Resume downloads pending tracks for each user in turn without fetching favorites.
func (r *Runner) Resume(ctx context.Context, cmd *cli.Command) error {
	return r.syncAll(ctx, cmd, models.ModeResume)
}

// syncAll runs mode for every requested user, starting the next user only after the previous
// run returns. The first failing user aborts the batch.
func (r *Runner) syncAll(ctx context.Context, cmd *cli.Command, mode models.SessionMode) error {
	store := r.trackStore()
	users, err := r.users(cmd, store)
	if err != nil {
		return err
	}

	svc, err := r.soundcloud(ctx)
	if err != nil {
		return err
	}

	sessions, closeDB := r.sessions()
	defer closeDB()

	controller := r.controller(svc, store, sessions)
	run := controller.UpdateFavorites
	if mode == models.ModeResume {
		run = controller.Resume
	}

	for i, userID := range users {
		r.writePlainHeader(fmt.Sprintf("%s %s (%d/%d)", mode, userID, i+1, len(users)))

		result, err := r.runWithProgress(ctx, userID, run)
		if err != nil {
			return fmt.Errorf("%s failed for user %s: %w", mode, userID, err)
		}
		r.writeSummary(result)
	}
	return nil
}

type runFunc func(ctx context.Context, userID string, onComplete tasks.CompletionFunc, progress chan<- tasks.ProgressUpdate) (*tasks.SyncResult, error)

// runWithProgress prints progress updates while run executes.
func (r *Runner) runWithProgress(ctx context.Context, userID string, run runFunc) (*tasks.SyncResult, error) {
	progress := make(chan tasks.ProgressUpdate, 32)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writeProgress(update)
		}
	}()

	result, err := run(ctx, userID, nil, progress)
	close(progress)
	wg.Wait()
	return result, err
}

func (r *Runner) writeProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.SkipTrack:
		r.writePlain("%s\n", r.styles.Warning(update.Message))
	case tasks.Complete:
		r.writePlain("%s %s\n", r.styles.OK("✓"), update.Message)
	default:
		r.writePlain("→ %s\n", update.Message)
	}
}

func (r *Runner) writeSummary(result *tasks.SyncResult) {
	if result.Mode == models.ModeUpdate {
		r.writePlain("Pages: %d, new tracks: %d, already known: %d, not streamable: %d\n",
			result.Pages, result.Records.Inserted, result.Records.Duplicates, result.Records.Unstreamable)
	}
	r.writePlain("Downloaded: %d of %d queued\n", result.Downloads.Downloaded, result.Downloads.Queued)

	if n := len(result.Downloads.Failures); n > 0 {
		r.writePlain("%s\n", r.styles.Warning(fmt.Sprintf("%d tracks left for the next resume:", n)))
		for _, failure := range result.Downloads.Failures {
			r.writePlain("  %s %s: %v\n", failure.Track.ID, failure.Track.Permalink, failure.Err)
		}
	}
	r.writePlain("\n")
}
