package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/services"
	"github.com/desertthunder/scsync/internal/shared"
)

// EnumerationResult summarizes a walk over a user's favorites.
type EnumerationResult struct {
	Pages   int
	Records RecordStats
}

// Enumerator walks every page of a user's favorites and records each entry.
type Enumerator struct {
	source   services.Service
	store    TrackStore
	recorder *Recorder
	logger   *log.Logger
}

// NewEnumerator creates an Enumerator that reads from source and checkpoints to store.
func NewEnumerator(source services.Service, store TrackStore, logger *log.Logger) *Enumerator {
	return &Enumerator{
		source:   source,
		store:    store,
		recorder: NewRecorder(logger),
		logger:   logger,
	}
}

// Enumerate fetches pages starting from the beginning of the list until a page is empty
// or has no next link, recording each entry into table in array order.
//
// The store is saved before each page request and once after the last page.
// A fetch or decode failure ends the walk with an error wrapping [shared.ErrAPIRequest];
// records from earlier pages stay in table.
func (e *Enumerator) Enumerate(ctx context.Context, userID string, table models.UserTrackTable, progress chan<- ProgressUpdate) (*EnumerationResult, error) {
	result := &EnumerationResult{}
	logger := e.logger.With("user", userID)
	e.recorder.Reset()

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		e.checkpoint(logger)

		logger.Debug("retrieving favorites page", "page", result.Pages+1, "cursor", cursor)
		page, err := e.source.Favorites(ctx, userID, cursor)
		if err != nil {
			return result, pageError(ctx, result.Pages+1, err)
		}
		result.Pages++

		var pageStats RecordStats
		for _, fav := range page.Collection {
			pageStats.Add(e.recorder.Record(table, fav))
		}
		result.Records.Add(pageStats)
		sendProgress(progress, fetchPageUpdate(userID, result.Pages, pageStats))

		if len(page.Collection) == 0 || page.NextHref == "" {
			break
		}

		next, ok := page.NextCursor()
		if !ok {
			logger.Warn("next page link has no cursor, stopping", "next_href", page.NextHref)
			break
		}
		if next == cursor {
			logger.Warn("cursor did not advance, stopping", "cursor", cursor)
			break
		}
		cursor = next
	}

	e.checkpoint(logger)
	logger.Info("favorites list updated",
		"pages", result.Pages,
		"new", result.Records.Inserted,
		"known", result.Records.Duplicates,
		"unstreamable", result.Records.Unstreamable,
	)
	return result, nil
}

// checkpoint saves the store, logging rather than returning failures.
func (e *Enumerator) checkpoint(logger *log.Logger) {
	if err := e.store.Save(); err != nil {
		logger.Error("failed to save track state", "error", err)
	}
}

func pageError(ctx context.Context, page int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	if errors.Is(err, shared.ErrAPIRequest) {
		return fmt.Errorf("failed to fetch favorites page %d: %w", page, err)
	}
	return fmt.Errorf("%w: failed to fetch favorites page %d: %w", shared.ErrAPIRequest, page, err)
}
