package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scsync/internal/shared"
)

// SyncFunc syncs one user. It is only ever called from the queue's worker.
type SyncFunc func(ctx context.Context, userID string) error

// Enqueuer accepts users to sync.
type Enqueuer interface {
	Enqueue(userID string) error
	Len() int
}

// SyncQueue feeds users to a single worker so runs never overlap.
//
// A user already waiting in the queue is not queued twice.
type SyncQueue struct {
	jobs   chan string
	sync   SyncFunc
	logger *log.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewSyncQueue creates a queue holding at most size waiting users.
func NewSyncQueue(size int, fn SyncFunc, logger *log.Logger) *SyncQueue {
	if size <= 0 {
		size = 1
	}
	return &SyncQueue{
		jobs:    make(chan string, size),
		sync:    fn,
		logger:  logger,
		pending: map[string]struct{}{},
	}
}

// Enqueue adds userID without blocking.
//
// Returns [shared.ErrServiceUnavailable] when the queue is full.
func (q *SyncQueue) Enqueue(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[userID]; ok {
		q.logger.Debug("user already queued", "user", userID)
		return nil
	}

	select {
	case q.jobs <- userID:
		q.pending[userID] = struct{}{}
		q.logger.Info("user queued", "user", userID, "waiting", len(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: sync queue is full", shared.ErrServiceUnavailable)
	}
}

// Len returns the number of users waiting.
func (q *SyncQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run processes queued users one at a time until ctx is done.
//
// A failed sync is logged and the worker moves on to the next user.
func (q *SyncQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case userID := <-q.jobs:
			q.mu.Lock()
			delete(q.pending, userID)
			q.mu.Unlock()

			logger := q.logger.With("user", userID)
			logger.Info("processing user")
			if err := q.sync(ctx, userID); err != nil {
				if ctx.Err() != nil {
					logger.Warn("sync interrupted", "error", err)
					return nil
				}
				logger.Error("sync failed", "error", err)
				continue
			}
			logger.Info("user processed")
		}
	}
}
