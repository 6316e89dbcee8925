package models

import (
	"fmt"
	"time"
)

// SessionMode names which controller entry point ran.
type SessionMode string

const (
	ModeUpdate SessionMode = "update"
	ModeResume SessionMode = "resume"
)

// SessionStatus is the lifecycle state of a [SyncSession].
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// SyncSession records one update or resume run for a user.
type SyncSession struct {
	id           string
	sequence     int
	userID       string
	mode         SessionMode
	status       SessionStatus
	pages        int
	recorded     int
	downloaded   int
	skipped      int
	errorMessage string
	startedAt    time.Time
	completedAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewSyncSession creates a running session for userID started now.
func NewSyncSession(sequence int, userID string, mode SessionMode) *SyncSession {
	now := time.Now()
	return &SyncSession{
		sequence:  sequence,
		userID:    userID,
		mode:      mode,
		status:    StatusRunning,
		startedAt: now,
		createdAt: now,
		updatedAt: now,
	}
}

func (s *SyncSession) ID() string              { return s.id }
func (s *SyncSession) Sequence() int           { return s.sequence }
func (s *SyncSession) UserID() string          { return s.userID }
func (s *SyncSession) Mode() SessionMode       { return s.mode }
func (s *SyncSession) Status() SessionStatus   { return s.status }
func (s *SyncSession) Pages() int              { return s.pages }
func (s *SyncSession) Recorded() int           { return s.recorded }
func (s *SyncSession) Downloaded() int         { return s.downloaded }
func (s *SyncSession) Skipped() int            { return s.skipped }
func (s *SyncSession) ErrorMessage() string    { return s.errorMessage }
func (s *SyncSession) StartedAt() time.Time    { return s.startedAt }
func (s *SyncSession) CompletedAt() *time.Time { return s.completedAt }
func (s *SyncSession) CreatedAt() time.Time    { return s.createdAt }
func (s *SyncSession) UpdatedAt() time.Time    { return s.updatedAt }
func (s *SyncSession) DeletedAt() *time.Time   { return s.deletedAt }

func (s *SyncSession) SetID(id string)              { s.id = id }
func (s *SyncSession) SetSequence(seq int)          { s.sequence = seq }
func (s *SyncSession) SetUpdatedAt(t time.Time)     { s.updatedAt = t }
func (s *SyncSession) SetDeletedAt(t *time.Time)    { s.deletedAt = t }
func (s *SyncSession) SetStartedAt(t time.Time)     { s.startedAt = t }
func (s *SyncSession) SetCreatedAt(t time.Time)     { s.createdAt = t }
func (s *SyncSession) SetCompletedAt(t *time.Time)  { s.completedAt = t }
func (s *SyncSession) SetStatus(st SessionStatus)   { s.status = st }
func (s *SyncSession) SetErrorMessage(msg string)   { s.errorMessage = msg }
func (s *SyncSession) SetCounts(pages, recorded, downloaded, skipped int) {
	s.pages = pages
	s.recorded = recorded
	s.downloaded = downloaded
	s.skipped = skipped
}

// Finish marks the session completed, or failed when err is non-nil.
func (s *SyncSession) Finish(err error) {
	now := time.Now()
	s.completedAt = &now
	s.status = StatusCompleted
	s.errorMessage = ""
	if err != nil {
		s.status = StatusFailed
		s.errorMessage = err.Error()
	}
}

// Validate checks required fields and enum values.
func (s *SyncSession) Validate() error {
	if s.userID == "" {
		return fmt.Errorf("user id is required")
	}

	switch s.mode {
	case ModeUpdate, ModeResume:
	default:
		return fmt.Errorf("invalid mode: %q", s.mode)
	}

	switch s.status {
	case StatusRunning, StatusCompleted, StatusFailed:
	default:
		return fmt.Errorf("invalid status: %q", s.status)
	}

	if s.pages < 0 || s.recorded < 0 || s.downloaded < 0 || s.skipped < 0 {
		return fmt.Errorf("counts must not be negative")
	}

	return nil
}
