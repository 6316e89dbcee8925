package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/shared"
)

const sessionColumns = `
	id, sequence, user_id, mode, status, pages, recorded, downloaded, skipped,
	error_message, started_at, completed_at, created_at, updated_at, deleted_at
`

// SessionRepository implements models.Repository[*models.SyncSession] for sync history.
//
// Handles session CRUD operations with soft delete support and user/mode/status queries.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session into the database with generated ID and sequence
func (r *SessionRepository) Create(session *models.SyncSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sync_sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO sync_sessions (
			id, sequence, user_id, mode, status, pages, recorded, downloaded, skipped,
			error_message, started_at, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		session.UserID(),
		string(session.Mode()),
		string(session.Status()),
		session.Pages(),
		session.Recorded(),
		session.Downloaded(),
		session.Skipped(),
		nullString(session.ErrorMessage()),
		session.StartedAt(),
		session.CompletedAt(),
		session.CreatedAt(),
		session.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	session.SetID(id)
	session.SetSequence(sequence)
	return nil
}

// Get retrieves a session by ID, excluding soft-deleted sessions
func (r *SessionRepository) Get(id string) (*models.SyncSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sync_sessions WHERE id = ? AND deleted_at IS NULL`

	session, err := scanSession(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return session, err
}

// Update writes the session's status, counters and completion time
func (r *SessionRepository) Update(session *models.SyncSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	session.SetUpdatedAt(now)

	query := `
		UPDATE sync_sessions
		SET status = ?, pages = ?, recorded = ?, downloaded = ?, skipped = ?,
			error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(session.Status()),
		session.Pages(),
		session.Recorded(),
		session.Downloaded(),
		session.Skipped(),
		nullString(session.ErrorMessage()),
		session.CompletedAt(),
		now,
		session.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return requireRow(result, session.ID())
}

// Delete soft-deletes a session by ID
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(
		`UPDATE sync_sessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return requireRow(result, id)
}

// List retrieves sessions matching the given criteria, newest first.
//
// Supported criteria: "user_id" (string), "mode" (string), "status" (string), "limit" (int).
func (r *SessionRepository) List(criteria map[string]any) ([]*models.SyncSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sync_sessions WHERE deleted_at IS NULL`
	args := []any{}

	for _, key := range []string{"user_id", "mode", "status"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.SyncSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSession scans one row selected with sessionColumns.
func scanSession(row rowScanner) (*models.SyncSession, error) {
	var (
		id           string
		sequence     int
		userID       string
		mode         string
		status       string
		pages        int
		recorded     int
		downloaded   int
		skipped      int
		errorMessage sql.NullString
		startedAt    time.Time
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &userID, &mode, &status, &pages, &recorded, &downloaded, &skipped,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	session := models.NewSyncSession(sequence, userID, models.SessionMode(mode))
	session.SetID(id)
	session.SetStatus(models.SessionStatus(status))
	session.SetCounts(pages, recorded, downloaded, skipped)
	session.SetErrorMessage(errorMessage.String)
	session.SetStartedAt(startedAt)
	session.SetCreatedAt(createdAt)
	session.SetUpdatedAt(updatedAt)
	if completedAt.Valid {
		session.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		session.SetDeletedAt(&deletedAt.Time)
	}

	return session, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", shared.ErrSessionNotFound, id)
	}
	return nil
}

// Begin creates and persists a running session for userID.
func (r *SessionRepository) Begin(userID string, mode models.SessionMode) (*models.SyncSession, error) {
	session := models.NewSyncSession(0, userID, mode)
	if err := r.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Complete persists a finished session.
func (r *SessionRepository) Complete(session *models.SyncSession) error {
	return r.Update(session)
}
