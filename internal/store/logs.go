package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogEntry is a free-form site note attached to a project.
type LogEntry struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertLogIfAbsent stores a log entry; an entry with a known id is ignored.
// An empty id is assigned a new one.
func (s *Store) InsertLogIfAbsent(ctx context.Context, e LogEntry) (bool, error) {
	if e.ProjectID == "" || e.Message == "" {
		return false, fmt.Errorf("%w: log entry needs project_id and message", ErrInvalidProject)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, project_id, message, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID, e.ProjectID, e.Message, e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("insert log entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert log entry: %w", err)
	}
	return affected > 0, nil
}

// ListLogs returns a project's log, oldest first.
func (s *Store) ListLogs(ctx context.Context, projectID string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, message, created_at
		FROM activity_log
		WHERE project_id = ?
		ORDER BY created_at, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]LogEntry, 0)
	for rows.Next() {
		var (
			e       LogEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.CreatedAt = parseTime(created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}
	return entries, nil
}
