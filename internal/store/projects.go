package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Project groups the calculations of one job site.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Client    string    `json:"client"`
	Location  string    `json:"location"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Project) normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Client = strings.TrimSpace(p.Client)
	p.Location = strings.TrimSpace(p.Location)
	p.Notes = strings.TrimSpace(p.Notes)
	if p.Name == "" {
		return fmt.Errorf("%w: name es requerido", ErrInvalidProject)
	}
	return nil
}

// CreateProject inserts p with a new id and returns the stored row.
func (s *Store) CreateProject(ctx context.Context, p Project) (Project, error) {
	if err := p.normalize(); err != nil {
		return Project{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.timestamp()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, client, location, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Client, p.Location, p.Notes, now, now)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}

	return s.GetProject(ctx, p.ID)
}

// InsertProjectIfAbsent stores a project created elsewhere, keeping its id and
// timestamps. A second delivery of the same id is a no-op.
func (s *Store) InsertProjectIfAbsent(ctx context.Context, p Project) (bool, error) {
	if err := p.normalize(); err != nil {
		return false, err
	}
	if p.ID == "" {
		return false, fmt.Errorf("%w: id es requerido", ErrInvalidProject)
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, client, location, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, p.ID, p.Name, p.Client, p.Location, p.Notes, created.UTC().Format(timeLayout), updated.UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("insert synced project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert synced project: %w", err)
	}
	return affected > 0, nil
}

// GetProject loads one project by id.
func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	var (
		p                Project
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, client, location, notes, created_at, updated_at
		FROM projects
		WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Client, &p.Location, &p.Notes, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("query project: %w", err)
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// ListProjects returns projects newest first, optionally filtered by a
// substring of name, client or notes.
func (s *Store) ListProjects(ctx context.Context, query string) ([]Project, error) {
	query = strings.TrimSpace(query)
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, client, location, notes, created_at, updated_at
		FROM projects
		WHERE (? = '' OR name LIKE ? OR client LIKE ? OR notes LIKE ?)
		ORDER BY created_at DESC, id DESC
	`, query, search, search, search)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		var (
			p                Project
			created, updated string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Client, &p.Location, &p.Notes, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.CreatedAt = parseTime(created)
		p.UpdatedAt = parseTime(updated)
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

// UpdateProject overwrites the editable fields of p.
func (s *Store) UpdateProject(ctx context.Context, p Project) (Project, error) {
	if err := p.normalize(); err != nil {
		return Project{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET
			name = ?,
			client = ?,
			location = ?,
			notes = ?,
			updated_at = ?
		WHERE id = ?
	`, p.Name, p.Client, p.Location, p.Notes, s.timestamp(), p.ID)
	if err != nil {
		return Project{}, fmt.Errorf("update project: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return Project{}, err
	}

	return s.GetProject(ctx, p.ID)
}

// DeleteProject removes a project and, through the foreign key, its calculations.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return checkAffected(result)
}
