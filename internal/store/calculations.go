package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/estimate"
)

// Calculation is a saved estimate snapshot. Reading it never recalculates.
type Calculation struct {
	ID        string            `json:"id"`
	ProjectID string            `json:"project_id"`
	CreatedAt time.Time         `json:"created_at"`
	Estimate  estimate.Estimate `json:"estimate"`
}

// CalculationSummary is the listing view of a saved calculation.
type CalculationSummary struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	CreatedAt        time.Time `json:"created_at"`
	Length           float64   `json:"length"`
	Width            float64   `json:"width"`
	Depth            int       `json:"depth"`
	Joists           int       `json:"joists"`
	VaultPieces      int       `json:"vault_pieces"`
	TraditionalTotal float64   `json:"traditional_total"`
	SystemTotal      float64   `json:"system_total"`
	BudgetTotal      float64   `json:"budget_total"`
}

// SaveCalculation stores est under projectID with a fresh id.
func (s *Store) SaveCalculation(ctx context.Context, projectID string, est estimate.Estimate) (Calculation, error) {
	c := Calculation{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		CreatedAt: s.now(),
		Estimate:  est,
	}
	if _, err := s.insertCalculation(ctx, c, false); err != nil {
		return Calculation{}, err
	}
	return c, nil
}

// InsertCalculationIfAbsent stores a calculation produced offline, keyed by the
// id the client generated. Redelivery of the same id is ignored.
func (s *Store) InsertCalculationIfAbsent(ctx context.Context, c Calculation) (bool, error) {
	if c.ID == "" || c.ProjectID == "" {
		return false, fmt.Errorf("%w: calculation id and project id are required", ErrInvalidProject)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	return s.insertCalculation(ctx, c, true)
}

func (s *Store) insertCalculation(ctx context.Context, c Calculation, ignoreDuplicate bool) (bool, error) {
	payload, err := json.Marshal(c.Estimate)
	if err != nil {
		return false, fmt.Errorf("encode calculation: %w", err)
	}

	query := `
		INSERT INTO calculations (
			id,
			project_id,
			created_at,
			length,
			width,
			depth,
			joists,
			vault_pieces,
			traditional_total,
			system_total,
			budget_total,
			result_json
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if ignoreDuplicate {
		query += ` ON CONFLICT(id) DO NOTHING`
	}

	est := c.Estimate
	result, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.ProjectID,
		c.CreatedAt.UTC().Format(timeLayout),
		est.Layout.Length,
		est.Layout.Width,
		int(est.Layout.Depth),
		est.Layout.Totals.Joists,
		est.Layout.Totals.VaultPieces,
		est.Comparison.Traditional.Costs.Total,
		est.Comparison.System.Costs.Total,
		est.Budget.Totals.Total,
		string(payload),
	)
	if err != nil {
		return false, fmt.Errorf("insert calculation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert calculation: %w", err)
	}
	return affected > 0, nil
}

// GetCalculation reads the stored snapshot of one calculation.
func (s *Store) GetCalculation(ctx context.Context, id string) (Calculation, error) {
	var (
		c       Calculation
		created string
		payload string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, created_at, result_json
		FROM calculations
		WHERE id = ?
	`, id).Scan(&c.ID, &c.ProjectID, &created, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Calculation{}, ErrNotFound
		}
		return Calculation{}, fmt.Errorf("query calculation: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &c.Estimate); err != nil {
		return Calculation{}, fmt.Errorf("decode calculation %s: %w", id, err)
	}
	c.CreatedAt = parseTime(created)
	return c, nil
}

// ListCalculations returns the summaries of a project's calculations, newest first.
func (s *Store) ListCalculations(ctx context.Context, projectID string) ([]CalculationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id,
			project_id,
			created_at,
			length,
			width,
			depth,
			joists,
			vault_pieces,
			traditional_total,
			system_total,
			budget_total
		FROM calculations
		WHERE project_id = ?
		ORDER BY created_at DESC, id DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query calculations: %w", err)
	}
	defer rows.Close()

	summaries := make([]CalculationSummary, 0)
	for rows.Next() {
		var (
			c       CalculationSummary
			created string
		)
		if err := rows.Scan(
			&c.ID,
			&c.ProjectID,
			&created,
			&c.Length,
			&c.Width,
			&c.Depth,
			&c.Joists,
			&c.VaultPieces,
			&c.TraditionalTotal,
			&c.SystemTotal,
			&c.BudgetTotal,
		); err != nil {
			return nil, fmt.Errorf("scan calculation: %w", err)
		}
		c.CreatedAt = parseTime(created)
		summaries = append(summaries, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calculations: %w", err)
	}

	return summaries, nil
}
