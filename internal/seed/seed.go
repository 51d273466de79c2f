package seed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/pricing"
)

// Config contains the values required by startup seed.
type Config struct {
	// Prices seeds rows that do not exist yet; existing prices are never overwritten.
	Prices      pricing.PriceTable
	DemoProject string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way.
func Run(ctx context.Context, db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensurePriceItems(ctx, tx, cfg.Prices, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureDemoProject(ctx, tx, cfg.DemoProject, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensurePriceItems(ctx context.Context, tx *sql.Tx, prices pricing.PriceTable, stats *Stats) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, it := range prices.Items() {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO price_items (key, unit, price, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO NOTHING
		`, string(it.Key), it.Unit, it.Price, now)
		if err != nil {
			return fmt.Errorf("insert price item %s: %w", it.Key, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert price item %s: %w", it.Key, err)
		}
		stats.Inserts += int(affected)
	}
	return nil
}

func ensureDemoProject(ctx context.Context, tx *sql.Tx, name string, stats *Stats) error {
	if name == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE name = ? LIMIT 1)`, name).Scan(&exists); err != nil {
		return fmt.Errorf("check demo project existence: %w", err)
	}
	if exists {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, client, location, notes, created_at, updated_at)
		VALUES (?, ?, '', '', ?, ?, ?)
	`, uuid.NewString(), name, "Proyecto de ejemplo", now, now); err != nil {
		return fmt.Errorf("insert demo project: %w", err)
	}
	stats.Inserts++
	return nil
}
