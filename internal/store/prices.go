package store

import (
	"context"
	"fmt"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/pricing"
)

// Prices loads the stored price table. Missing keys read as zero.
func (s *Store) Prices(ctx context.Context) (pricing.PriceTable, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, unit, price FROM price_items ORDER BY key`)
	if err != nil {
		return pricing.PriceTable{}, fmt.Errorf("query price items: %w", err)
	}
	defer rows.Close()

	items := make([]pricing.Item, 0)
	for rows.Next() {
		var it pricing.Item
		if err := rows.Scan(&it.Key, &it.Unit, &it.Price); err != nil {
			return pricing.PriceTable{}, fmt.Errorf("scan price item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return pricing.PriceTable{}, fmt.Errorf("iterate price items: %w", err)
	}

	return pricing.FromItems(items)
}

// SavePrices replaces every price in one transaction.
func (s *Store) SavePrices(ctx context.Context, prices pricing.PriceTable) error {
	if err := prices.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin price transaction: %w", err)
	}

	now := s.timestamp()
	for _, it := range prices.Items() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO price_items (key, unit, price, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				unit = excluded.unit,
				price = excluded.price,
				updated_at = excluded.updated_at
		`, string(it.Key), it.Unit, it.Price, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert price %s: %w", it.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit price transaction: %w", err)
	}
	return nil
}
