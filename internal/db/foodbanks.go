package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const foodbankColumns = `id, slug, name, url, shopping_list_url, rss_url,
	facebook_page, source_kind, is_closed, latest_need_id, last_crawl,
	last_need_check, created_at`

func scanFoodbank(row pgx.Row) (*Foodbank, error) {
	var fb Foodbank
	err := row.Scan(&fb.ID, &fb.Slug, &fb.Name, &fb.URL, &fb.ShoppingListURL,
		&fb.RSSURL, &fb.FacebookPage, &fb.SourceKind, &fb.IsClosed,
		&fb.LatestNeedID, &fb.LastCrawl, &fb.LastNeedCheck, &fb.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// GetFoodbankBySlug retrieves a foodbank by its slug. Returns nil if the
// slug is unknown.
func (db *DB) GetFoodbankBySlug(ctx context.Context, slug string) (*Foodbank, error) {
	fb, err := scanFoodbank(db.pool.QueryRow(ctx,
		`SELECT `+foodbankColumns+` FROM foodbanks WHERE slug = $1`, slug))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get foodbank %s: %w", slug, err)
	}
	return fb, nil
}

// GetFoodbankByID retrieves a foodbank by UUID. Returns nil if not found.
func (db *DB) GetFoodbankByID(ctx context.Context, id uuid.UUID) (*Foodbank, error) {
	fb, err := scanFoodbank(db.pool.QueryRow(ctx,
		`SELECT `+foodbankColumns+` FROM foodbanks WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get foodbank %s: %w", id, err)
	}
	return fb, nil
}

// ListOpenFoodbanks returns every foodbank that is not closed, ordered by
// slug for stable batch runs.
func (db *DB) ListOpenFoodbanks(ctx context.Context) ([]*Foodbank, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+foodbankColumns+` FROM foodbanks WHERE NOT is_closed ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to list foodbanks: %w", err)
	}
	defer rows.Close()

	var out []*Foodbank
	for rows.Next() {
		fb, err := scanFoodbank(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan foodbank: %w", err)
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// TouchLastNeedCheck stamps the foodbank's last_need_check. Last writer
// wins; the field is monitoring metadata, not business state.
func (db *DB) TouchLastNeedCheck(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE foodbanks SET last_need_check = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last_need_check: %w", err)
	}
	return nil
}

// TouchLastCrawl stamps the foodbank's last_crawl.
func (db *DB) TouchLastCrawl(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE foodbanks SET last_crawl = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last_crawl: %w", err)
	}
	return nil
}

// SetLatestNeed points the foodbank at its new current need.
func (db *DB) SetLatestNeed(ctx context.Context, foodbankID, needID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE foodbanks SET latest_need_id = $1 WHERE id = $2`, needID, foodbankID)
	if err != nil {
		return fmt.Errorf("failed to set latest need: %w", err)
	}
	return nil
}
