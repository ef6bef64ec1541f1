package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const needColumns = `id, foodbank_id, need_text, excess_text, input_method,
	published, nonpertinent, created_at`

func scanNeed(row pgx.Row) (*Need, error) {
	var n Need
	err := row.Scan(&n.ID, &n.FoodbankID, &n.NeedText, &n.ExcessText,
		&n.InputMethod, &n.Published, &n.Nonpertinent, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNeed inserts a new need record and returns it with its generated
// identifier and timestamp.
func (db *DB) CreateNeed(ctx context.Context, n *Need) (*Need, error) {
	created, err := scanNeed(db.pool.QueryRow(ctx,
		`INSERT INTO needs (foodbank_id, need_text, excess_text, input_method, published)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+needColumns,
		n.FoodbankID, n.NeedText, n.ExcessText, n.InputMethod, n.Published))
	if err != nil {
		return nil, fmt.Errorf("failed to create need: %w", err)
	}
	return created, nil
}

// GetNeedByID retrieves a need. Returns nil if not found.
func (db *DB) GetNeedByID(ctx context.Context, id uuid.UUID) (*Need, error) {
	n, err := scanNeed(db.pool.QueryRow(ctx,
		`SELECT `+needColumns+` FROM needs WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get need %s: %w", id, err)
	}
	return n, nil
}

// LastPublishedNeed returns the most recent published need for a
// foodbank, or nil when the foodbank has never had one.
func (db *DB) LastPublishedNeed(ctx context.Context, foodbankID uuid.UUID) (*Need, error) {
	n, err := scanNeed(db.pool.QueryRow(ctx,
		`SELECT `+needColumns+` FROM needs
		 WHERE foodbank_id = $1 AND published
		 ORDER BY created_at DESC LIMIT 1`, foodbankID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last published need: %w", err)
	}
	return n, nil
}

// RecentNonpublishedNeeds returns the newest non-published needs for a
// foodbank, capped at limit.
func (db *DB) RecentNonpublishedNeeds(ctx context.Context, foodbankID uuid.UUID, limit int) ([]*Need, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+needColumns+` FROM needs
		 WHERE foodbank_id = $1 AND NOT published
		 ORDER BY created_at DESC LIMIT $2`, foodbankID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list nonpublished needs: %w", err)
	}
	defer rows.Close()

	var out []*Need
	for rows.Next() {
		n, err := scanNeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan need: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNeedsNonpertinent flags rejected readings as known repeats. The
// update is idempotent.
func (db *DB) MarkNeedsNonpertinent(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE needs SET nonpertinent = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to mark needs nonpertinent: %w", err)
	}
	return nil
}

// SetNeedPublished flips the published flag on an existing need. The
// caller is responsible for triggering fan-out when the flip is
// unpublished to published.
func (db *DB) SetNeedPublished(ctx context.Context, id uuid.UUID, published bool) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE needs SET published = $1 WHERE id = $2`, published, id)
	if err != nil {
		return fmt.Errorf("failed to set need published: %w", err)
	}
	return nil
}
