package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateDiscrepancy appends a fetch-failure record for a foodbank.
func (db *DB) CreateDiscrepancy(ctx context.Context, foodbankID uuid.UUID, kind, text, url string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO discrepancies (foodbank_id, kind, text, url)
		 VALUES ($1, $2, $3, $4)`, foodbankID, kind, text, url)
	if err != nil {
		return fmt.Errorf("failed to create discrepancy: %w", err)
	}
	return nil
}
