package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateCrawlSet opens a new batch run of the given crawl type.
func (db *DB) CreateCrawlSet(ctx context.Context, crawlType string) (*CrawlSet, error) {
	var cs CrawlSet
	err := db.pool.QueryRow(ctx,
		`INSERT INTO crawl_sets (crawl_type) VALUES ($1)
		 RETURNING id, crawl_type, started_at, finished_at`, crawlType).
		Scan(&cs.ID, &cs.CrawlType, &cs.StartedAt, &cs.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawl set: %w", err)
	}
	return &cs, nil
}

// FinishCrawlSet stamps the batch run's finish time.
func (db *DB) FinishCrawlSet(ctx context.Context, id int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE crawl_sets SET finished_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to finish crawl set: %w", err)
	}
	return nil
}

// CreateCrawlItem opens the audit record for one fetch attempt. The start
// time is recorded before the fetch is made.
func (db *DB) CreateCrawlItem(ctx context.Context, foodbankID uuid.UUID, crawlSetID *int64, crawlType, url string) (*CrawlItem, error) {
	var ci CrawlItem
	err := db.pool.QueryRow(ctx,
		`INSERT INTO crawl_items (foodbank_id, crawl_set_id, crawl_type, url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, foodbank_id, crawl_set_id, crawl_type, url, started_at, finished_at, need_id`,
		foodbankID, crawlSetID, crawlType, url).
		Scan(&ci.ID, &ci.FoodbankID, &ci.CrawlSetID, &ci.CrawlType, &ci.URL,
			&ci.StartedAt, &ci.FinishedAt, &ci.NeedID)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawl item: %w", err)
	}
	return &ci, nil
}

// FinishCrawlItem stamps the fetch attempt's finish time and, when the
// attempt produced a need, links it for traceability.
func (db *DB) FinishCrawlItem(ctx context.Context, id int64, needID *uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE crawl_items SET finished_at = NOW(), need_id = $1 WHERE id = $2`,
		needID, id)
	if err != nil {
		return fmt.Errorf("failed to finish crawl item: %w", err)
	}
	return nil
}
