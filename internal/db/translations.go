package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// UpsertTranslation stores the per-language rendering of a need,
// replacing any existing translation for that (need, language) pair so
// task re-delivery is safe.
func (db *DB) UpsertTranslation(ctx context.Context, needID uuid.UUID, language, needText, excessText string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO need_translations (need_id, language, need_text, excess_text)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (need_id, language)
		 DO UPDATE SET need_text = $3, excess_text = $4, created_at = NOW()`,
		needID, language, needText, excessText)
	if err != nil {
		return fmt.Errorf("failed to upsert translation: %w", err)
	}
	return nil
}

// UpsertArticle records an article discovered by the re-crawl job.
// Re-discovered URLs are ignored.
func (db *DB) UpsertArticle(ctx context.Context, a *Article) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO articles (foodbank_id, title, url, published_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (foodbank_id, url) DO NOTHING`,
		a.FoodbankID, a.Title, a.URL, a.PublishedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert article: %w", err)
	}
	return nil
}
