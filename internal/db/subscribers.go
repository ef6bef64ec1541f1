package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ListConfirmedEmailSubscribers returns the confirmed email subscribers
// for a foodbank.
func (db *DB) ListConfirmedEmailSubscribers(ctx context.Context, foodbankID uuid.UUID) ([]*EmailSubscriber, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, foodbank_id, email, confirmed, sub_key, unsub_key, created_at
		 FROM email_subscribers
		 WHERE foodbank_id = $1 AND confirmed ORDER BY id`, foodbankID)
	if err != nil {
		return nil, fmt.Errorf("failed to list email subscribers: %w", err)
	}
	defer rows.Close()

	var out []*EmailSubscriber
	for rows.Next() {
		var s EmailSubscriber
		if err := rows.Scan(&s.ID, &s.FoodbankID, &s.Email, &s.Confirmed,
			&s.SubKey, &s.UnsubKey, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan email subscriber: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ListWhatsAppSubscribers returns every WhatsApp subscriber for a
// foodbank.
func (db *DB) ListWhatsAppSubscribers(ctx context.Context, foodbankID uuid.UUID) ([]*WhatsAppSubscriber, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, foodbank_id, phone_number, last_notified, created_at
		 FROM whatsapp_subscribers WHERE foodbank_id = $1 ORDER BY id`, foodbankID)
	if err != nil {
		return nil, fmt.Errorf("failed to list whatsapp subscribers: %w", err)
	}
	defer rows.Close()

	var out []*WhatsAppSubscriber
	for rows.Next() {
		var s WhatsAppSubscriber
		if err := rows.Scan(&s.ID, &s.FoodbankID, &s.PhoneNumber,
			&s.LastNotified, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan whatsapp subscriber: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// TouchWhatsAppLastNotified stamps last_notified after a successful send.
func (db *DB) TouchWhatsAppLastNotified(ctx context.Context, id int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE whatsapp_subscribers SET last_notified = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last_notified: %w", err)
	}
	return nil
}

// ListWebPushSubscriptions returns every web push subscription for a
// foodbank.
func (db *DB) ListWebPushSubscriptions(ctx context.Context, foodbankID uuid.UUID) ([]*WebPushSubscription, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, foodbank_id, endpoint, p256dh, auth, browser_tag, created_at
		 FROM webpush_subscriptions WHERE foodbank_id = $1 ORDER BY id`, foodbankID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webpush subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*WebPushSubscription
	for rows.Next() {
		var s WebPushSubscription
		if err := rows.Scan(&s.ID, &s.FoodbankID, &s.Endpoint, &s.P256dh,
			&s.Auth, &s.BrowserTag, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webpush subscription: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// DeleteWebPushSubscription removes a subscription whose endpoint
// reported itself permanently gone.
func (db *DB) DeleteWebPushSubscription(ctx context.Context, id int64) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM webpush_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webpush subscription: %w", err)
	}
	return nil
}
