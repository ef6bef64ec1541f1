package db

import (
	"time"

	"github.com/google/uuid"
)

// Foodbank is a directory entry whose published need this pipeline keeps
// fresh. Only latest_need_id, last_crawl and last_need_check are mutated
// here; the record itself is owned by the admin side.
type Foodbank struct {
	ID              uuid.UUID
	Slug            string
	Name            string
	URL             string
	ShoppingListURL string
	RSSURL          string
	FacebookPage    string
	SourceKind      string
	IsClosed        bool
	LatestNeedID    *uuid.UUID
	LastCrawl       *time.Time
	LastNeedCheck   *time.Time
	CreatedAt       time.Time
}

// Need is one observed shopping list for a foodbank. Immutable after
// creation apart from the published and nonpertinent flags.
type Need struct {
	ID           uuid.UUID
	FoodbankID   *uuid.UUID
	NeedText     string
	ExcessText   string
	InputMethod  string
	Published    bool
	Nonpertinent bool
	CreatedAt    time.Time
}

// Discrepancy records an outright fetch failure. Append-only.
type Discrepancy struct {
	ID         int64
	FoodbankID uuid.UUID
	Kind       string
	Text       string
	URL        string
	CreatedAt  time.Time
}

// CrawlSet groups the CrawlItems of one batch run.
type CrawlSet struct {
	ID         int64
	CrawlType  string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// CrawlItem is the audit record for one fetch attempt.
type CrawlItem struct {
	ID         int64
	FoodbankID uuid.UUID
	CrawlSetID *int64
	CrawlType  string
	URL        string
	StartedAt  time.Time
	FinishedAt *time.Time
	NeedID     *uuid.UUID
}

// EmailSubscriber receives need notifications by email once confirmed.
// SubKey and UnsubKey are the opaque tokens carried in confirmation and
// one-click unsubscribe links.
type EmailSubscriber struct {
	ID         int64
	FoodbankID uuid.UUID
	Email      string
	Confirmed  bool
	SubKey     string
	UnsubKey   string
	CreatedAt  time.Time
}

// WhatsAppSubscriber receives need notifications as WhatsApp template
// messages.
type WhatsAppSubscriber struct {
	ID           int64
	FoodbankID   uuid.UUID
	PhoneNumber  string
	LastNotified *time.Time
	CreatedAt    time.Time
}

// WebPushSubscription is one browser push endpoint with its encryption
// keys. Deleted when the endpoint reports itself permanently gone.
type WebPushSubscription struct {
	ID         int64
	FoodbankID uuid.UUID
	Endpoint   string
	P256dh     string
	Auth       string
	BrowserTag string
	CreatedAt  time.Time
}

// Translation is the per-language rendering of a published need, keyed
// (need, language).
type Translation struct {
	ID         int64
	NeedID     uuid.UUID
	Language   string
	NeedText   string
	ExcessText string
	CreatedAt  time.Time
}

// Article is a post discovered by the article re-crawl follow-up job.
type Article struct {
	ID          int64
	FoodbankID  uuid.UUID
	Title       string
	URL         string
	PublishedAt *time.Time
	CreatedAt   time.Time
}

// Task statuses.
const (
	TaskPending = "pending"
	TaskRunning = "running"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

// Task is one queued unit of background work. Rows persist after
// execution for observability; business state never depends on them.
type Task struct {
	ID         int64
	Name       string
	Queue      string
	Priority   int
	Args       []string
	Status     string
	Attempts   int
	LastError  *string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}
