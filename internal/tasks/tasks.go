// Package tasks is the postgres-backed background work queue. Enqueue
// is a single row insert; workers claim rows by priority with
// SKIP LOCKED, so delivery is at-least-once and handlers must tolerate
// re-runs.
package tasks

import "context"

// Queue lanes. Lanes keep slow channels from starving each other; a
// worker subscribes to one or more lanes.
const (
	QueueDefault   = "default"
	QueueEmail     = "email"
	QueueDecache   = "decache"
	QueueTranslate = "translate"
)

// Task names.
const (
	NameTopicNotification    = "topic_notification"
	NameWebPushNotification  = "webpush_notification"
	NameWhatsAppNotification = "whatsapp_notification"
	NameEmailNotification    = "email_notification"
	NameTranslateNeed        = "translate_need"
	NameDecacheFoodbank      = "decache_foodbank"
	NameArticleCrawl         = "article_crawl"
)

// Priorities. Higher runs first within a lane.
const (
	PriorityNotification = 10
	PriorityDecache      = 20
	PriorityArticleCrawl = 30
)

// Task is one unit of queued work.
type Task struct {
	Name     string
	Queue    string
	Priority int
	Args     []string
}

// Dispatcher enqueues tasks for later execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// AllQueues returns every lane, for workers that drain the whole
// queue.
func AllQueues() []string {
	return []string{QueueDefault, QueueEmail, QueueDecache, QueueTranslate}
}
