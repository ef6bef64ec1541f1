package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/db"
	"github.com/givefood/needwatch/internal/tasks"
)

// NeedTasks returns the fan-out for one published need: a translation
// per target language, the four notification channels and a cache
// purge. Pure; enqueueing is the caller's job.
func NeedTasks(needID uuid.UUID, foodbankSlug string, languages []string) []tasks.Task {
	out := make([]tasks.Task, 0, len(languages)+5)

	for _, lang := range languages {
		out = append(out, tasks.Task{
			Name:  tasks.NameTranslateNeed,
			Queue: tasks.QueueTranslate,
			Args:  []string{needID.String(), lang},
		})
	}

	needArg := []string{needID.String()}
	out = append(out,
		tasks.Task{Name: tasks.NameTopicNotification, Queue: tasks.QueueDefault, Priority: tasks.PriorityNotification, Args: needArg},
		tasks.Task{Name: tasks.NameWebPushNotification, Queue: tasks.QueueDefault, Priority: tasks.PriorityNotification, Args: needArg},
		tasks.Task{Name: tasks.NameWhatsAppNotification, Queue: tasks.QueueDefault, Priority: tasks.PriorityNotification, Args: needArg},
		tasks.Task{Name: tasks.NameEmailNotification, Queue: tasks.QueueEmail, Priority: tasks.PriorityNotification, Args: needArg},
		tasks.Task{Name: tasks.NameDecacheFoodbank, Queue: tasks.QueueDecache, Priority: tasks.PriorityDecache, Args: []string{foodbankSlug}},
	)
	return out
}

// publishStore is the slice of the database layer the publisher needs
// for flip handling.
type publishStore interface {
	GetNeedByID(ctx context.Context, id uuid.UUID) (*db.Need, error)
	GetFoodbankByID(ctx context.Context, id uuid.UUID) (*db.Foodbank, error)
	SetNeedPublished(ctx context.Context, id uuid.UUID, published bool) error
}

// Publisher owns the publish fan-out. The fan-out fires when a need is
// created already published, and when an unpublished need flips to
// published; re-saving an already published need stays quiet.
type Publisher struct {
	dispatcher tasks.Dispatcher
	languages  []string
	logger     *zap.Logger
}

// NewPublisher creates a publisher fanning out to the given target
// languages.
func NewPublisher(dispatcher tasks.Dispatcher, languages []string, logger *zap.Logger) *Publisher {
	return &Publisher{dispatcher: dispatcher, languages: languages, logger: logger}
}

// Publish enqueues the whole fan-out for a published need.
func (p *Publisher) Publish(ctx context.Context, need *db.Need, foodbank *db.Foodbank) error {
	if !need.Published {
		return fmt.Errorf("need %s is not published", need.ID)
	}

	for _, task := range NeedTasks(need.ID, foodbank.Slug, p.languages) {
		if err := p.dispatcher.Dispatch(ctx, task); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", task.Name, err)
		}
	}
	p.logger.Info("fanned out need",
		zap.String("need_id", need.ID.String()),
		zap.String("foodbank", foodbank.Slug),
		zap.Int("languages", len(p.languages)))
	return nil
}

// SetPublished updates a need's published flag. Only the unpublished
// to published transition triggers the fan-out; unpublishing and
// republishing an already live need do not.
func (p *Publisher) SetPublished(ctx context.Context, store publishStore, needID uuid.UUID, published bool) error {
	need, err := store.GetNeedByID(ctx, needID)
	if err != nil {
		return err
	}
	if need == nil {
		return fmt.Errorf("no need with id %s", needID)
	}

	flipped := published && !need.Published
	if err := store.SetNeedPublished(ctx, needID, published); err != nil {
		return err
	}
	if !flipped {
		return nil
	}

	need.Published = true
	if need.FoodbankID == nil {
		return fmt.Errorf("need %s has no foodbank", needID)
	}
	foodbank, err := store.GetFoodbankByID(ctx, *need.FoodbankID)
	if err != nil {
		return err
	}
	if foodbank == nil {
		return fmt.Errorf("no foodbank with id %s", need.FoodbankID)
	}
	return p.Publish(ctx, need, foodbank)
}
