package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/db"
	"github.com/givefood/needwatch/internal/detect"
	"github.com/givefood/needwatch/internal/extract"
	"github.com/givefood/needwatch/internal/fetch"
	"github.com/givefood/needwatch/internal/metrics"
	"github.com/givefood/needwatch/internal/tasks"
)

type fakeStore struct {
	foodbanks     map[string]*db.Foodbank
	lastPublished *db.Need
	rejected      []*db.Need

	createdNeeds    []*db.Need
	discrepancies   []string
	crawlItems      []*db.CrawlItem
	finishedItems   map[int64]*uuid.UUID
	nonpertinentIDs []uuid.UUID
	latestNeed      map[uuid.UUID]uuid.UUID
	needCheckStamps []uuid.UUID
	crawlStamps     []uuid.UUID
	crawlSets       []int64
	finishedSets    []int64
	articles        []*db.Article
	translations    map[string]string
	publishedFlags  map[uuid.UUID]bool
	nextItemID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		foodbanks:      make(map[string]*db.Foodbank),
		finishedItems:  make(map[int64]*uuid.UUID),
		latestNeed:     make(map[uuid.UUID]uuid.UUID),
		translations:   make(map[string]string),
		publishedFlags: make(map[uuid.UUID]bool),
	}
}

func (s *fakeStore) GetFoodbankBySlug(_ context.Context, slug string) (*db.Foodbank, error) {
	return s.foodbanks[slug], nil
}

func (s *fakeStore) GetFoodbankByID(_ context.Context, id uuid.UUID) (*db.Foodbank, error) {
	for _, fb := range s.foodbanks {
		if fb.ID == id {
			return fb, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListOpenFoodbanks(_ context.Context) ([]*db.Foodbank, error) {
	var out []*db.Foodbank
	for _, fb := range s.foodbanks {
		if !fb.IsClosed {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (s *fakeStore) TouchLastNeedCheck(_ context.Context, id uuid.UUID) error {
	s.needCheckStamps = append(s.needCheckStamps, id)
	return nil
}

func (s *fakeStore) TouchLastCrawl(_ context.Context, id uuid.UUID) error {
	s.crawlStamps = append(s.crawlStamps, id)
	return nil
}

func (s *fakeStore) SetLatestNeed(_ context.Context, foodbankID, needID uuid.UUID) error {
	s.latestNeed[foodbankID] = needID
	return nil
}

func (s *fakeStore) CreateNeed(_ context.Context, n *db.Need) (*db.Need, error) {
	n.ID = uuid.New()
	s.createdNeeds = append(s.createdNeeds, n)
	return n, nil
}

func (s *fakeStore) GetNeedByID(_ context.Context, id uuid.UUID) (*db.Need, error) {
	if s.lastPublished != nil && s.lastPublished.ID == id {
		return s.lastPublished, nil
	}
	for _, n := range s.createdNeeds {
		if n.ID == id {
			return n, nil
		}
	}
	for _, n := range s.rejected {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LastPublishedNeed(_ context.Context, _ uuid.UUID) (*db.Need, error) {
	return s.lastPublished, nil
}

func (s *fakeStore) RecentNonpublishedNeeds(_ context.Context, _ uuid.UUID, limit int) ([]*db.Need, error) {
	if len(s.rejected) > limit {
		return s.rejected[:limit], nil
	}
	return s.rejected, nil
}

func (s *fakeStore) MarkNeedsNonpertinent(_ context.Context, ids []uuid.UUID) error {
	s.nonpertinentIDs = append(s.nonpertinentIDs, ids...)
	return nil
}

func (s *fakeStore) SetNeedPublished(_ context.Context, id uuid.UUID, published bool) error {
	s.publishedFlags[id] = published
	return nil
}

func (s *fakeStore) CreateCrawlSet(_ context.Context, _ string) (*db.CrawlSet, error) {
	id := int64(len(s.crawlSets) + 1)
	s.crawlSets = append(s.crawlSets, id)
	return &db.CrawlSet{ID: id}, nil
}

func (s *fakeStore) FinishCrawlSet(_ context.Context, id int64) error {
	s.finishedSets = append(s.finishedSets, id)
	return nil
}

func (s *fakeStore) CreateCrawlItem(_ context.Context, foodbankID uuid.UUID, crawlSetID *int64, crawlType, url string) (*db.CrawlItem, error) {
	s.nextItemID++
	item := &db.CrawlItem{ID: s.nextItemID, FoodbankID: foodbankID, CrawlSetID: crawlSetID, CrawlType: crawlType, URL: url}
	s.crawlItems = append(s.crawlItems, item)
	return item, nil
}

func (s *fakeStore) FinishCrawlItem(_ context.Context, id int64, needID *uuid.UUID) error {
	s.finishedItems[id] = needID
	return nil
}

func (s *fakeStore) CreateDiscrepancy(_ context.Context, _ uuid.UUID, kind, text, _ string) error {
	s.discrepancies = append(s.discrepancies, kind+": "+text)
	return nil
}

func (s *fakeStore) UpsertArticle(_ context.Context, a *db.Article) error {
	s.articles = append(s.articles, a)
	return nil
}

func (s *fakeStore) UpsertTranslation(_ context.Context, needID uuid.UUID, language, needText, _ string) error {
	s.translations[needID.String()+"/"+language] = needText
	return nil
}

type fakeFetcher struct {
	result *fetch.Result
	err    error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ fetch.SourceKind, _ fetch.Source) (*fetch.Result, error) {
	return f.result, f.err
}

type fakeExtractor struct {
	lists *extract.ItemLists
	err   error
}

func (e *fakeExtractor) Extract(_ context.Context, _ extract.Request) (*extract.ItemLists, error) {
	return e.lists, e.err
}

type fakeDispatcher struct {
	dispatched []tasks.Task
}

func (d *fakeDispatcher) Dispatch(_ context.Context, task tasks.Task) error {
	d.dispatched = append(d.dispatched, task)
	return nil
}

func (d *fakeDispatcher) names() []string {
	out := make([]string, 0, len(d.dispatched))
	for _, task := range d.dispatched {
		out = append(out, task.Name)
	}
	return out
}

func sidValley() *db.Foodbank {
	return &db.Foodbank{
		ID:              uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Slug:            "sid-valley",
		Name:            "Sid Valley",
		ShoppingListURL: "https://sidvalleyfoodbank.org.uk/shopping-list/",
	}
}

func newTestChecker(store *fakeStore, fetcher Fetcher, extractor extract.Extractor, dispatcher tasks.Dispatcher) *Checker {
	collector := metrics.NewCollector(prometheus.NewRegistry())
	publisher := NewPublisher(dispatcher, []string{"pt", "es", "ar"}, zap.NewNop())
	return NewChecker(store, fetcher, extractor, publisher, collector, zap.NewNop())
}

func TestCheck_NoChange(t *testing.T) {
	store := newFakeStore()
	fb := sidValley()
	store.foodbanks[fb.Slug] = fb
	store.lastPublished = &db.Need{ID: uuid.New(), NeedText: "Pasta\nRice", Published: true}

	dispatcher := &fakeDispatcher{}
	checker := newTestChecker(store,
		&fakeFetcher{result: &fetch.Result{Text: "We need pasta and rice", HTML: "<p>...</p>"}},
		&fakeExtractor{lists: &extract.ItemLists{NeedText: "Pasta\nRice"}},
		dispatcher)

	result, err := checker.Check(context.Background(), fb, nil)
	require.NoError(t, err)

	assert.Equal(t, detect.NoChange, result.Outcome.Kind)
	assert.Empty(t, store.createdNeeds)
	assert.Empty(t, dispatcher.dispatched)
	assert.Equal(t, []uuid.UUID{fb.ID}, store.needCheckStamps)
	require.Len(t, store.crawlItems, 1)
	assert.Nil(t, store.finishedItems[store.crawlItems[0].ID])
}

func TestCheck_ChangeCreatesPublishedNeedAndFansOut(t *testing.T) {
	store := newFakeStore()
	fb := sidValley()
	store.foodbanks[fb.Slug] = fb
	store.lastPublished = &db.Need{ID: uuid.New(), NeedText: "Pasta\nRice", Published: true}

	dispatcher := &fakeDispatcher{}
	checker := newTestChecker(store,
		&fakeFetcher{result: &fetch.Result{Text: "pasta rice beans"}},
		&fakeExtractor{lists: &extract.ItemLists{NeedText: "Pasta\nRice\nBeans"}},
		dispatcher)

	result, err := checker.Check(context.Background(), fb, nil)
	require.NoError(t, err)

	assert.Equal(t, detect.Change, result.Outcome.Kind)
	assert.Equal(t, []string{detect.ReasonNeedChange}, result.Outcome.Reasons)

	require.Len(t, store.createdNeeds, 1)
	need := store.createdNeeds[0]
	assert.True(t, need.Published)
	assert.Equal(t, "ai", need.InputMethod)
	assert.Equal(t, "Pasta\nRice\nBeans", need.NeedText)
	assert.Equal(t, need.ID, store.latestNeed[fb.ID])

	// Crawl item points at the need it produced.
	require.Len(t, store.crawlItems, 1)
	require.NotNil(t, store.finishedItems[store.crawlItems[0].ID])
	assert.Equal(t, need.ID, *store.finishedItems[store.crawlItems[0].ID])

	// 3 translations + 4 channels + 1 decache.
	assert.Len(t, dispatcher.dispatched, 8)
	assert.Contains(t, dispatcher.names(), tasks.NameTranslateNeed)
	assert.Contains(t, dispatcher.names(), tasks.NameTopicNotification)
	assert.Contains(t, dispatcher.names(), tasks.NameWebPushNotification)
	assert.Contains(t, dispatcher.names(), tasks.NameWhatsAppNotification)
	assert.Contains(t, dispatcher.names(), tasks.NameEmailNotification)
	assert.Contains(t, dispatcher.names(), tasks.NameDecacheFoodbank)
}

func TestCheck_FirstNeed(t *testing.T) {
	store := newFakeStore()
	fb := sidValley()
	store.foodbanks[fb.Slug] = fb

	dispatcher := &fakeDispatcher{}
	checker := newTestChecker(store,
		&fakeFetcher{result: &fetch.Result{Text: "soup"}},
		&fakeExtractor{lists: &extract.ItemLists{NeedText: "Soup"}},
		dispatcher)

	result, err := checker.Check(context.Background(), fb, nil)
	require.NoError(t, err)

	assert.Equal(t, detect.Change, result.Outcome.Kind)
	assert.Equal(t, []string{detect.ReasonFirstNeed}, result.Outcome.Reasons)
	require.Len(t, store.createdNeeds, 1)
}

func TestCheck_NonpertinentRepeat(t *testing.T) {
	store := newFakeStore()
	fb := sidValley()
	store.foodbanks[fb.Slug] = fb
	store.lastPublished = &db.Need{ID: uuid.New(), NeedText: "Pasta", Published: true}
	rejectedID := uuid.New()
	store.rejected = []*db.Need{{ID: rejectedID, NeedText: "Pasta\nRice"}}

	dispatcher := &fakeDispatcher{}
	checker := newTestChecker(store,
		&fakeFetcher{result: &fetch.Result{Text: "pasta rice"}},
		&fakeExtractor{lists: &extract.ItemLists{NeedText: "Pasta\nRice"}},
		dispatcher)

	result, err := checker.Check(context.Background(), fb, nil)
	require.NoError(t, err)

	assert.Equal(t, detect.Nonpertinent, result.Outcome.Kind)
	assert.Equal(t, []uuid.UUID{rejectedID}, store.nonpertinentIDs)
	assert.Empty(t, store.createdNeeds)
	assert.Empty(t, dispatcher.dispatched)
	assert.Equal(t, []uuid.UUID{fb.ID}, store.needCheckStamps)
}

func TestCheck_FetchFailureRecordsDiscrepancy(t *testing.T) {
	store := newFakeStore()
	fb := sidValley()
	store.foodbanks[fb.Slug] = fb

	dispatcher := &fakeDispatcher{}
	fetchErr := &fetch.Error{URL: fb.ShoppingListURL, Kind: fetch.ErrTimeout, Message: "deadline exceeded"}
	checker := newTestChecker(store,
		&fakeFetcher{err: fetchErr},
		&fakeExtractor{},
		dispatcher)

	result, err := checker.Check(context.Background(), fb, nil)
	require.NoError(t, err)

	assert.Equal(t, fetchErr, result.FetchErr)
	require.Len(t, store.discrepancies, 1)
	assert.Contains(t, store.discrepancies[0], "website: ")
	assert.Equal(t, []uuid.UUID{fb.ID}, store.needCheckStamps)
	require.Len(t, store.crawlItems, 1)
	_, finished := store.finishedItems[store.crawlItems[0].ID]
	assert.True(t, finished)
	assert.Empty(t, store.createdNeeds)
	assert.Empty(t, dispatcher.dispatched)
}

func TestCheck_ExtractionFailureReadsAsEmpty(t *testing.T) {
	store := newFakeStore()
	fb := sidValley()
	store.foodbanks[fb.Slug] = fb

	dispatcher := &fakeDispatcher{}
	checker := newTestChecker(store,
		&fakeFetcher{result: &fetch.Result{Text: "whatever"}},
		&fakeExtractor{err: errors.New("model unavailable")},
		dispatcher)

	result, err := checker.Check(context.Background(), fb, nil)
	require.NoError(t, err)

	// Empty candidate with no published history is a no-op.
	assert.Equal(t, detect.NoChange, result.Outcome.Kind)
	assert.Empty(t, store.createdNeeds)
	assert.Equal(t, []uuid.UUID{fb.ID}, store.needCheckStamps)
}

func TestCheckBySlug_UnknownFoodbank(t *testing.T) {
	checker := newTestChecker(newFakeStore(), &fakeFetcher{}, &fakeExtractor{}, &fakeDispatcher{})

	_, err := checker.CheckBySlug(context.Background(), "nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nowhere")
}

func TestCrawlAll(t *testing.T) {
	store := newFakeStore()
	fb := sidValley()
	store.foodbanks[fb.Slug] = fb
	closed := &db.Foodbank{ID: uuid.New(), Slug: "closed-bank", IsClosed: true}
	store.foodbanks[closed.Slug] = closed

	dispatcher := &fakeDispatcher{}
	checker := newTestChecker(store,
		&fakeFetcher{result: &fetch.Result{Text: "soup"}},
		&fakeExtractor{lists: &extract.ItemLists{NeedText: "Soup"}},
		dispatcher)

	summary, err := checker.CrawlAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Changed)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, []int64{summary.CrawlSetID}, store.finishedSets)
	// The crawl item is attributed to the batch.
	require.Len(t, store.crawlItems, 1)
	require.NotNil(t, store.crawlItems[0].CrawlSetID)
	assert.Equal(t, summary.CrawlSetID, *store.crawlItems[0].CrawlSetID)
}
