package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/disaster-risk-service/internal/domain"
	"github.com/couchcryptid/disaster-risk-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for store tests ---

type countingLister struct {
	mu     sync.Mutex
	calls  int
	models []domain.ModelDescriptor
}

func (m *countingLister) ListModels(_ context.Context) []domain.ModelDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	out := make([]domain.ModelDescriptor, len(m.models))
	copy(out, m.models)
	return out
}

func testLister() *countingLister {
	return &countingLister{models: []domain.ModelDescriptor{
		{Name: "xgboost_v1", Description: "XGBoost Model"},
		{Name: "random_forest_v2", Description: "Random Forest Model"},
	}}
}

// --- Store tests ---

func TestStore_ModelsFetchedOncePerSession(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2025, 3, 6, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	store := NewStore(10, observability.NewMetricsForTesting())
	lister := testLister()

	st := store.Models(context.Background(), "", lister)
	_, err := uuid.Parse(st.ID)
	require.NoError(t, err, "new sessions get a UUID")
	assert.Equal(t, "xgboost_v1", st.Selected)
	assert.Equal(t, fake.Now(), st.CreatedAt)

	again := store.Models(context.Background(), st.ID, lister)
	assert.Equal(t, st, again)
	assert.Equal(t, 1, lister.calls, "should only call lister once")
}

func TestStore_UnknownIDGetsServerMintedID(t *testing.T) {
	store := NewStore(10, observability.NewMetricsForTesting())
	st := store.Models(context.Background(), "client-chosen", testLister())

	assert.NotEqual(t, "client-chosen", st.ID, "client-supplied IDs are never adopted")
	_, err := uuid.Parse(st.ID)
	require.NoError(t, err)

	_, ok := store.Get("client-chosen")
	assert.False(t, ok)
	got, ok := store.Get(st.ID)
	require.True(t, ok)
	assert.Len(t, got.Models, 2)
}

func TestStore_CheckModel(t *testing.T) {
	store := NewStore(10, observability.NewMetricsForTesting())
	st := store.Models(context.Background(), "", testLister())

	assert.NoError(t, store.CheckModel(st.ID, "random_forest_v2"))
	assert.ErrorIs(t, store.CheckModel(st.ID, "xgboost_v9"), ErrUnknownModel)
	assert.NoError(t, store.CheckModel("", "anything"), "no session, nothing to check")
	assert.NoError(t, store.CheckModel("missing", "anything"))
}

func TestStore_Select(t *testing.T) {
	store := NewStore(10, observability.NewMetricsForTesting())
	st := store.Models(context.Background(), "", testLister())

	updated, err := store.Select(st.ID, "random_forest_v2")
	require.NoError(t, err)
	assert.Equal(t, "random_forest_v2", updated.Selected)
	assert.Equal(t, "random_forest_v2", store.Selected(st.ID))

	_, err = store.Select(st.ID, "svm")
	require.ErrorIs(t, err, ErrUnknownModel)
	assert.Equal(t, "random_forest_v2", store.Selected(st.ID), "failed select keeps previous choice")

	_, err = store.Select("missing", "xgboost_v1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SelectedUnknownSession(t *testing.T) {
	store := NewStore(10, observability.NewMetricsForTesting())
	assert.Empty(t, store.Selected(""))
	assert.Empty(t, store.Selected("nope"))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store := NewStore(10, observability.NewMetricsForTesting())
	st := store.Models(context.Background(), "", testLister())

	st.Models[0].Name = "mutated"
	got, ok := store.Get(st.ID)
	require.True(t, ok)
	assert.Equal(t, "xgboost_v1", got.Models[0].Name)
}

func TestStore_CacheMetrics(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	store := NewStore(10, metrics)
	st := store.Models(context.Background(), "", testLister())

	store.Get(st.ID)
	store.Get("absent")

	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.SessionCache.WithLabelValues("hit")), 1.0)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionCache.WithLabelValues("miss")))
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(50, observability.NewMetricsForTesting())
	lister := testLister()
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = store.Models(context.Background(), "", lister).ID
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := ids[i%len(ids)]
			store.Models(context.Background(), id, lister)
			_, _ = store.Select(id, "random_forest_v2")
			store.Selected(id)
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, "random_forest_v2", store.Selected(id))
	}
	assert.Equal(t, 5, lister.calls, "existing sessions never refetch")
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache[State](3)

	c.put("a", State{ID: "a", Selected: "A"})
	c.put("b", State{ID: "b", Selected: "B"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", result.Selected)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[State](2)

	c.put("a", State{Selected: "A"})
	c.put("b", State{Selected: "B"})
	c.put("c", State{Selected: "C"}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", result.Selected)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache[State](2)

	c.put("a", State{Selected: "A"})
	c.put("b", State{Selected: "B"})

	c.get("a")
	c.put("c", State{Selected: "C"})

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache[State](2)

	c.put("a", State{Selected: "A1"})
	c.put("a", State{Selected: "A2"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result.Selected)
	assert.Equal(t, 1, c.len())
}

func TestLRUCache_MinimumCapacity(t *testing.T) {
	c := newLRUCache[State](0)
	c.put("a", State{})
	c.put("b", State{})
	assert.Equal(t, 1, c.len())
}
