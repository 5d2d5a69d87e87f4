package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylab/subscription-sandbox/internal/store"
)

// collector потокобезопасно накапливает изменения, доставленные подпиской.
type collector struct {
	mu      sync.Mutex
	batches [][]store.Change
}

func (c *collector) onChange(changes []store.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, changes)
}

func (c *collector) flat() []store.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []store.Change
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *collector) waitFor(t *testing.T, n int) []store.Change {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.flat(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d changes, got %d", n, len(c.flat()))
	return nil
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer func() { _ = s.Close() }()

	id, err := s.Add(ctx, store.CollectionTest, store.Document{"message": "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.Get(ctx, store.CollectionTest, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc["message"])

	err = s.Update(ctx, store.CollectionTest, id, store.Document{"extra": "field"})
	require.NoError(t, err)

	doc, err = s.Get(ctx, store.CollectionTest, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc["message"])
	assert.Equal(t, "field", doc["extra"])

	err = s.Delete(ctx, store.CollectionTest, id)
	require.NoError(t, err)

	_, err = s.Get(ctx, store.CollectionTest, id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// повторное удаление не ошибка
	assert.NoError(t, s.Delete(ctx, store.CollectionTest, id))
}

func TestStore_SetMerge(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer func() { _ = s.Close() }()

	err := s.Set(ctx, store.CollectionUsers, "u1", store.Document{"email": "a@b.c", "plan": "Basic"}, false)
	require.NoError(t, err)

	err = s.Set(ctx, store.CollectionUsers, "u1", store.Document{"plan": "Pro"}, true)
	require.NoError(t, err)

	doc, err := s.Get(ctx, store.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", doc["email"])
	assert.Equal(t, "Pro", doc["plan"])

	// без merge документ перезаписывается целиком
	err = s.Set(ctx, store.CollectionUsers, "u1", store.Document{"plan": "Enterprise"}, false)
	require.NoError(t, err)
	doc, err = s.Get(ctx, store.CollectionUsers, "u1")
	require.NoError(t, err)
	_, hasEmail := doc["email"]
	assert.False(t, hasEmail)
}

func TestStore_Update_NotFound(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()

	err := s.Update(context.Background(), store.CollectionUsers, "absent", store.Document{"x": 1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Documents_FilterOrderLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer func() { _ = s.Close() }()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := range 15 {
		owner := "u1"
		if i%3 == 0 {
			owner = "u2"
		}
		_, err := s.Add(ctx, store.CollectionRealtimeUpdates, store.Document{
			"userId":    owner,
			"message":   "update",
			"timestamp": base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano),
		})
		require.NoError(t, err)
	}

	q := store.NewQuery(store.CollectionRealtimeUpdates).
		Where("userId", "u1").
		OrderByDesc("timestamp").
		Limit(10)

	docs, err := s.Documents(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 10)

	for _, d := range docs {
		assert.Equal(t, "u1", d.Data["userId"])
	}
	// от новых к старым
	for i := 1; i < len(docs); i++ {
		prev := docs[i-1].Data["timestamp"].(string)
		cur := docs[i].Data["timestamp"].(string)
		assert.GreaterOrEqual(t, prev, cur)
	}
}

func TestStore_Watch_InitialSnapshotAsAdded(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer func() { _ = s.Close() }()

	_, err := s.Add(ctx, store.CollectionWebhookEvents, store.Document{"userId": "u1", "type": "a"})
	require.NoError(t, err)
	_, err = s.Add(ctx, store.CollectionWebhookEvents, store.Document{"userId": "u1", "type": "b"})
	require.NoError(t, err)

	col := &collector{}
	h, err := s.Watch(ctx, store.NewQuery(store.CollectionWebhookEvents).Where("userId", "u1"), col.onChange)
	require.NoError(t, err)
	defer h.Cancel()

	got := col.waitFor(t, 2)
	for _, ch := range got {
		assert.Equal(t, store.ChangeAdded, ch.Kind)
	}
}

func TestStore_Watch_AddModifyRemove(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer func() { _ = s.Close() }()

	col := &collector{}
	h, err := s.Watch(ctx, store.NewQuery(store.CollectionSubscriptions).Where("userId", "u1"), col.onChange)
	require.NoError(t, err)
	defer h.Cancel()

	err = s.Set(ctx, store.CollectionSubscriptions, "sub-u1", store.Document{"userId": "u1", "status": "active"}, false)
	require.NoError(t, err)
	got := col.waitFor(t, 1)
	assert.Equal(t, store.ChangeAdded, got[0].Kind)

	err = s.Set(ctx, store.CollectionSubscriptions, "sub-u1", store.Document{"status": "past_due"}, true)
	require.NoError(t, err)
	got = col.waitFor(t, 2)
	assert.Equal(t, store.ChangeModified, got[1].Kind)
	assert.Equal(t, "past_due", got[1].Doc.Data["status"])

	err = s.Delete(ctx, store.CollectionSubscriptions, "sub-u1")
	require.NoError(t, err)
	got = col.waitFor(t, 3)
	assert.Equal(t, store.ChangeRemoved, got[2].Kind)
}

func TestStore_Watch_FilterIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer func() { _ = s.Close() }()

	col := &collector{}
	h, err := s.Watch(ctx, store.NewQuery(store.CollectionWebhookEvents).Where("userId", "u1"), col.onChange)
	require.NoError(t, err)
	defer h.Cancel()

	_, err = s.Add(ctx, store.CollectionWebhookEvents, store.Document{"userId": "u2", "type": "foreign"})
	require.NoError(t, err)
	_, err = s.Add(ctx, store.CollectionWebhookEvents, store.Document{"userId": "u1", "type": "own"})
	require.NoError(t, err)

	got := col.waitFor(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "own", got[0].Doc.Data["type"])
}

func TestStore_Watch_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := New()

	col := &collector{}
	h, err := s.Watch(ctx, store.NewQuery(store.CollectionWebhookEvents).Where("userId", "u1"), col.onChange)
	require.NoError(t, err)

	h.Cancel()
	// Cancel идемпотентен
	h.Cancel()

	_, err = s.Add(ctx, store.CollectionWebhookEvents, store.Document{"userId": "u1", "type": "late"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, col.flat())
	require.NoError(t, s.Close())
}
