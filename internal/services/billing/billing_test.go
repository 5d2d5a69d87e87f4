package billing

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylab/subscription-sandbox/internal/cache"
	"github.com/paylab/subscription-sandbox/internal/checkout"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/relay"
	"github.com/paylab/subscription-sandbox/internal/store"
	"github.com/paylab/subscription-sandbox/internal/store/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc := New(log, st, checkout.NewSandbox(0), relay.NewStoreSink(st), cache.Nop{}, time.Minute)
	return svc, st
}

func identity(uid string) *models.Identity {
	return &models.Identity{UID: uid, Email: uid + "@example.com"}
}

func profileOf(t *testing.T, st *memory.Store, uid string) models.UserProfile {
	t.Helper()
	doc, err := st.Get(context.Background(), store.CollectionUsers, uid)
	require.NoError(t, err)
	var profile models.UserProfile
	require.NoError(t, store.Decode(doc, &profile))
	return profile
}

func TestStartSubscription(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	sessionID, plan, err := svc.StartSubscription(ctx, identity("u1"), "price_basic")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sessionID, "cs_test_"))
	assert.Equal(t, "Basic", plan.Name)

	// Запись подписки ключуется идентификатором пользователя.
	doc, err := st.Get(ctx, store.CollectionSubscriptions, "u1")
	require.NoError(t, err)
	var record models.SubscriptionRecord
	require.NoError(t, store.Decode(doc, &record))
	assert.Equal(t, models.StatusActive, record.Status)
	assert.Equal(t, float64(9), record.Amount)
	assert.Equal(t, "usd", record.Currency)
	require.NotNil(t, record.NextBillingDate)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *record.NextBillingDate, time.Minute)

	// Проекция профиля обновлена.
	profile := profileOf(t, st, "u1")
	assert.Equal(t, models.StatusActive, profile.SubscriptionStatus)
	require.NotNil(t, profile.SubscriptionPlan)
	assert.Equal(t, "Basic", *profile.SubscriptionPlan)

	// Синтезирован вебхук о создании подписки.
	events, err := st.Documents(ctx, store.NewQuery(store.CollectionWebhookEvents).Where("userId", "u1"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "customer.subscription.created", events[0].Data["type"])
	assert.Equal(t, "New subscription created for Basic plan", events[0].Data["description"])
}

func TestStartSubscription_UnknownPlan(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.StartSubscription(context.Background(), identity("u1"), "price_bogus")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestStartSubscription_SingleActiveRecord(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	_, _, err := svc.StartSubscription(ctx, identity("u1"), "price_basic")
	require.NoError(t, err)
	_, _, err = svc.StartSubscription(ctx, identity("u1"), "price_enterprise")
	require.NoError(t, err)

	docs, err := st.Documents(ctx, store.NewQuery(store.CollectionSubscriptions).Where("userId", "u1"))
	require.NoError(t, err)
	require.Len(t, docs, 1, "повторная подписка замещает запись, а не добавляет вторую")
	assert.Equal(t, "Enterprise", docs[0].Data["planName"])
}

func TestSimulatePlanChange_TouchesOnlyProfile(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	_, _, err := svc.StartSubscription(ctx, identity("u1"), "price_basic")
	require.NoError(t, err)

	require.NoError(t, svc.SimulatePlanChange(ctx, identity("u1")))

	profile := profileOf(t, st, "u1")
	require.NotNil(t, profile.SubscriptionPlan)
	assert.Equal(t, "Pro", *profile.SubscriptionPlan)
	assert.Equal(t, float64(19), profile.SubscriptionAmount)

	// Запись подписки не изменилась: расхождение проекции ожидаемо.
	doc, err := st.Get(ctx, store.CollectionSubscriptions, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Basic", doc["planName"])
}

func TestSimulatePlanChange_PreviousAttributesFromCurrentPlan(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	_, _, err := svc.StartSubscription(ctx, identity("u1"), "price_enterprise")
	require.NoError(t, err)

	require.NoError(t, svc.SimulatePlanChange(ctx, identity("u1")))

	events, err := st.Documents(ctx, store.NewQuery(store.CollectionWebhookEvents).
		Where("userId", "u1").OrderByDesc("timestamp"))
	require.NoError(t, err)
	require.NotEmpty(t, events)

	var updated store.Doc
	for _, ev := range events {
		if ev.Data["type"] == "customer.subscription.updated" {
			updated = ev
			break
		}
	}
	require.NotNil(t, updated.Data, "updated event not emitted")

	payload, ok := updated.Data["data"].(map[string]any)
	require.True(t, ok)
	previous, ok := payload["previous_attributes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Enterprise", previous["planName"])
}

func TestSimulateCancellation_TouchesOnlyProfile(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	_, _, err := svc.StartSubscription(ctx, identity("u1"), "price_pro")
	require.NoError(t, err)

	require.NoError(t, svc.SimulateCancellation(ctx, identity("u1")))

	profile := profileOf(t, st, "u1")
	assert.Equal(t, models.StatusCancelled, profile.SubscriptionStatus)
	assert.Nil(t, profile.SubscriptionPlan)

	// Запись подписки остается активной.
	doc, err := st.Get(ctx, store.CollectionSubscriptions, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, doc["status"])

	events, err := st.Documents(ctx, store.NewQuery(store.CollectionWebhookEvents).
		Where("userId", "u1").OrderByDesc("timestamp"))
	require.NoError(t, err)
	assert.Equal(t, "customer.subscription.deleted", events[0].Data["type"])
}

func TestCurrentSubscription(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	record, err := svc.CurrentSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, record)

	_, _, err = svc.StartSubscription(ctx, identity("u1"), "price_pro")
	require.NoError(t, err)

	record, err = svc.CurrentSubscription(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "Pro", *record.PlanName)
}

func TestOpenManagement(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	opts, err := svc.OpenManagement(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, opts.Subscription)
	assert.Contains(t, opts.Actions, "Cancel subscription")
}

func TestSimulateWebhook_DefaultDescriptions(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		eventType string
		payload   map[string]any
		want      string
	}{
		{"успешный платеж", "invoice.payment_succeeded", map[string]any{"amount": 19}, "Payment of $19 succeeded"},
		{"неуспешный платеж", "invoice.payment_failed", map[string]any{"amount": 19}, "Payment of $19 failed"},
		{"неизвестный тип", "custom.event", nil, "Webhook event: custom.event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, svc.SimulateWebhook(ctx, identity("u9"), tt.eventType, "", tt.payload))
		})
	}

	events, err := st.Documents(ctx, store.NewQuery(store.CollectionWebhookEvents).Where("userId", "u9"))
	require.NoError(t, err)
	got := make(map[string]string, len(events))
	for _, e := range events {
		got[e.Data["type"].(string)] = e.Data["description"].(string)
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, got[tt.eventType])
	}
}

// mapCache кеш планов в памяти для тестов пути чтения.
type mapCache struct {
	m map[string]models.Plan
}

func newMapCache() *mapCache {
	return &mapCache{m: make(map[string]models.Plan)}
}

func (c *mapCache) Get(key string, result any) (bool, error) {
	plan, ok := c.m[key]
	if !ok {
		return false, nil
	}
	*(result.(*models.Plan)) = plan
	return true, nil
}

func (c *mapCache) Set(key string, value any, _ time.Duration) error {
	c.m[key] = value.(models.Plan)
	return nil
}

func (c *mapCache) Invalidate(key string) error {
	delete(c.m, key)
	return nil
}

func TestLoadCurrentPlan(t *testing.T) {
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	planCache := newMapCache()
	svc := New(log, st, checkout.NewSandbox(0), relay.NewStoreSink(st), planCache, time.Minute)
	ctx := context.Background()

	// Нет подписки — нет плана.
	plan, err := svc.LoadCurrentPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, plan)

	_, _, err = svc.StartSubscription(ctx, identity("u1"), "price_pro")
	require.NoError(t, err)

	// Подписка прогрела кеш.
	assert.Contains(t, planCache.m, "plan:u1")

	// Холодный кеш заполняется из хранилища.
	require.NoError(t, planCache.Invalidate("plan:u1"))
	plan, err = svc.LoadCurrentPlan(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "Pro", plan.Name)
	assert.Contains(t, planCache.m, "plan:u1")

	// Попадание в кеш не требует хранилища.
	require.NoError(t, st.Delete(ctx, store.CollectionSubscriptions, "u1"))
	plan, err = svc.LoadCurrentPlan(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "Pro", plan.Name)
}

func TestStartSubscription_SessionClosedMidFlight(t *testing.T) {
	svc, st := newService(t)

	// Сессия закрывается, пока идет создание сессии оплаты: ни запись
	// подписки, ни проекция профиля, ни вебхук не должны появиться.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.StartSubscription(ctx, identity("u1"), "price_basic")
	require.Error(t, err)

	_, err = st.Get(context.Background(), store.CollectionSubscriptions, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Get(context.Background(), store.CollectionUsers, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	events, err := st.Documents(context.Background(), store.NewQuery(store.CollectionWebhookEvents).Where("userId", "u1"))
	require.NoError(t, err)
	assert.Empty(t, events)
}
