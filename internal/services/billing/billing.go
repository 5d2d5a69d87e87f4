// Package billing реализует симуляцию биллинга: запуск подписки через
// сессию оплаты, управление подпиской и синтез вебхук-событий.
//
// Запись подписки и денормализованная проекция на профиле живут отдельно.
// Симуляции смены плана и отмены трогают только проекцию — расхождение
// с записью подписки здесь ожидаемое свойство песочницы, а не дефект.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paylab/subscription-sandbox/internal/checkout"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/metrics"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/relay"
	"github.com/paylab/subscription-sandbox/internal/store"
)

// ErrUnknownPlan возвращается при подписке на несуществующий план.
var ErrUnknownPlan = errors.New("unknown plan")

const billingPeriod = 30 * 24 * time.Hour

// PlanCache кеш планов подписки по пользователям.
type PlanCache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service сервис симуляции биллинга.
type Service struct {
	log      *slog.Logger
	store    store.Store
	checkout checkout.Client
	events   relay.EventSink
	cache    PlanCache
	cacheTTL time.Duration

	plans []models.Plan
}

// New создает сервис биллинга со стандартной линейкой планов.
func New(log *slog.Logger, st store.Store, co checkout.Client, events relay.EventSink, cache PlanCache, cacheTTL time.Duration) *Service {
	return &Service{
		log:      log,
		store:    st,
		checkout: co,
		events:   events,
		cache:    cache,
		cacheTTL: cacheTTL,
		plans: []models.Plan{
			{PriceID: "price_basic", Name: "Basic", Amount: 9, Currency: "usd"},
			{PriceID: "price_pro", Name: "Pro", Amount: 19, Currency: "usd"},
			{PriceID: "price_enterprise", Name: "Enterprise", Amount: 49, Currency: "usd"},
		},
	}
}

// Plans возвращает линейку планов песочницы.
func (s *Service) Plans() []models.Plan {
	out := make([]models.Plan, len(s.plans))
	copy(out, s.plans)
	return out
}

// StartSubscription запускает подписку на план: создает сессию оплаты,
// фиксирует запись подписки, обновляет проекцию профиля и синтезирует
// вебхук о создании подписки. Возвращает идентификатор сессии оплаты.
func (s *Service) StartSubscription(ctx context.Context, identity *models.Identity, priceID string) (string, *models.Plan, error) {
	const op = "services.billing.StartSubscription"

	plan, ok := s.planByPrice(priceID)
	if !ok {
		return "", nil, fmt.Errorf("%s: %w", op, ErrUnknownPlan)
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, checkout.SessionRequest{
		PriceID:   plan.PriceID,
		UserID:    identity.UID,
		UserEmail: identity.Email,
		PlanName:  plan.Name,
	})
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	// Сессия оплаты — точка приостановки: сессия пользователя могла
	// закрыться, пока мы ждали. Записи не должны пережить ее.
	if err := ctx.Err(); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	next := now.Add(billingPeriod)
	record := models.SubscriptionRecord{
		UserID:          identity.UID,
		PlanName:        &plan.Name,
		PriceID:         plan.PriceID,
		Status:          models.StatusActive,
		Amount:          plan.Amount,
		Currency:        plan.Currency,
		CreatedAt:       now,
		NextBillingDate: &next,
	}
	doc, err := store.Encode(record)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	// Запись подписки ключуется идентификатором пользователя: у одной
	// идентичности не бывает двух активных записей.
	if err := s.store.Set(ctx, store.CollectionSubscriptions, identity.UID, doc, false); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.Set(ctx, store.CollectionUsers, identity.UID, store.Document{
		"subscriptionStatus": record.Status,
		"subscriptionPlan":   plan.Name,
		"subscriptionAmount": plan.Amount,
		"nextBillingDate":    next.Format(time.RFC3339Nano),
		"updatedAt":          now.Format(time.RFC3339Nano),
	}, true); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	s.emit(ctx, identity, "customer.subscription.created", map[string]any{
		"subscription": map[string]any{
			"planName": plan.Name,
			"status":   record.Status,
			"amount":   plan.Amount,
		},
		"customer": map[string]any{
			"email": identity.Email,
			"id":    identity.UID,
		},
	})
	s.cachePlan(identity.UID, plan)
	metrics.SimulatedEvents.WithLabelValues("subscription_started").Inc()

	s.log.Info("subscription started",
		slog.String("uid", identity.UID), slog.String("plan", plan.Name))
	return session.ID, &plan, nil
}

// LoadCurrentPlan возвращает план активной подписки пользователя: сначала
// из кеша, при промахе из хранилища с прогревом кеша. Возвращает nil без
// ошибки, когда активной подписки нет.
func (s *Service) LoadCurrentPlan(ctx context.Context, uid string) (*models.Plan, error) {
	const op = "services.billing.LoadCurrentPlan"

	var cached models.Plan
	ok, err := s.cache.Get(planCacheKey(uid), &cached)
	if err != nil {
		s.log.Warn("failed to read plan cache", sl.Err(err))
	}
	if ok {
		return &cached, nil
	}

	record, err := s.CurrentSubscription(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if record == nil || record.PlanName == nil {
		return nil, nil
	}
	for _, p := range s.plans {
		if p.Name == *record.PlanName {
			s.cachePlan(uid, p)
			return &p, nil
		}
	}
	return nil, nil
}

// CurrentSubscription возвращает активную запись подписки пользователя
// либо nil, если активной подписки нет.
func (s *Service) CurrentSubscription(ctx context.Context, uid string) (*models.SubscriptionRecord, error) {
	const op = "services.billing.CurrentSubscription"

	docs, err := s.store.Documents(ctx, store.NewQuery(store.CollectionSubscriptions).Where("userId", uid))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, d := range docs {
		var record models.SubscriptionRecord
		if err := store.Decode(d.Data, &record); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if record.Status == models.StatusActive {
			return &record, nil
		}
	}
	return nil, nil
}

// ManagementOptions действия, доступные в окне управления подпиской.
type ManagementOptions struct {
	Subscription *models.SubscriptionRecord `json:"subscription,omitempty"`
	Actions      []string                   `json:"actions"`
}

// OpenManagement возвращает состояние окна управления подпиской.
func (s *Service) OpenManagement(ctx context.Context, uid string) (*ManagementOptions, error) {
	const op = "services.billing.OpenManagement"

	record, err := s.CurrentSubscription(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &ManagementOptions{
		Subscription: record,
		Actions: []string{
			"Update payment methods",
			"Change subscription plans",
			"View billing history",
			"Cancel subscription",
			"Download invoices",
		},
	}, nil
}

// SimulatePlanChange переводит проекцию профиля на план Pro, не трогая
// запись подписки, и синтезирует вебхук об обновлении.
func (s *Service) SimulatePlanChange(ctx context.Context, identity *models.Identity) error {
	const op = "services.billing.SimulatePlanChange"

	previousName := ""
	if previous, err := s.LoadCurrentPlan(ctx, identity.UID); err == nil && previous != nil {
		previousName = previous.Name
	}

	pro, _ := s.planByPrice("price_pro")
	now := time.Now().UTC()
	if err := s.store.Set(ctx, store.CollectionUsers, identity.UID, store.Document{
		"subscriptionStatus": models.StatusActive,
		"subscriptionPlan":   pro.Name,
		"subscriptionAmount": pro.Amount,
		"updatedAt":          now.Format(time.RFC3339Nano),
	}, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.emit(ctx, identity, "customer.subscription.updated", map[string]any{
		"subscription": map[string]any{
			"planName": pro.Name,
			"status":   models.StatusActive,
			"amount":   pro.Amount,
		},
		"previous_attributes": map[string]any{"planName": previousName},
	})
	s.cachePlan(identity.UID, pro)
	metrics.SimulatedEvents.WithLabelValues("plan_change").Inc()
	return nil
}

// SimulateCancellation помечает проекцию профиля отмененной, не трогая
// запись подписки, и синтезирует вебхук об удалении.
func (s *Service) SimulateCancellation(ctx context.Context, identity *models.Identity) error {
	const op = "services.billing.SimulateCancellation"

	now := time.Now().UTC()
	if err := s.store.Set(ctx, store.CollectionUsers, identity.UID, store.Document{
		"subscriptionStatus": models.StatusCancelled,
		"subscriptionPlan":   nil,
		"updatedAt":          now.Format(time.RFC3339Nano),
	}, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.emit(ctx, identity, "customer.subscription.deleted", map[string]any{
		"subscription": map[string]any{
			"planName":    nil,
			"status":      models.StatusCancelled,
			"amount":      0,
			"cancelledAt": now.Format(time.RFC3339Nano),
		},
	})
	if err := s.cache.Invalidate(planCacheKey(identity.UID)); err != nil {
		s.log.Warn("failed to invalidate plan cache", sl.Err(err))
	}
	metrics.SimulatedEvents.WithLabelValues("cancellation").Inc()
	return nil
}

// SimulateWebhook синтезирует произвольное вебхук-событие для пользователя.
func (s *Service) SimulateWebhook(ctx context.Context, identity *models.Identity, eventType, description string, payload map[string]any) error {
	const op = "services.billing.SimulateWebhook"

	if description == "" {
		description = Description(eventType, payload)
	}
	event := models.WebhookEvent{
		UserID:      identity.UID,
		Type:        eventType,
		Description: description,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.events.Emit(ctx, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.SimulatedEvents.WithLabelValues("webhook").Inc()
	return nil
}

// emit синтезирует вебхук-событие с описанием по типу; ошибка доставки
// логируется, но не прерывает вызвавшую операцию.
func (s *Service) emit(ctx context.Context, identity *models.Identity, eventType string, payload map[string]any) {
	event := models.WebhookEvent{
		UserID:      identity.UID,
		Type:        eventType,
		Description: Description(eventType, payload),
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.events.Emit(ctx, event); err != nil {
		s.log.Error("failed to emit webhook event",
			slog.String("type", eventType), sl.Err(err))
	}
}

func (s *Service) planByPrice(priceID string) (models.Plan, bool) {
	for _, p := range s.plans {
		if p.PriceID == priceID {
			return p, true
		}
	}
	return models.Plan{}, false
}

func (s *Service) cachePlan(uid string, plan models.Plan) {
	if err := s.cache.Set(planCacheKey(uid), plan, s.cacheTTL); err != nil {
		s.log.Warn("failed to cache plan", sl.Err(err))
	}
}

func planCacheKey(uid string) string {
	return "plan:" + uid
}
