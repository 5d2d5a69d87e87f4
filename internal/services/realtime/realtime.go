// Package realtime сопровождает открытую сессию живыми подписками на
// документное хранилище и сводит их изменения в состояние панелей.
//
// На одну сессию всегда приходится ровно четыре подписки: профиль
// пользователя, его записи подписок, лента активности и лента
// вебхук-событий. Смена идентичности сначала снимает старые подписки,
// затем ставит новые; выход снимает все.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/metrics"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/store"
	"github.com/paylab/subscription-sandbox/internal/views"
)

const maxFeedEntries = 10

// Panels снимок состояния панелей для отображения.
//
// Subscription строится тем источником, который менялся последним:
// изменение профиля перерисовывает панель из денормализованной проекции,
// изменение записи подписки — из самой записи. Источники могут расходиться,
// и панель честно показывает последний из них.
type Panels struct {
	Identity     *models.Identity
	Profile      *models.UserProfile
	Subscription views.SubscriptionView
	Updates      []models.ActivityUpdate
	Events       []models.WebhookEvent
}

// Service сервис живых обновлений.
type Service struct {
	log   *slog.Logger
	store store.Store

	mu       sync.Mutex
	identity *models.Identity
	profile  *models.UserProfile
	subPanel views.SubscriptionView
	updates  []keyedUpdate
	events   []keyedEvent
	watches  []store.Handle

	subscribers map[int64]chan struct{}
	nextSubID   int64
}

type keyedUpdate struct {
	id     string
	update models.ActivityUpdate
}

type keyedEvent struct {
	id    string
	event models.WebhookEvent
}

// New создает сервис живых обновлений без активных подписок.
func New(log *slog.Logger, st store.Store) *Service {
	return &Service{
		log:         log,
		store:       st,
		subPanel:    views.RenderSubscription(nil),
		subscribers: make(map[int64]chan struct{}),
	}
}

// HandleIdentity реагирует на смену идентичности сессии: для новой
// идентичности подписки пересоздаются, для nil — снимаются.
func (s *Service) HandleIdentity(identity *models.Identity) {
	if identity == nil {
		s.Stop()
		return
	}
	if err := s.Start(context.Background(), identity); err != nil {
		s.log.Error("failed to start realtime watches", sl.Err(err))
	}
}

// Start снимает прежние подписки и ставит четыре новые для идентичности.
func (s *Service) Start(ctx context.Context, identity *models.Identity) error {
	const op = "services.realtime.Start"

	s.Stop()

	s.mu.Lock()
	s.identity = identity
	s.profile = nil
	s.subPanel = views.RenderSubscription(nil)
	s.updates = nil
	s.events = nil
	s.mu.Unlock()

	uid := identity.UID
	specs := []struct {
		query store.Query
		apply func([]store.Change)
	}{
		{
			query: store.NewQuery(store.CollectionUsers).Where("uid", uid),
			apply: s.applyProfile,
		},
		{
			query: store.NewQuery(store.CollectionSubscriptions).Where("userId", uid),
			apply: s.applySubscriptions,
		},
		{
			query: store.NewQuery(store.CollectionRealtimeUpdates).
				Where("userId", uid).
				OrderByDesc("timestamp").
				Limit(maxFeedEntries),
			apply: s.applyUpdates,
		},
		{
			query: store.NewQuery(store.CollectionWebhookEvents).
				Where("userId", uid).
				OrderByDesc("timestamp").
				Limit(maxFeedEntries),
			apply: s.applyEvents,
		},
	}

	handles := make([]store.Handle, 0, len(specs))
	for _, spec := range specs {
		h, err := s.store.Watch(ctx, spec.query, spec.apply)
		if err != nil {
			for _, prev := range handles {
				prev.Cancel()
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		handles = append(handles, h)
	}

	s.mu.Lock()
	s.watches = handles
	s.mu.Unlock()
	metrics.LiveWatches.Add(float64(len(handles)))

	s.log.Info("realtime watches established",
		slog.String("uid", uid), slog.Int("watches", len(handles)))
	return nil
}

// Stop снимает все подписки и очищает состояние панелей.
func (s *Service) Stop() {
	s.mu.Lock()
	handles := s.watches
	s.watches = nil
	s.identity = nil
	s.profile = nil
	s.subPanel = views.RenderSubscription(nil)
	s.updates = nil
	s.events = nil
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	if len(handles) > 0 {
		metrics.LiveWatches.Sub(float64(len(handles)))
	}
	s.broadcast()
}

// WatchCount возвращает число активных подписок.
func (s *Service) WatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

// Panels возвращает снимок состояния панелей.
func (s *Service) Panels() Panels {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Panels{Identity: s.identity, Profile: s.profile, Subscription: s.subPanel}
	p.Updates = make([]models.ActivityUpdate, 0, len(s.updates))
	for _, u := range s.updates {
		p.Updates = append(p.Updates, u.update)
	}
	p.Events = make([]models.WebhookEvent, 0, len(s.events))
	for _, e := range s.events {
		p.Events = append(p.Events, e.event)
	}
	return p
}

// Subscribe подписывает на сигналы об изменении состояния панелей.
// Возвращенный канал получает сигнал после каждого изменения; cancel
// снимает подписку.
func (s *Service) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	ch := make(chan struct{}, 1)
	s.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

// applyProfile сводит изменения документа профиля. Каждая доставка
// отмечается в ленте активности записью о синхронизации.
func (s *Service) applyProfile(changes []store.Change) {
	s.mu.Lock()
	for _, c := range changes {
		switch c.Kind {
		case store.ChangeRemoved:
			s.profile = nil
		default:
			var profile models.UserProfile
			if err := store.Decode(c.Doc.Data, &profile); err != nil {
				s.log.Error("failed to decode user profile", sl.Err(err))
				continue
			}
			s.profile = &profile
			s.subPanel = views.RenderSubscription(&profile)
			s.appendLocalUpdate("User data synchronized", models.SeverityInfo)
		}
	}
	s.mu.Unlock()
	s.broadcast()
}

// applySubscriptions переводит изменения записей подписок в записи ленты
// и перерисовывает панель подписки из самой записи.
func (s *Service) applySubscriptions(changes []store.Change) {
	s.mu.Lock()
	for _, c := range changes {
		var record models.SubscriptionRecord
		if err := store.Decode(c.Doc.Data, &record); err != nil {
			s.log.Error("failed to decode subscription record", sl.Err(err))
			continue
		}
		switch c.Kind {
		case store.ChangeAdded:
			plan := "Unknown"
			if record.PlanName != nil {
				plan = *record.PlanName
			}
			s.subPanel = views.RenderSubscriptionRecord(&record)
			s.appendLocalUpdate("New subscription created: "+plan, models.SeveritySuccess)
		case store.ChangeModified:
			s.subPanel = views.RenderSubscriptionRecord(&record)
			s.appendLocalUpdate("Subscription updated: "+record.Status, models.SeverityInfo)
		case store.ChangeRemoved:
			s.subPanel = views.RenderSubscriptionRecord(nil)
			s.appendLocalUpdate("Subscription cancelled", models.SeverityWarning)
		}
	}
	s.mu.Unlock()
	s.broadcast()
}

// applyUpdates сводит изменения ленты активности.
func (s *Service) applyUpdates(changes []store.Change) {
	s.mu.Lock()
	for _, c := range changes {
		switch c.Kind {
		case store.ChangeRemoved:
			s.updates = removeKeyedUpdate(s.updates, c.Doc.ID)
		default:
			var update models.ActivityUpdate
			if err := store.Decode(c.Doc.Data, &update); err != nil {
				s.log.Error("failed to decode activity update", sl.Err(err))
				continue
			}
			s.updates = removeKeyedUpdate(s.updates, c.Doc.ID)
			s.updates = append(s.updates, keyedUpdate{id: c.Doc.ID, update: update})
		}
	}
	sort.SliceStable(s.updates, func(i, j int) bool {
		return s.updates[i].update.Timestamp.After(s.updates[j].update.Timestamp)
	})
	if len(s.updates) > maxFeedEntries {
		s.updates = s.updates[:maxFeedEntries]
	}
	s.mu.Unlock()
	s.broadcast()
}

// applyEvents сводит изменения ленты вебхук-событий.
func (s *Service) applyEvents(changes []store.Change) {
	s.mu.Lock()
	for _, c := range changes {
		switch c.Kind {
		case store.ChangeRemoved:
			s.events = removeKeyedEvent(s.events, c.Doc.ID)
		default:
			var event models.WebhookEvent
			if err := store.Decode(c.Doc.Data, &event); err != nil {
				s.log.Error("failed to decode webhook event", sl.Err(err))
				continue
			}
			s.events = removeKeyedEvent(s.events, c.Doc.ID)
			s.events = append(s.events, keyedEvent{id: c.Doc.ID, event: event})
		}
	}
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].event.Timestamp.After(s.events[j].event.Timestamp)
	})
	if len(s.events) > maxFeedEntries {
		s.events = s.events[:maxFeedEntries]
	}
	s.mu.Unlock()
	s.broadcast()
}

// appendLocalUpdate добавляет синтезированную запись в ленту активности.
// Такие записи живут только в состоянии панелей и не пишутся в хранилище.
// Вызывается под mu.
func (s *Service) appendLocalUpdate(message, severity string) {
	if s.identity == nil {
		return
	}
	s.updates = append([]keyedUpdate{{
		update: models.ActivityUpdate{
			UserID:    s.identity.UID,
			Message:   message,
			Severity:  severity,
			Timestamp: time.Now().UTC(),
		},
	}}, s.updates...)
	if len(s.updates) > maxFeedEntries {
		s.updates = s.updates[:maxFeedEntries]
	}
}

// broadcast сигналит подписчикам об изменении состояния, не блокируясь.
func (s *Service) broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func removeKeyedUpdate(list []keyedUpdate, id string) []keyedUpdate {
	if id == "" {
		return list
	}
	for i, u := range list {
		if u.id == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func removeKeyedEvent(list []keyedEvent, id string) []keyedEvent {
	if id == "" {
		return list
	}
	for i, e := range list {
		if e.id == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
