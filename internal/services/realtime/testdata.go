package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/store"
)

// CreateTestUpdate пишет тестовую запись в ленту активности пользователя.
func (s *Service) CreateTestUpdate(ctx context.Context, uid, message, severity string) error {
	const op = "services.realtime.CreateTestUpdate"

	if severity == "" {
		severity = models.SeverityInfo
	}
	doc, err := store.Encode(models.ActivityUpdate{
		UserID:    uid,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.store.Add(ctx, store.CollectionRealtimeUpdates, doc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreateTestEvent пишет тестовое вебхук-событие в ленту пользователя.
func (s *Service) CreateTestEvent(ctx context.Context, uid, eventType, description string) error {
	const op = "services.realtime.CreateTestEvent"

	if description == "" {
		description = "Webhook event: " + eventType
	}
	doc, err := store.Encode(models.WebhookEvent{
		UserID:      uid,
		Type:        eventType,
		Description: description,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.store.Add(ctx, store.CollectionWebhookEvents, doc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearTestData удаляет записи лент пользователя. Удаление максимально
// полное: ошибки отдельных документов копятся и возвращаются одной ошибкой.
func (s *Service) ClearTestData(ctx context.Context, uid string) error {
	const op = "services.realtime.ClearTestData"

	var errs []error
	for _, collection := range []string{store.CollectionRealtimeUpdates, store.CollectionWebhookEvents} {
		docs, err := s.store.Documents(ctx, store.NewQuery(collection).Where("userId", uid))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, d := range docs {
			if err := s.store.Delete(ctx, collection, d.ID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CheckConnection проверяет доступность хранилища круговой записью:
// документ добавляется в служебную коллекцию, читается и удаляется.
func (s *Service) CheckConnection(ctx context.Context) error {
	const op = "services.realtime.CheckConnection"

	doc := store.Document{
		"message":   "Connection test",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	id, err := s.store.Add(ctx, store.CollectionTest, doc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.store.Get(ctx, store.CollectionTest, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.Delete(ctx, store.CollectionTest, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
