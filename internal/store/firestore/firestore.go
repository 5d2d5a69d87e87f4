// Package firestore реализует документное хранилище поверх Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/paylab/subscription-sandbox/internal/store"
)

// Store документное хранилище на Cloud Firestore.
type Store struct {
	client *firestore.Client
	log    *slog.Logger
}

// New инициализирует Firebase-приложение и открывает клиента Firestore.
// При пустом credentialsFile используются учетные данные окружения.
func New(ctx context.Context, projectID, credentialsFile string, log *slog.Logger) (*Store, error) {
	const op = "store.firestore.New"

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{client: client, log: log}, nil
}

// Add добавляет документ со сгенерированным идентификатором.
func (s *Store) Add(ctx context.Context, collection string, doc store.Document) (string, error) {
	const op = "store.firestore.Add"

	ref, _, err := s.client.Collection(collection).Add(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return ref.ID, nil
}

// Set записывает документ по идентификатору; merge объединяет поля верхнего уровня.
func (s *Store) Set(ctx context.Context, collection, id string, doc store.Document, merge bool) error {
	const op = "store.firestore.Set"

	ref := s.client.Collection(collection).Doc(id)
	var err error
	if merge {
		_, err = ref.Set(ctx, doc, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, doc)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Update обновляет отдельные поля существующего документа.
func (s *Store) Update(ctx context.Context, collection, id string, fields store.Document) error {
	const op = "store.firestore.Update"

	updates := make([]firestore.Update, 0, len(fields))
	for field, value := range fields {
		updates = append(updates, firestore.Update{Path: field, Value: value})
	}
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s: %w", op, store.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет документ. Отсутствующий документ не ошибка.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	const op = "store.firestore.Delete"

	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get возвращает документ или store.ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	const op = "store.firestore.Get"

	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%s: %w", op, store.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return snap.Data(), nil
}

// Documents выполняет запрос и возвращает его текущий результат.
func (s *Store) Documents(ctx context.Context, q store.Query) ([]store.Doc, error) {
	const op = "store.firestore.Documents"

	iter := s.buildQuery(q).Documents(ctx)
	defer iter.Stop()

	var result []store.Doc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, store.Doc{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return result, nil
}

// Close закрывает клиента Firestore.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) buildQuery(q store.Query) firestore.Query {
	fq := s.client.Collection(q.Collection).Query
	if q.FilterField != "" {
		fq = fq.Where(q.FilterField, "==", q.FilterValue)
	}
	if q.OrderField != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderField, dir)
	}
	if q.N > 0 {
		fq = fq.Limit(q.N)
	}
	return fq
}
