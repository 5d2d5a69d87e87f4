// Package memory реализует документное хранилище в памяти процесса.
//
// Драйвер используется юнит-тестами и локальными запусками без внешних
// сервисов. Подписки Watch получают изменения асинхронно, в порядке
// их возникновения, отдельной горутиной на подписку.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/paylab/subscription-sandbox/internal/store"
)

// Store хранилище документов в памяти, безопасное для конкурентного доступа.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]store.Document
	watchers    map[int64]*watcher
	nextWatchID int64
	closed      bool
}

// New создает пустое хранилище.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]store.Document),
		watchers:    make(map[int64]*watcher),
	}
}

// Add добавляет документ со сгенерированным идентификатором.
func (s *Store) Add(ctx context.Context, collection string, doc store.Document) (string, error) {
	const op = "store.memory.Add"
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	id := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("%s: store is closed", op)
	}
	s.put(collection, id, cloneDoc(doc))
	s.notifyLocked(collection)
	return id, nil
}

// Set записывает документ по идентификатору, merge объединяет поля верхнего уровня.
func (s *Store) Set(ctx context.Context, collection, id string, doc store.Document, merge bool) error {
	const op = "store.memory.Set"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%s: store is closed", op)
	}
	next := cloneDoc(doc)
	if merge {
		if prev, ok := s.collections[collection][id]; ok {
			merged := cloneDoc(prev)
			for k, v := range next {
				merged[k] = v
			}
			next = merged
		}
	}
	s.put(collection, id, next)
	s.notifyLocked(collection)
	return nil
}

// Update обновляет отдельные поля существующего документа.
func (s *Store) Update(ctx context.Context, collection, id string, fields store.Document) error {
	const op = "store.memory.Update"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%s: store is closed", op)
	}
	prev, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	merged := cloneDoc(prev)
	for k, v := range cloneDoc(fields) {
		merged[k] = v
	}
	s.put(collection, id, merged)
	s.notifyLocked(collection)
	return nil
}

// Delete удаляет документ. Отсутствующий документ не ошибка.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	const op = "store.memory.Delete"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%s: store is closed", op)
	}
	if docs, ok := s.collections[collection]; ok {
		if _, ok := docs[id]; ok {
			delete(docs, id)
			s.notifyLocked(collection)
		}
	}
	return nil
}

// Get возвращает документ или store.ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	const op = "store.memory.Get"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	return cloneDoc(doc), nil
}

// Documents выполняет запрос и возвращает его текущий результат.
func (s *Store) Documents(ctx context.Context, q store.Query) ([]store.Doc, error) {
	const op = "store.memory.Documents"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.ApplyQuery(q, s.snapshotLocked(q.Collection)), nil
}

// Close отменяет все подписки и закрывает хранилище.
func (s *Store) Close() error {
	s.mu.Lock()
	watchers := make([]*watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.closed = true
	s.mu.Unlock()

	for _, w := range watchers {
		w.Cancel()
	}
	return nil
}

// put сохраняет документ, создавая коллекцию при необходимости. Вызывается под mu.
func (s *Store) put(collection, id string, doc store.Document) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]store.Document)
		s.collections[collection] = docs
	}
	docs[id] = doc
}

// snapshotLocked возвращает копию всех документов коллекции. Вызывается под mu.
func (s *Store) snapshotLocked(collection string) []store.Doc {
	docs := s.collections[collection]
	out := make([]store.Doc, 0, len(docs))
	for id, d := range docs {
		out = append(out, store.Doc{ID: id, Data: cloneDoc(d)})
	}
	return out
}

// notifyLocked пересчитывает результаты всех наблюдателей коллекции. Вызывается под mu.
func (s *Store) notifyLocked(collection string) {
	for _, w := range s.watchers {
		if w.query.Collection != collection {
			continue
		}
		cur := store.ApplyQuery(w.query, s.snapshotLocked(collection))
		changes := store.DiffResults(w.last, cur)
		if len(changes) == 0 {
			continue
		}
		w.last = cur
		w.enqueue(changes)
	}
}

func cloneDoc(doc store.Document) store.Document {
	out := make(store.Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneDoc(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
