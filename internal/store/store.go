// Package store определяет контракт документного хранилища песочницы:
// именованные коллекции, запросы с фильтром/сортировкой/лимитом и подписки
// на изменения результата запроса с отменяемым хэндлом.
//
// Контракт намеренно повторяет поверхность внешнего управляемого хранилища
// документов: add, set(merge), update, delete, get, query и onSnapshot.
// Драйверы живут в подпакетах memory, postgres и firestore.
package store

import (
	"context"
	"errors"
)

// Имена коллекций, с которыми работает песочница.
const (
	CollectionUsers           = "users"
	CollectionSubscriptions   = "subscriptions"
	CollectionRealtimeUpdates = "realtime_updates"
	CollectionWebhookEvents   = "webhook_events"
	CollectionTest            = "test"
)

// ErrNotFound возвращается, когда документ отсутствует в хранилище.
var ErrNotFound = errors.New("document not found")

// Document произвольный JSON-документ коллекции.
type Document = map[string]any

// Doc документ вместе с его идентификатором в коллекции.
type Doc struct {
	ID   string
	Data Document
}

// ChangeKind вид изменения документа в наблюдаемом результате запроса.
type ChangeKind string

const (
	// ChangeAdded документ появился в результате запроса.
	ChangeAdded ChangeKind = "added"
	// ChangeModified документ остался в результате, но его содержимое изменилось.
	ChangeModified ChangeKind = "modified"
	// ChangeRemoved документ покинул результат запроса.
	ChangeRemoved ChangeKind = "removed"
)

// Change одно изменение в наблюдаемом результате запроса.
type Change struct {
	Kind ChangeKind
	Doc  Doc
}

// Handle отменяемый хэндл подписки на изменения.
// Cancel идемпотентен; после возврата из Cancel колбек больше не вызывается.
type Handle interface {
	Cancel()
}

// Query описывает запрос к коллекции: фильтр по равенству,
// сортировка по одному полю и ограничение размера результата.
type Query struct {
	Collection  string
	FilterField string
	FilterValue any
	OrderField  string
	Desc        bool
	N           int // 0 — без ограничения
}

// NewQuery создает запрос ко всей коллекции.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where добавляет фильтр по равенству значения поля.
func (q Query) Where(field string, value any) Query {
	q.FilterField = field
	q.FilterValue = value
	return q
}

// OrderByDesc сортирует результат по полю от новых к старым.
func (q Query) OrderByDesc(field string) Query {
	q.OrderField = field
	q.Desc = true
	return q
}

// Limit ограничивает размер результата.
func (q Query) Limit(n int) Query {
	q.N = n
	return q
}

// Store контракт документного хранилища.
//
// Все операции блокирующие и принимают контекст; Watch доставляет изменения
// асинхронно относительно вызвавшей записи.
type Store interface {
	// Add добавляет документ со сгенерированным идентификатором.
	Add(ctx context.Context, collection string, doc Document) (string, error)
	// Set записывает документ по идентификатору; merge объединяет поля
	// с уже существующим документом вместо полной перезаписи.
	Set(ctx context.Context, collection, id string, doc Document, merge bool) error
	// Update обновляет отдельные поля существующего документа.
	Update(ctx context.Context, collection, id string, fields Document) error
	// Delete удаляет документ. Удаление отсутствующего документа не ошибка.
	Delete(ctx context.Context, collection, id string) error
	// Get возвращает документ или ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Documents выполняет запрос и возвращает его текущий результат.
	Documents(ctx context.Context, q Query) ([]Doc, error)
	// Watch подписывается на изменения результата запроса. Текущий результат
	// доставляется первым вызовом onChange как серия added-изменений.
	Watch(ctx context.Context, q Query, onChange func([]Change)) (Handle, error)
	// Close освобождает ресурсы драйвера.
	Close() error
}
