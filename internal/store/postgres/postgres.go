// Package postgres реализует документное хранилище поверх PostgreSQL.
//
// Документы лежат в одной таблице documents с JSONB-содержимым; изменения
// разносятся подпискам через LISTEN/NOTIFY и триггер notify_document_change.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/paylab/subscription-sandbox/internal/migrations"
	"github.com/paylab/subscription-sandbox/internal/store"
)

const notifyChannel = "document_changes"

// Store документное хранилище на PostgreSQL.
type Store struct {
	db  *sql.DB
	log *slog.Logger

	mu          sync.Mutex
	watchers    map[int64]*watcher
	nextWatchID int64
	closed      bool

	listenCancel context.CancelFunc
	listenDone   chan struct{}
}

// New подключается к PostgreSQL, применяет миграции и запускает слушателя уведомлений.
func New(ctx context.Context, connString, migrationsPath string, log *slog.Logger) (*Store, error) {
	const op = "store.postgres.New"

	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db, migrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	listenConn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err = listenConn.Exec(ctx, "listen "+notifyChannel); err != nil {
		_ = listenConn.Close(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:           db,
		log:          log,
		watchers:     make(map[int64]*watcher),
		listenCancel: cancel,
		listenDone:   make(chan struct{}),
	}
	go s.listen(listenCtx, listenConn)
	return s, nil
}

// Add добавляет документ со сгенерированным идентификатором.
func (s *Store) Add(ctx context.Context, collection string, doc store.Document) (string, error) {
	const op = "store.postgres.Add"

	id := uuid.New().String()
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	query := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, collection, id, raw); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// Set записывает документ по идентификатору; merge объединяет поля верхнего уровня.
func (s *Store) Set(ctx context.Context, collection, id string, doc store.Document, merge bool) error {
	const op = "store.postgres.Set"

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
			  ON CONFLICT (collection, id) DO UPDATE
			  SET data = CASE WHEN $4 THEN documents.data || excluded.data ELSE excluded.data END,
			      updated_at = now()`
	if _, err := s.db.ExecContext(ctx, query, collection, id, raw, merge); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Update обновляет отдельные поля существующего документа.
func (s *Store) Update(ctx context.Context, collection, id string, fields store.Document) error {
	const op = "store.postgres.Update"

	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := `UPDATE documents SET data = data || $3, updated_at = now()
			  WHERE collection = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, query, collection, id, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	return nil
}

// Delete удаляет документ. Отсутствующий документ не ошибка.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	const op = "store.postgres.Delete"

	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := s.db.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get возвращает документ или store.ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	const op = "store.postgres.Get"

	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	var raw []byte
	if err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, store.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc, nil
}

// Documents выполняет запрос и возвращает его текущий результат.
func (s *Store) Documents(ctx context.Context, q store.Query) ([]store.Doc, error) {
	const op = "store.postgres.Documents"

	var sb strings.Builder
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)
	args := []any{q.Collection}
	if q.FilterField != "" {
		sb.WriteString(fmt.Sprintf(` AND data->>'%s' = $2`, q.FilterField))
		args = append(args, fmt.Sprint(q.FilterValue))
	}
	if q.OrderField != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		sb.WriteString(fmt.Sprintf(` ORDER BY data->>'%s' %s`, q.OrderField, dir))
	}
	if q.N > 0 {
		sb.WriteString(fmt.Sprintf(` LIMIT %d`, q.N))
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []store.Doc
	for rows.Next() {
		var id string
		var raw []byte
		if err = rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var doc store.Document
		if err = json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, store.Doc{ID: id, Data: doc})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// Close останавливает слушателя, снимает подписки и закрывает соединения.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	watchers := make([]*watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w.Cancel()
	}
	s.listenCancel()
	<-s.listenDone
	return s.db.Close()
}
