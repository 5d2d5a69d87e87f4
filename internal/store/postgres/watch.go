package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/store"
)

// watcher одна подписка на результат запроса.
type watcher struct {
	id    int64
	query store.Query
	last  []store.Doc // последний доставленный результат, под mu хранилища

	disp     *store.Dispatcher
	cancelFn func()
	stopOnce sync.Once
}

// notification полезная нагрузка триггера notify_document_change.
type notification struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         string `json:"op"`
}

// Watch подписывается на изменения результата запроса.
// Текущий результат доставляется первым колбеком как added-изменения.
func (s *Store) Watch(ctx context.Context, q store.Query, onChange func([]store.Change)) (store.Handle, error) {
	const op = "store.postgres.Watch"

	cur, err := s.Documents(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: store is closed", op)
	}
	s.nextWatchID++
	w := &watcher{
		id:    s.nextWatchID,
		query: q,
		last:  cur,
		disp:  store.NewDispatcher(onChange),
	}
	w.cancelFn = func() {
		s.mu.Lock()
		delete(s.watchers, w.id)
		s.mu.Unlock()
	}
	s.watchers[w.id] = w
	s.mu.Unlock()

	if len(cur) > 0 {
		initial := make([]store.Change, 0, len(cur))
		for _, d := range cur {
			initial = append(initial, store.Change{Kind: store.ChangeAdded, Doc: d})
		}
		w.disp.Enqueue(initial)
	}

	return w, nil
}

// Cancel снимает подписку. После возврата колбек больше не вызывается.
func (w *watcher) Cancel() {
	w.stopOnce.Do(w.cancelFn)
	w.disp.Stop()
}

// listen ждёт уведомления триггера и пересчитывает затронутые подписки.
func (s *Store) listen(ctx context.Context, conn *pgx.Conn) {
	defer close(s.listenDone)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	for {
		msg, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("failed to wait for notification", sl.Err(err))
			return
		}

		var n notification
		if err = json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			s.log.Error("failed to decode notification payload", sl.Err(err))
			continue
		}
		s.refresh(ctx, n.Collection)
	}
}

// refresh пересчитывает результаты подписок на коллекцию и рассылает разницу.
func (s *Store) refresh(ctx context.Context, collection string) {
	s.mu.Lock()
	watchers := make([]*watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		if w.query.Collection == collection {
			watchers = append(watchers, w)
		}
	}
	s.mu.Unlock()

	for _, w := range watchers {
		cur, err := s.Documents(ctx, w.query)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("failed to requery watched documents", sl.Err(err))
			continue
		}

		s.mu.Lock()
		if _, ok := s.watchers[w.id]; !ok {
			s.mu.Unlock()
			continue
		}
		changes := store.DiffResults(w.last, cur)
		w.last = cur
		s.mu.Unlock()

		if len(changes) > 0 {
			w.disp.Enqueue(changes)
		}
	}
}
