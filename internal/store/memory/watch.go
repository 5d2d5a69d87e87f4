package memory

import (
	"context"
	"fmt"
	"sync"

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

// Watch подписывается на изменения результата запроса.
// Текущий результат доставляется первым колбеком как added-изменения.
func (s *Store) Watch(ctx context.Context, q store.Query, onChange func([]store.Change)) (store.Handle, error) {
	const op = "store.memory.Watch"
	if err := ctx.Err(); err != nil {
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
		disp:  store.NewDispatcher(onChange),
	}
	w.cancelFn = func() {
		s.mu.Lock()
		delete(s.watchers, w.id)
		s.mu.Unlock()
	}
	s.watchers[w.id] = w

	cur := store.ApplyQuery(q, s.snapshotLocked(q.Collection))
	w.last = cur
	if len(cur) > 0 {
		initial := make([]store.Change, 0, len(cur))
		for _, d := range cur {
			initial = append(initial, store.Change{Kind: store.ChangeAdded, Doc: d})
		}
		w.enqueue(initial)
	}
	s.mu.Unlock()

	return w, nil
}

func (w *watcher) enqueue(changes []store.Change) {
	w.disp.Enqueue(changes)
}

// Cancel снимает подписку. После возврата колбек больше не вызывается.
func (w *watcher) Cancel() {
	w.stopOnce.Do(w.cancelFn)
	w.disp.Stop()
}
