package firestore

import (
	"context"
	"sync"

	"cloud.google.com/go/firestore"

	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/store"
)

// watcher одна подписка на результат запроса.
type watcher struct {
	disp     *store.Dispatcher
	cancelFn context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// Watch подписывается на изменения результата запроса через снапшоты Firestore.
// Первый снапшот содержит текущий результат в виде added-изменений.
func (s *Store) Watch(ctx context.Context, q store.Query, onChange func([]store.Change)) (store.Handle, error) {
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := &watcher{
		disp:     store.NewDispatcher(onChange),
		cancelFn: cancel,
		done:     make(chan struct{}),
	}

	iter := s.buildQuery(q).Snapshots(watchCtx)
	go func() {
		defer close(w.done)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if watchCtx.Err() != nil {
					return
				}
				s.log.Error("firestore snapshot listener failed", sl.Err(err))
				return
			}
			changes := make([]store.Change, 0, len(snap.Changes))
			for _, c := range snap.Changes {
				changes = append(changes, store.Change{
					Kind: translateKind(c.Kind),
					Doc:  store.Doc{ID: c.Doc.Ref.ID, Data: c.Doc.Data()},
				})
			}
			if len(changes) > 0 {
				w.disp.Enqueue(changes)
			}
		}
	}()

	return w, nil
}

// Cancel снимает подписку. После возврата колбек больше не вызывается.
func (w *watcher) Cancel() {
	w.stopOnce.Do(func() {
		w.cancelFn()
		<-w.done
	})
	w.disp.Stop()
}

func translateKind(k firestore.DocumentChangeKind) store.ChangeKind {
	switch k {
	case firestore.DocumentModified:
		return store.ChangeModified
	case firestore.DocumentRemoved:
		return store.ChangeRemoved
	default:
		return store.ChangeAdded
	}
}
