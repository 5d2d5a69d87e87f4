package store

import "sync"

// Dispatcher доставляет партии изменений колбеку подписки асинхронно,
// сохраняя порядок партий. Используется драйверами хранилища.
type Dispatcher struct {
	onChange func([]Change)

	mu      sync.Mutex
	pending [][]Change

	wake     chan struct{}
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

// NewDispatcher создает диспетчер и запускает горутину доставки.
func NewDispatcher(onChange func([]Change)) *Dispatcher {
	d := &Dispatcher{
		onChange: onChange,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue добавляет партию изменений в очередь доставки.
func (d *Dispatcher) Enqueue(changes []Change) {
	if len(changes) == 0 {
		return
	}
	d.mu.Lock()
	d.pending = append(d.pending, changes)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Stop останавливает доставку. После возврата колбек больше не вызывается.
// Идемпотентен.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
	})
	<-d.finished
}

func (d *Dispatcher) run() {
	defer close(d.finished)
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
			for {
				d.mu.Lock()
				if len(d.pending) == 0 {
					d.mu.Unlock()
					break
				}
				batch := d.pending[0]
				d.pending = d.pending[1:]
				d.mu.Unlock()

				select {
				case <-d.done:
					return
				default:
				}
				d.onChange(batch)
			}
		}
	}
}
