// Package shell обслуживает оболочку песочницы: очередь тостов с временем
// жизни и защитный счетчик длительных операций.
package shell

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paylab/subscription-sandbox/internal/metrics"
)

// Toast всплывающее уведомление оболочки.
type Toast struct {
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service сервис оболочки.
type Service struct {
	log *slog.Logger
	ttl time.Duration

	mu      sync.Mutex
	toasts  []Toast
	loading int
}

// New создает сервис оболочки; ttl задает время жизни тоста.
func New(log *slog.Logger, ttl time.Duration) *Service {
	return &Service{log: log, ttl: ttl}
}

// Push добавляет тост в очередь.
func (s *Service) Push(message, severity string) {
	metrics.Toasts.WithLabelValues(severity).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = append(s.toasts, Toast{
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
	})
}

// Active возвращает еще не истекшие тосты, попутно вычищая истекшие.
func (s *Service) Active() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	alive := s.toasts[:0]
	for _, toast := range s.toasts {
		if toast.CreatedAt.After(cutoff) {
			alive = append(alive, toast)
		}
	}
	s.toasts = alive

	out := make([]Toast, len(alive))
	copy(out, alive)
	return out
}

// Do выполняет операцию под защитным счетчиком загрузки: пока хотя бы одна
// операция выполняется, Loading возвращает true.
func (s *Service) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
	}()
	return fn(ctx)
}

// Loading сообщает, выполняется ли сейчас длительная операция.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}
