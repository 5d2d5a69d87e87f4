// Package checkout создает сессии оплаты. В песочнице внешняя платежная
// платформа заменена заглушкой, которая выдает тестовые идентификаторы
// сессий с небольшой задержкой, имитирующей сетевой вызов.
package checkout

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// SessionRequest данные для создания сессии оплаты.
type SessionRequest struct {
	PriceID   string
	UserID    string
	UserEmail string
	PlanName  string
}

// Session созданная сессия оплаты.
type Session struct {
	ID string
}

// Client контракт создателя сессий оплаты.
type Client interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// Sandbox заглушка платежной платформы.
type Sandbox struct {
	delay time.Duration
}

// NewSandbox создает заглушку с задержкой ответа delay.
func NewSandbox(delay time.Duration) *Sandbox {
	return &Sandbox{delay: delay}
}

// CreateCheckoutSession возвращает тестовую сессию вида cs_test_<суффикс>.
func (s *Sandbox) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	const op = "checkout.CreateCheckoutSession"

	if req.PriceID == "" {
		return nil, fmt.Errorf("%s: price id is empty", op)
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
	return &Session{ID: "cs_test_" + randomSuffix(9)}, nil
}

const suffixCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixCharset[rand.Intn(len(suffixCharset))]
	}
	return string(b)
}
