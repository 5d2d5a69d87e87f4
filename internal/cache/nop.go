package cache

import "time"

// Nop кеш-заглушка для окружений без Redis. Все операции безуспешны, но не ошибочны.
type Nop struct{}

// Get всегда сообщает о промахе.
func (Nop) Get(_ string, _ any) (bool, error) { return false, nil }

// Set ничего не сохраняет.
func (Nop) Set(_ string, _ any, _ time.Duration) error { return nil }

// Invalidate ничего не удаляет.
func (Nop) Invalidate(_ string) error { return nil }
