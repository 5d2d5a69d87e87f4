package models

import "time"

// Severity-теги записей ленты активности.
const (
	SeverityInfo    = "info"
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// ActivityUpdate запись ленты активности (коллекция realtime_updates).
// Лента append-only, клиент держит не более 10 последних записей.
type ActivityUpdate struct {
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Severity  string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookEvent синтезированное вебхук-событие (коллекция webhook_events).
// Заменяет настоящий колбек платежной платформы для прогона пайплайна уведомлений.
type WebhookEvent struct {
	UserID      string         `json:"userId"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Payload     map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
