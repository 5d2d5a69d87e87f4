package models

import "time"

// Статусы подписки в денормализованной проекции профиля и в записях подписок.
const (
	StatusNone      = "none"
	StatusActive    = "active"
	StatusPastDue   = "past_due"
	StatusCancelled = "cancelled"
)

// UserProfile проекция профиля пользователя в коллекции users.
// Содержит денормализованные поля подписки, которые обновляет симуляция биллинга.
// Проекция может расходиться с самой записью подписки.
type UserProfile struct {
	UID                string     `json:"uid"`
	Email              string     `json:"email"`
	DisplayName        string     `json:"displayName"`
	PhotoURL           *string    `json:"photoURL"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	SubscriptionPlan   *string    `json:"subscriptionPlan"`
	SubscriptionAmount float64    `json:"subscriptionAmount,omitempty"`
	NextBillingDate    *time.Time `json:"nextBillingDate,omitempty"`
	LastLogin          time.Time  `json:"lastLogin"`
	CreatedAt          time.Time  `json:"createdAt,omitempty"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// HasSubscription сообщает, показывает ли проекция действующую подписку.
func (p *UserProfile) HasSubscription() bool {
	return p.SubscriptionStatus != "" && p.SubscriptionStatus != StatusNone
}
