package models

import "time"

// SubscriptionRecord запись подписки в коллекции subscriptions.
// Это состояние биллингового плана одной идентичности, в отличие от
// денормализованной проекции на профиле.
type SubscriptionRecord struct {
	UserID          string     `json:"userId"`
	PlanName        *string    `json:"planName"`
	PriceID         string     `json:"priceId,omitempty"`
	Status          string     `json:"status"`
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	CreatedAt       time.Time  `json:"createdAt"`
	NextBillingDate *time.Time `json:"nextBillingDate,omitempty"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
}

// Plan тарифный план песочницы.
type Plan struct {
	PriceID  string  // Идентификатор цены, например price_basic
	Name     string  // Название плана
	Amount   float64 // Стоимость в месяц
	Currency string  // Код валюты
}
