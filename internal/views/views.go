// Package views содержит чистые функции отображения доменного состояния
// в структуры представления панелей. Здесь нет ввода-вывода: каждая функция
// детерминированно строит представление по переданному состоянию.
package views

import (
	"fmt"
	"time"

	"github.com/paylab/subscription-sandbox/internal/models"
)

// Тексты-заглушки пустых панелей.
const (
	PlaceholderActivity     = "Waiting for real-time updates..."
	PlaceholderWebhooks     = "No webhook events received"
	PlaceholderSubscription = "No active subscription"
)

// Entry одна строка панели ленты.
type Entry struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Time     string `json:"time"`
}

// PanelView представление панели ленты: либо записи, либо заглушка.
type PanelView struct {
	Entries     []Entry `json:"entries"`
	Placeholder string  `json:"placeholder,omitempty"`
}

// UserView представление панели пользователя.
type UserView struct {
	SignedIn      bool   `json:"signedIn"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	PhotoURL      string `json:"photoURL,omitempty"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
}

// SubscriptionView представление панели подписки.
type SubscriptionView struct {
	HasSubscription bool   `json:"hasSubscription"`
	PlanName        string `json:"planName,omitempty"`
	Status          string `json:"status,omitempty"`
	Price           string `json:"price,omitempty"`
	NextBillingDate string `json:"nextBillingDate,omitempty"`
	Placeholder     string `json:"placeholder,omitempty"`
}

// RenderUser строит представление панели пользователя.
func RenderUser(identity *models.Identity) UserView {
	if identity == nil {
		return UserView{}
	}
	v := UserView{
		SignedIn:      true,
		Name:          identity.Name(),
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
	}
	if identity.PhotoURL != nil {
		v.PhotoURL = *identity.PhotoURL
	}
	return v
}

// RenderSubscription строит представление панели подписки по проекции профиля.
func RenderSubscription(profile *models.UserProfile) SubscriptionView {
	if profile == nil || !profile.HasSubscription() {
		return SubscriptionView{Placeholder: PlaceholderSubscription}
	}
	v := SubscriptionView{
		HasSubscription: true,
		Status:          profile.SubscriptionStatus,
	}
	if profile.SubscriptionPlan != nil {
		v.PlanName = *profile.SubscriptionPlan
	}
	if profile.SubscriptionAmount > 0 {
		v.Price = fmt.Sprintf("$%.0f/month", profile.SubscriptionAmount)
	}
	if profile.NextBillingDate != nil {
		v.NextBillingDate = profile.NextBillingDate.Format("Jan 2, 2006")
	}
	return v
}

// RenderSubscriptionRecord строит представление панели подписки из самой
// записи подписки. Запись может расходиться с проекцией профиля, и панель,
// построенная отсюда, показывает именно запись.
func RenderSubscriptionRecord(record *models.SubscriptionRecord) SubscriptionView {
	if record == nil {
		return SubscriptionView{Placeholder: PlaceholderSubscription}
	}
	v := SubscriptionView{
		HasSubscription: true,
		Status:          record.Status,
	}
	if record.PlanName != nil {
		v.PlanName = *record.PlanName
	}
	if record.Amount > 0 {
		v.Price = fmt.Sprintf("$%.0f/month", record.Amount)
	}
	if record.NextBillingDate != nil {
		v.NextBillingDate = record.NextBillingDate.Format("Jan 2, 2006")
	}
	return v
}

// RenderActivity строит представление ленты активности. Записи ожидаются
// от новых к старым, представление показывает не больше десяти.
func RenderActivity(updates []models.ActivityUpdate) PanelView {
	if len(updates) == 0 {
		return PanelView{Placeholder: PlaceholderActivity}
	}
	entries := make([]Entry, 0, len(updates))
	for _, u := range updates {
		entries = append(entries, Entry{
			Message:  u.Message,
			Severity: u.Severity,
			Time:     formatTime(u.Timestamp),
		})
		if len(entries) == maxPanelEntries {
			break
		}
	}
	return PanelView{Entries: entries}
}

// RenderWebhooks строит представление ленты вебхук-событий. Записи ожидаются
// от новых к старым, представление показывает не больше десяти.
func RenderWebhooks(events []models.WebhookEvent) PanelView {
	if len(events) == 0 {
		return PanelView{Placeholder: PlaceholderWebhooks}
	}
	entries := make([]Entry, 0, len(events))
	for _, e := range events {
		entries = append(entries, Entry{
			Message:  fmt.Sprintf("%s: %s", e.Type, e.Description),
			Severity: models.SeverityInfo,
			Time:     formatTime(e.Timestamp),
		})
		if len(entries) == maxPanelEntries {
			break
		}
	}
	return PanelView{Entries: entries}
}

// ToastView представление всплывающего уведомления.
type ToastView struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// DashboardView полное представление дашборда. Поля Toasts и Loading
// заполняет оболочка.
type DashboardView struct {
	User         UserView         `json:"user"`
	Subscription SubscriptionView `json:"subscription"`
	Updates      PanelView        `json:"updates"`
	Webhooks     PanelView        `json:"webhooks"`
	Toasts       []ToastView      `json:"toasts,omitempty"`
	Loading      bool             `json:"loading"`
}

// RenderDashboard строит представление всех панелей дашборда. Панель
// подписки передается готовой: ее источник (проекция профиля или запись
// подписки) определяет держатель состояния панелей.
func RenderDashboard(identity *models.Identity, subscription SubscriptionView, updates []models.ActivityUpdate, events []models.WebhookEvent) DashboardView {
	return DashboardView{
		User:         RenderUser(identity),
		Subscription: subscription,
		Updates:      RenderActivity(updates),
		Webhooks:     RenderWebhooks(events),
	}
}

const maxPanelEntries = 10

func formatTime(t time.Time) string {
	return t.Local().Format("15:04:05")
}
