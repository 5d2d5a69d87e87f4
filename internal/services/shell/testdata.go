package shell

import "math/rand"

// Пулы случайных тестовых данных панели тестирования.
var (
	testUpdateMessages = []string{
		"Database connection established",
		"User preferences updated",
		"New feature unlocked",
		"System maintenance completed",
		"Performance optimization applied",
	}
	testUpdateSeverities = []string{"info", "success", "warning"}

	testEvents = []struct {
		Type        string
		Description string
	}{
		{"invoice.payment_succeeded", "Payment processed successfully"},
		{"customer.subscription.updated", "Subscription plan changed"},
		{"invoice.payment_failed", "Payment failed - retry scheduled"},
		{"customer.subscription.trial_will_end", "Trial ending in 3 days"},
	}
)

// RandomUpdate возвращает случайные сообщение и severity для тестовой
// записи ленты активности.
func RandomUpdate() (message, severity string) {
	return testUpdateMessages[rand.Intn(len(testUpdateMessages))],
		testUpdateSeverities[rand.Intn(len(testUpdateSeverities))]
}

// RandomEvent возвращает случайные тип и описание тестового вебхук-события.
func RandomEvent() (eventType, description string) {
	e := testEvents[rand.Intn(len(testEvents))]
	return e.Type, e.Description
}
