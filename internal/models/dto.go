package models

// DummyLogin используется для приёма данных входа из JSON-запроса
// до их валидации.
type DummyLogin struct {
	Email    string `json:"email" validate:"required,email"`  // Электронная почта
	Password string `json:"password" validate:"required"`     // Пароль
}

// DummyRegister используется для приёма данных регистрации из JSON-запроса.
// Пароль короче 6 символов отклоняется локально, без обращения к провайдеру.
type DummyRegister struct {
	Name     string `json:"name" validate:"required"`            // Отображаемое имя
	Email    string `json:"email" validate:"required,email"`     // Электронная почта
	Password string `json:"password" validate:"required,min=6"`  // Пароль (>= 6 символов)
}

// DummyFederated используется для входа через внешнего провайдера.
type DummyFederated struct {
	Provider string `json:"provider" validate:"required"` // Имя провайдера, например google
}

// DummySubscribe используется для запуска подписки на план.
type DummySubscribe struct {
	PriceID string `json:"price_id" validate:"required"` // Идентификатор цены плана
}

// DummyWebhook используется для симуляции произвольного вебхук-события.
type DummyWebhook struct {
	Type        string         `json:"type" validate:"required"` // Тип события
	Description string         `json:"description,omitempty"`    // Описание (опционально)
	Payload     map[string]any `json:"data,omitempty"`           // Произвольная нагрузка
}

// DummyTestUpdate используется для ручного тестового обновления ленты активности.
type DummyTestUpdate struct {
	Message  string `json:"message" validate:"required"`                                      // Текст записи
	Severity string `json:"type" validate:"omitempty,oneof=info success warning error"`       // Severity-тег
}
