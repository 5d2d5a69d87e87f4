// Package models содержит доменные структуры песочницы: идентичность пользователя,
// проекцию профиля, записи подписок и ленты событий, а также вспомогательные
// типы для приёма данных из JSON-запросов.
package models

import "time"

// Identity представляет аутентифицированного пользователя.
// Живет только в памяти процесса на время сессии, уничтожается при выходе.
type Identity struct {
	UID           string     // Уникальный идентификатор пользователя
	Email         string     // Электронная почта
	DisplayName   string     // Отображаемое имя
	PhotoURL      *string    // Ссылка на фото профиля (опционально)
	EmailVerified bool       // Подтверждена ли почта
	LastSignInAt  *time.Time // Момент последнего входа
}

// Name возвращает отображаемое имя либо почту, если имя не задано.
func (i *Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Email
}
