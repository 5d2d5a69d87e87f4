// Package middlewarectx содержит HTTP middleware песочницы.
//
// JWTMiddleware проверяет JWT сессии в заголовке Authorization и сверяет
// его с текущей открытой сессией: токен, переживший выход из системы,
// отклоняется. В случае успеха идентичность кладется в контекст запроса.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/paylab/subscription-sandbox/internal/http/response"
	jwtlib "github.com/paylab/subscription-sandbox/internal/lib/jwt"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// User — ключ для идентификатора пользователя в контексте
	User Key = "uid"
	// Email — ключ для почты пользователя в контексте
	Email Key = "email"
	// Name — ключ для отображаемого имени в контексте
	Name Key = "name"
)

// Session описывает интерфейс текущей сессии.
type Session interface {
	Current() *models.Identity
	Lifetime() context.Context
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке
// Authorization и принадлежность токена открытой сессии.
//
// Если токен валиден и сессия открыта, идентичность добавляется в контекст
// запроса, иначе возвращается HTTP 401 Unauthorized.
func JWTMiddleware(maker jwtlib.Maker, session Session, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := maker.ParseToken(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			current := session.Current()
			if current == nil || current.UID != claims.UID {
				log.Error("token does not match an open session")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("session is closed"))
				return
			}

			ctx := context.WithValue(r.Context(), User, claims.UID)
			ctx = context.WithValue(ctx, Email, claims.Email)
			ctx = context.WithValue(ctx, Name, claims.DisplayName)

			// Контекст запроса привязывается ко времени жизни сессии:
			// выход из системы отменяет запросы, начатые от ее имени,
			// и их записи не переживают сессию.
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			stop := context.AfterFunc(session.Lifetime(), cancel)
			defer stop()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
