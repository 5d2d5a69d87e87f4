// Package simulatecancel реализует HTTP-обработчик симуляции отмены подписки.
//
// Как и смена плана, отмена трогает только проекцию профиля, не удаляя
// запись подписки.
package simulatecancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/paylab/subscription-sandbox/internal/http/response"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/models"
)

// Handler обрабатывает HTTP-запросы симуляции отмены подписки.
type Handler struct {
	log     *slog.Logger
	service Service
	session Session
	shell   Shell
}

// Service описывает интерфейс сервиса биллинга для симуляции отмены.
type Service interface {
	SimulateCancellation(ctx context.Context, identity *models.Identity) error
}

// Session описывает интерфейс текущей сессии.
type Session interface {
	Current() *models.Identity
}

// Shell описывает интерфейс оболочки: тосты и защитный счетчик загрузки.
type Shell interface {
	Push(message, severity string)
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, session Session, shell Shell) *Handler {
	return &Handler{log: log, service: service, session: session, shell: shell}
}

// ServeHTTP godoc
// @Summary Симулировать отмену подписки
// @Description Помечает проекцию профиля отмененной и синтезирует вебхук об удалении подписки.
// @Tags Billing
// @Produce  json
// @Success 200 {object} response.Response "Отмена симулирована"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка симуляции"
// @Security BearerAuth
// @Router /billing/simulate/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.simulatecancel"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity := h.session.Current()
	if identity == nil {
		log.Error("no open session")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	err := h.shell.Do(r.Context(), func(ctx context.Context) error {
		return h.service.SimulateCancellation(ctx, identity)
	})
	if err != nil {
		log.Error("failed to simulate cancellation", sl.Err(err))
		h.shell.Push("Error cancelling subscription", models.SeverityError)
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not simulate cancellation"))
		return
	}

	log.Info("cancellation simulated", slog.String("uid", identity.UID))
	h.shell.Push("Subscription cancelled successfully", models.SeverityWarning)
	render.JSON(w, r, response.OK())
}
