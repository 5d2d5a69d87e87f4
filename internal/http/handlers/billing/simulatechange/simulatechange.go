// Package simulatechange реализует HTTP-обработчик симуляции смены плана.
//
// Симуляция трогает только денормализованную проекцию профиля: запись
// подписки остается прежней, расхождение между ними — ожидаемое свойство
// песочницы.
package simulatechange

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

// Handler обрабатывает HTTP-запросы симуляции смены плана.
type Handler struct {
	log     *slog.Logger
	service Service
	session Session
	shell   Shell
}

// Service описывает интерфейс сервиса биллинга для симуляции смены плана.
type Service interface {
	SimulatePlanChange(ctx context.Context, identity *models.Identity) error
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
// @Summary Симулировать смену плана
// @Description Переводит проекцию профиля на план Pro и синтезирует вебхук об обновлении.
// @Tags Billing
// @Produce  json
// @Success 200 {object} response.Response "Смена плана симулирована"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка симуляции"
// @Security BearerAuth
// @Router /billing/simulate/change [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.simulatechange"
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
		return h.service.SimulatePlanChange(ctx, identity)
	})
	if err != nil {
		log.Error("failed to simulate plan change", sl.Err(err))
		h.shell.Push("Error updating subscription", models.SeverityError)
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not simulate plan change"))
		return
	}

	log.Info("plan change simulated", slog.String("uid", identity.UID))
	h.shell.Push("Subscription updated to Pro plan!", models.SeveritySuccess)
	render.JSON(w, r, response.OK())
}
