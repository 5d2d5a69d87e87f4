// Package portal реализует HTTP-обработчик окна управления подпиской.
package portal

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/paylab/subscription-sandbox/internal/http/middlewarectx"
	"github.com/paylab/subscription-sandbox/internal/http/response"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/services/billing"
)

// Handler обрабатывает HTTP-запросы окна управления подпиской.
type Handler struct {
	log     *slog.Logger
	service Service
	shell   Shell
}

// Service описывает интерфейс сервиса биллинга для окна управления.
type Service interface {
	OpenManagement(ctx context.Context, uid string) (*billing.ManagementOptions, error)
}

// Shell описывает интерфейс оболочки: тосты и защитный счетчик загрузки.
type Shell interface {
	Push(message, severity string)
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, shell Shell) *Handler {
	return &Handler{log: log, service: service, shell: shell}
}

// ServeHTTP godoc
// @Summary Окно управления подпиской
// @Description Возвращает текущую подписку и доступные действия управления.
// @Tags Billing
// @Produce  json
// @Success 200 {object} billing.ManagementOptions "Состояние окна управления"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /billing/portal [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.portal"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || uid == "" {
		log.Error("uid not found in context")
		h.shell.Push("Please log in first", models.SeverityWarning)
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var opts *billing.ManagementOptions
	err := h.shell.Do(r.Context(), func(ctx context.Context) error {
		var err error
		opts, err = h.service.OpenManagement(ctx, uid)
		return err
	})
	if err != nil {
		log.Error("failed to open management", sl.Err(err))
		h.shell.Push("Error opening subscription management", models.SeverityError)
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not open subscription management"))
		return
	}

	render.JSON(w, r, response.OKWithData(opts))
}
