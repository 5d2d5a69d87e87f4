// Package webhooksim реализует HTTP-обработчик симуляции вебхук-событий.
//
// С телом запроса синтезируется одно событие указанного типа; без тела —
// стандартная серия из успешного платежа, обновления подписки и неуспешного
// платежа.
package webhooksim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/paylab/subscription-sandbox/internal/http/response"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/models"
)

// Handler обрабатывает HTTP-запросы симуляции вебхуков.
type Handler struct {
	log      *slog.Logger
	service  Service
	session  Session
	shell    Shell
	validate *validator.Validate
}

// Service описывает интерфейс сервиса биллинга для симуляции вебхуков.
type Service interface {
	SimulateWebhook(ctx context.Context, identity *models.Identity, eventType, description string, payload map[string]any) error
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

// Стандартная серия событий для симуляции без тела запроса.
var defaultSeries = []models.DummyWebhook{
	{Type: "invoice.payment_succeeded", Payload: map[string]any{"amount": 19}},
	{Type: "customer.subscription.updated", Payload: map[string]any{"subscription": map[string]any{"planName": "Pro"}}},
	{Type: "invoice.payment_failed", Payload: map[string]any{"amount": 19}},
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, session Session, shell Shell) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		session:  session,
		shell:    shell,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Симулировать вебхук-события
// @Description Синтезирует вебхук-событие указанного типа либо стандартную серию событий.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body models.DummyWebhook false "Событие для симуляции (опционально)"
// @Success 200 {object} map[string]any "События симулированы"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка симуляции"
// @Security BearerAuth
// @Router /billing/simulate/webhooks [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhooksim"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity := h.session.Current()
	if identity == nil {
		log.Error("no open session")
		h.shell.Push("Please log in first", models.SeverityWarning)
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	events := defaultSeries
	var req models.DummyWebhook
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		if err := h.validate.Struct(req); err != nil {
			log.Error("validation failed", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
			return
		}
		events = []models.DummyWebhook{req}
	} else if !errors.Is(err, io.EOF) {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	err := h.shell.Do(r.Context(), func(ctx context.Context) error {
		for _, event := range events {
			if err := h.service.SimulateWebhook(ctx, identity, event.Type, event.Description, event.Payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to simulate webhook", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not simulate webhook events"))
		return
	}

	log.Info("webhook events simulated", slog.Int("count", len(events)))
	h.shell.Push("Webhook events simulated!", models.SeveritySuccess)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"simulated": len(events),
	}))
}
