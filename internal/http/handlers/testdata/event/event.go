// Package event реализует HTTP-обработчик тестового вебхук-события.
//
// Без тела запроса тип и описание выбираются из стандартного пула панели
// тестирования.
package event

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

	"github.com/paylab/subscription-sandbox/internal/http/middlewarectx"
	"github.com/paylab/subscription-sandbox/internal/http/response"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/services/shell"
)

// Handler обрабатывает HTTP-запросы тестовых вебхук-событий.
type Handler struct {
	log      *slog.Logger
	service  Service
	shell    Shell
	validate *validator.Validate
}

// Service описывает интерфейс сервиса живых обновлений для тестовых событий.
type Service interface {
	CreateTestEvent(ctx context.Context, uid, eventType, description string) error
}

// Shell описывает интерфейс оболочки: тосты и защитный счетчик загрузки.
type Shell interface {
	Push(message, severity string)
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, sh Shell) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		shell:    sh,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Тестовое вебхук-событие
// @Description Пишет вебхук-событие в ленту пользователя. Без тела запроса событие берется из стандартного пула.
// @Tags Testing
// @Accept  json
// @Produce  json
// @Param request body models.DummyWebhook false "Событие (опционально)"
// @Success 200 {object} response.Response "Событие отправлено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка записи"
// @Security BearerAuth
// @Router /test/event [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.testdata.event"
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

	eventType, description := shell.RandomEvent()
	var req models.DummyWebhook
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		if err := h.validate.Struct(req); err != nil {
			log.Error("validation failed", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
			return
		}
		eventType = req.Type
		description = req.Description
	} else if !errors.Is(err, io.EOF) {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	err := h.shell.Do(r.Context(), func(ctx context.Context) error {
		return h.service.CreateTestEvent(ctx, uid, eventType, description)
	})
	if err != nil {
		log.Error("failed to create test event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create test event"))
		return
	}

	log.Info("test event created", slog.String("type", eventType))
	h.shell.Push("Webhook event simulated!", models.SeveritySuccess)
	render.JSON(w, r, response.OK())
}
