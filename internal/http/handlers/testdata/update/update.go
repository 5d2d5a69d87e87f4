// Package update реализует HTTP-обработчик тестовой записи в ленту активности.
//
// Без тела запроса сообщение и severity выбираются из стандартных пулов
// панели тестирования.
package update

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

// Handler обрабатывает HTTP-запросы тестовых записей ленты.
type Handler struct {
	log      *slog.Logger
	service  Service
	shell    Shell
	validate *validator.Validate
}

// Service описывает интерфейс сервиса живых обновлений для тестовых записей.
type Service interface {
	CreateTestUpdate(ctx context.Context, uid, message, severity string) error
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
// @Summary Тестовая запись в ленту активности
// @Description Пишет запись в ленту активности пользователя. Без тела запроса данные берутся из стандартных пулов.
// @Tags Testing
// @Accept  json
// @Produce  json
// @Param request body models.DummyTestUpdate false "Запись ленты (опционально)"
// @Success 200 {object} response.Response "Запись отправлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка записи"
// @Security BearerAuth
// @Router /test/update [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.testdata.update"
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

	message, severity := shell.RandomUpdate()
	var req models.DummyTestUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		if err := h.validate.Struct(req); err != nil {
			log.Error("validation failed", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
			return
		}
		message = req.Message
		if req.Severity != "" {
			severity = req.Severity
		}
	} else if !errors.Is(err, io.EOF) {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	err := h.shell.Do(r.Context(), func(ctx context.Context) error {
		return h.service.CreateTestUpdate(ctx, uid, message, severity)
	})
	if err != nil {
		log.Error("failed to create test update", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create test update"))
		return
	}

	log.Info("test update created", slog.String("message", message))
	h.shell.Push("Real-time update sent!", models.SeveritySuccess)
	render.JSON(w, r, response.OK())
}
