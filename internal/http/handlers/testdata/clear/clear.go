// Package clear реализует HTTP-обработчик очистки тестовых данных пользователя.
package clear

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
)

// Handler обрабатывает HTTP-запросы очистки тестовых данных.
type Handler struct {
	log     *slog.Logger
	service Service
	shell   Shell
}

// Service описывает интерфейс сервиса живых обновлений для очистки лент.
type Service interface {
	ClearTestData(ctx context.Context, uid string) error
}

// Shell описывает интерфейс оболочки: тосты и защитный счетчик загрузки.
type Shell interface {
	Push(message, severity string)
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, sh Shell) *Handler {
	return &Handler{log: log, service: service, shell: sh}
}

// ServeHTTP godoc
// @Summary Очистить тестовые данные
// @Description Удаляет записи лент активности и вебхук-событий текущего пользователя.
// @Tags Testing
// @Produce  json
// @Success 200 {object} response.Response "Данные очищены"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка очистки"
// @Security BearerAuth
// @Router /test/clear [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.testdata.clear"
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

	err := h.shell.Do(r.Context(), func(ctx context.Context) error {
		return h.service.ClearTestData(ctx, uid)
	})
	if err != nil {
		log.Error("failed to clear test data", sl.Err(err))
		h.shell.Push("Error clearing test data", models.SeverityError)
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not clear test data"))
		return
	}

	log.Info("test data cleared", slog.String("uid", uid))
	h.shell.Push("Test data cleared!", models.SeveritySuccess)
	render.JSON(w, r, response.OK())
}
