// Package roundtrip реализует HTTP-обработчик проверки доступности хранилища.
//
// Проверка выполняет круговую запись: документ добавляется в служебную
// коллекцию, читается и удаляется.
package roundtrip

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

// Handler обрабатывает HTTP-запросы проверки хранилища.
type Handler struct {
	log     *slog.Logger
	service Service
	shell   Shell
}

// Service описывает интерфейс сервиса живых обновлений для проверки хранилища.
type Service interface {
	CheckConnection(ctx context.Context) error
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
// @Summary Проверить доступность хранилища
// @Description Выполняет круговую запись в служебную коллекцию хранилища.
// @Tags Testing
// @Produce  json
// @Success 200 {object} response.Response "Хранилище доступно"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Хранилище недоступно"
// @Security BearerAuth
// @Router /test/roundtrip [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.testdata.roundtrip"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	err := h.shell.Do(r.Context(), func(ctx context.Context) error {
		return h.service.CheckConnection(ctx)
	})
	if err != nil {
		log.Error("storage round trip failed", sl.Err(err))
		h.shell.Push("Storage connection failed", models.SeverityError)
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("storage is unavailable"))
		return
	}

	log.Info("storage round trip succeeded")
	h.shell.Push("Storage connection successful!", models.SeveritySuccess)
	render.JSON(w, r, response.OK())
}
