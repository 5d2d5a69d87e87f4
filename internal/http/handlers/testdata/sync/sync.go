// Package sync реализует HTTP-обработчик синхронизации данных профиля.
//
// Тело запроса — произвольный набор полей, дописываемых в документ
// пользователя; без тела обновляется только отметка времени.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/paylab/subscription-sandbox/internal/http/middlewarectx"
	"github.com/paylab/subscription-sandbox/internal/http/response"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/store"
)

// Handler обрабатывает HTTP-запросы синхронизации профиля.
type Handler struct {
	log     *slog.Logger
	service Service
	shell   Shell
}

// Service описывает интерфейс сервиса сессий для синхронизации профиля.
type Service interface {
	SyncUserData(ctx context.Context, uid string, fields store.Document) error
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
// @Summary Синхронизировать данные профиля
// @Description Дописывает переданные поля в документ пользователя и отмечает синхронизацию в ленте активности.
// @Tags Testing
// @Accept  json
// @Produce  json
// @Param request body object false "Поля профиля (опционально)"
// @Success 200 {object} response.Response "Профиль синхронизирован"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка синхронизации"
// @Security BearerAuth
// @Router /test/sync [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.testdata.sync"
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

	fields := store.Document{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	err := h.shell.Do(r.Context(), func(ctx context.Context) error {
		return h.service.SyncUserData(ctx, uid, fields)
	})
	if err != nil {
		log.Error("failed to sync user data", sl.Err(err))
		h.shell.Push("Error syncing profile data", models.SeverityError)
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not sync user data"))
		return
	}

	log.Info("user data synced", slog.String("uid", uid), slog.Int("fields", len(fields)))
	h.shell.Push("Profile data synchronized!", models.SeveritySuccess)
	render.JSON(w, r, response.OK())
}
