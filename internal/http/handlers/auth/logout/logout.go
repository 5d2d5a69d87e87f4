// Package logout реализует HTTP-обработчик выхода из системы.
package logout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/paylab/subscription-sandbox/internal/http/response"
	"github.com/paylab/subscription-sandbox/internal/models"
)

// Handler обрабатывает HTTP-запросы выхода.
type Handler struct {
	log     *slog.Logger
	service Service
	shell   Shell
}

// Service описывает интерфейс сервиса сессии для выхода.
type Service interface {
	SignOut()
}

// Shell описывает интерфейс очереди тостов.
type Shell interface {
	Push(message, severity string)
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, shell Shell) *Handler {
	return &Handler{log: log, service: service, shell: shell}
}

// ServeHTTP godoc
// @Summary Выход из системы
// @Description Закрывает текущую сессию. Все живые подписки снимаются.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Успешный выход"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	h.service.SignOut()
	log.Info("logout success")
	h.shell.Push("Logged out successfully", models.SeveritySuccess)
	render.JSON(w, r, response.OK())
}
