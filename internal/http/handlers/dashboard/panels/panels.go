// Package panels реализует HTTP-обработчик снимка состояния дашборда.
//
// Handler собирает представление всех панелей из состояния сервиса живых
// обновлений, добавляет активные тосты и признак загрузки оболочки.
package panels

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/paylab/subscription-sandbox/internal/http/response"
	"github.com/paylab/subscription-sandbox/internal/services/realtime"
	"github.com/paylab/subscription-sandbox/internal/services/shell"
	"github.com/paylab/subscription-sandbox/internal/views"
)

// Handler обрабатывает HTTP-запросы снимка дашборда.
type Handler struct {
	log     *slog.Logger
	service Service
	shell   Shell
}

// Service описывает интерфейс сервиса живых обновлений для дашборда.
type Service interface {
	Panels() realtime.Panels
}

// Shell описывает интерфейс оболочки для дашборда.
type Shell interface {
	Active() []shell.Toast
	Loading() bool
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, sh Shell) *Handler {
	return &Handler{log: log, service: service, shell: sh}
}

// ServeHTTP godoc
// @Summary Снимок дашборда
// @Description Возвращает представление всех панелей, активные тосты и признак загрузки.
// @Tags Dashboard
// @Produce  json
// @Success 200 {object} views.DashboardView "Состояние дашборда"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Security BearerAuth
// @Router /dashboard/panels [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.panels"
	h.log.Debug("dashboard snapshot requested",
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	render.JSON(w, r, response.OKWithData(Render(h.service, h.shell)))
}

// Render строит представление дашборда из состояния сервисов.
func Render(service Service, sh Shell) views.DashboardView {
	p := service.Panels()
	view := views.RenderDashboard(p.Identity, p.Subscription, p.Updates, p.Events)
	for _, toast := range sh.Active() {
		view.Toasts = append(view.Toasts, views.ToastView{
			Message:  toast.Message,
			Severity: toast.Severity,
		})
	}
	view.Loading = sh.Loading()
	return view
}
