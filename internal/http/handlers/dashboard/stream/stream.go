// Package stream реализует HTTP-обработчик потока обновлений дашборда.
//
// Handler отдает состояние панелей через Server-Sent Events: первый кадр
// уходит сразу, последующие — после каждого изменения состояния сервиса
// живых обновлений. Перерисовка у клиента сводится к замене кадра целиком.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/paylab/subscription-sandbox/internal/http/handlers/dashboard/panels"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
)

const keepAliveInterval = 15 * time.Second

// Handler обрабатывает HTTP-запросы потока обновлений.
type Handler struct {
	log     *slog.Logger
	service Service
	shell   panels.Shell
}

// Service описывает интерфейс сервиса живых обновлений для потока.
type Service interface {
	panels.Service
	Subscribe() (<-chan struct{}, func())
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, sh panels.Shell) *Handler {
	return &Handler{log: log, service: service, shell: sh}
}

// ServeHTTP godoc
// @Summary Поток обновлений дашборда
// @Description Отдает состояние панелей через Server-Sent Events по мере изменений.
// @Tags Dashboard
// @Produce  text/event-stream
// @Success 200 {string} string "Поток событий panels"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Security BearerAuth
// @Router /dashboard/stream [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.stream"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("response writer does not support streaming")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	signals, cancel := h.service.Subscribe()
	defer cancel()

	if err := writeFrame(w, flusher, h.service, h.shell); err != nil {
		log.Error("failed to write initial frame", sl.Err(err))
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-signals:
			if err := writeFrame(w, flusher, h.service, h.shell); err != nil {
				log.Error("failed to write frame", sl.Err(err))
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, service Service, sh panels.Shell) error {
	data, err := json.Marshal(panels.Render(service, sh))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: panels\ndata: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
