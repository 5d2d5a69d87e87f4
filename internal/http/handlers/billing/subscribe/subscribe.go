// Package subscribe реализует HTTP-обработчик запуска подписки на план.
//
// Handler принимает JSON с идентификатором цены, валидирует его и запускает
// подписку через сервис биллинга под защитным счетчиком загрузки оболочки.
// Возвращает идентификатор сессии оплаты и данные плана.
package subscribe

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/paylab/subscription-sandbox/internal/http/response"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/services/billing"
)

// Handler обрабатывает HTTP-запросы запуска подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	session  Session
	shell    Shell
	validate *validator.Validate
}

// Service описывает интерфейс сервиса биллинга для запуска подписки.
type Service interface {
	StartSubscription(ctx context.Context, identity *models.Identity, priceID string) (string, *models.Plan, error)
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
// @Summary Подписаться на план
// @Description Создает сессию оплаты, фиксирует подписку и обновляет профиль. Возвращает идентификатор сессии оплаты.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body models.DummySubscribe true "Идентификатор цены плана"
// @Success 200 {object} map[string]any "Подписка оформлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неизвестный план"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка оформления подписки"
// @Security BearerAuth
// @Router /billing/subscribe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.subscribe"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummySubscribe
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	identity := h.session.Current()
	if identity == nil {
		log.Error("no open session")
		h.shell.Push("Please log in to subscribe", models.SeverityWarning)
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var sessionID string
	var plan *models.Plan
	err := h.shell.Do(r.Context(), func(ctx context.Context) error {
		var err error
		sessionID, plan, err = h.service.StartSubscription(ctx, identity, req.PriceID)
		return err
	})
	if err != nil {
		if errors.Is(err, billing.ErrUnknownPlan) {
			log.Error("unknown plan", slog.String("price_id", req.PriceID))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("unknown plan"))
			return
		}
		log.Error("failed to start subscription", sl.Err(err))
		h.shell.Push("Error creating subscription. Please try again.", models.SeverityError)
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not start subscription"))
		return
	}

	log.Info("subscription started", slog.String("plan", plan.Name))
	h.shell.Push("Successfully subscribed to "+plan.Name+" plan!", models.SeveritySuccess)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"session_id": sessionID,
		"plan_name":  plan.Name,
		"amount":     plan.Amount,
		"currency":   plan.Currency,
	}))
}
