// Package register реализует HTTP-обработчик регистрации пользователя.
//
// Handler принимает JSON с именем, почтой и паролем, валидирует их,
// создает учетную запись через сервис сессии и возвращает JWT открытой сессии.
// Ошибки провайдера идентичности переводятся в сообщения для пользователя
// и дублируются тостом оболочки.
package register

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/paylab/subscription-sandbox/internal/auth"
	"github.com/paylab/subscription-sandbox/internal/http/response"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/models"
)

// Handler обрабатывает HTTP-запросы регистрации.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис сессии
	shell    Shell               // Очередь тостов оболочки
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс сервиса сессии для регистрации.
type Service interface {
	Register(ctx context.Context, name, email, password string) (*models.Identity, string, error)
}

// Shell описывает интерфейс оболочки: тосты и защитный счетчик загрузки.
type Shell interface {
	Push(message, severity string)
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, shell Shell) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		shell:    shell,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация пользователя
// @Description Создает учетную запись и открывает сессию. Возвращает JWT сессии.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.DummyRegister true "Данные регистрации"
// @Success 200 {object} map[string]any "Успешная регистрация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или отклоненная регистрация"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyRegister
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

	var identity *models.Identity
	var token string
	err := h.shell.Do(r.Context(), func(ctx context.Context) error {
		var err error
		identity, token, err = h.service.Register(ctx, req.Name, req.Email, req.Password)
		return err
	})
	if err != nil {
		msg := auth.FriendlyMessage(err)
		log.Error("registration failed", sl.Err(err))
		h.shell.Push(msg, models.SeverityError)
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("registration success", slog.String("uid", identity.UID))
	h.shell.Push("Account created successfully!", models.SeveritySuccess)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":        token,
		"uid":          identity.UID,
		"email":        identity.Email,
		"display_name": identity.DisplayName,
	}))
}
