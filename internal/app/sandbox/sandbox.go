// Package sandbox собирает приложение песочницы: выбирает драйвер
// документного хранилища, поднимает кеш, реле вебхуков и HTTP-сервер.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/paylab/subscription-sandbox/internal/auth"
	"github.com/paylab/subscription-sandbox/internal/cache"
	"github.com/paylab/subscription-sandbox/internal/checkout"
	"github.com/paylab/subscription-sandbox/internal/config"
	jwtlib "github.com/paylab/subscription-sandbox/internal/lib/jwt"
	"github.com/paylab/subscription-sandbox/internal/lib/rabbitmq"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/relay"
	"github.com/paylab/subscription-sandbox/internal/services/billing"
	"github.com/paylab/subscription-sandbox/internal/services/realtime"
	"github.com/paylab/subscription-sandbox/internal/services/session"
	"github.com/paylab/subscription-sandbox/internal/services/shell"
	"github.com/paylab/subscription-sandbox/internal/store"
	storefirestore "github.com/paylab/subscription-sandbox/internal/store/firestore"
	"github.com/paylab/subscription-sandbox/internal/store/memory"
	storepostgres "github.com/paylab/subscription-sandbox/internal/store/postgres"
)

const (
	checkoutDelay = 300 * time.Millisecond
	planCacheTTL  = time.Hour
)

// App собранное приложение песочницы.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	store    store.Store
	realtime *realtime.Service
	rabbit   *amqp.Connection
	identity session.Handle
}

// New собирает приложение по конфигу: хранилище, кеш, реле, сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var planCache billing.PlanCache = cache.Nop{}
	if cfg.AddressRedis != "" {
		cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, err
		}
		planCache = cacheRedis
	}

	var events relay.EventSink = relay.NewStoreSink(st)
	var rabbitConn *amqp.Connection
	if cfg.ConnectionString != "" {
		rabbitConn, err = rabbitmq.Connect(cfg.ConnectionString, cfg.Retries, cfg.RetryDelay)
		if err != nil {
			return nil, err
		}
		ch, err := rabbitmq.SetupChannel(rabbitConn)
		if err != nil {
			return nil, err
		}
		if err := relay.RunConsumer(ctx, logger, ch, st); err != nil {
			return nil, err
		}
		events = relay.NewAMQPSink(ch)
	}

	tokenMaker := jwtlib.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	sessionService := session.New(logger, auth.New(st), st, tokenMaker)
	realtimeService := realtime.New(logger, st)
	billingService := billing.New(logger, st, checkout.NewSandbox(checkoutDelay), events, planCache, planCacheTTL)
	shellService := shell.New(logger, cfg.ToastTTL)

	// Сервис живых обновлений следует за состоянием сессии: вход ставит
	// подписки, выход снимает. Вход дополнительно прогревает кеш плана.
	identityHandle := sessionService.OnIdentityChange(func(identity *models.Identity) {
		realtimeService.HandleIdentity(identity)
		if identity != nil {
			if _, err := billingService.LoadCurrentPlan(sessionService.Lifetime(), identity.UID); err != nil {
				logger.Warn("failed to warm plan cache", sl.Err(err))
			}
		}
	})

	router := chi.NewRouter()
	RegisterRoutes(router, logger, tokenMaker, sessionService, realtimeService, billingService, shellService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		store:    st,
		realtime: realtimeService,
		rabbit:   rabbitConn,
		identity: identityHandle,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	a.identity.Cancel()
	a.realtime.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close store", sl.Err(err))
	}
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
}

// newStore создает драйвер документного хранилища по конфигу.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return memory.New(), nil
	case "postgres":
		return storepostgres.New(ctx, cfg.StorageConnectionString, cfg.MigrationsPath, logger)
	case "firestore":
		return storefirestore.New(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile, logger)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
