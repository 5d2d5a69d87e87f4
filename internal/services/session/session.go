// Package session управляет жизненным циклом сессии пользователя: вход,
// регистрация, федеративный вход и выход. Сервис держит текущую идентичность
// в памяти, рассылает ее изменения подписчикам и сопровождает каждую сессию
// контекстом времени жизни, который отменяется при выходе.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	jwtlib "github.com/paylab/subscription-sandbox/internal/lib/jwt"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/store"
)

// IdentityProvider контракт провайдера идентичности.
type IdentityProvider interface {
	Register(ctx context.Context, name, email, password string) (*models.Identity, error)
	Login(ctx context.Context, email, password string) (*models.Identity, error)
	Federated(ctx context.Context, provider string) (*models.Identity, error)
}

// Listener получает новую идентичность при каждом изменении состояния сессии.
// nil означает выход из системы.
type Listener func(identity *models.Identity)

// Handle отменяемая подписка на изменения идентичности.
type Handle interface {
	Cancel()
}

// Service сервис сессии.
type Service struct {
	log        *slog.Logger
	provider   IdentityProvider
	store      store.Store
	tokenMaker jwtlib.Maker

	mu             sync.Mutex
	identity       *models.Identity
	lifetimeCtx    context.Context
	lifetimeCancel context.CancelFunc
	listeners      []*listenerEntry
	nextListenerID int64
}

type listenerEntry struct {
	id int64
	fn Listener
}

// New создает сервис сессии в состоянии «не авторизован».
func New(log *slog.Logger, provider IdentityProvider, st store.Store, maker jwtlib.Maker) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // нет сессии — нет действующего времени жизни
	return &Service{
		log:            log,
		provider:       provider,
		store:          st,
		tokenMaker:     maker,
		lifetimeCtx:    ctx,
		lifetimeCancel: cancel,
	}
}

// Register создает учетную запись и открывает сессию.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.Identity, string, error) {
	const op = "services.session.Register"

	identity, err := s.provider.Register(ctx, name, email, password)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.open(ctx, identity)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return identity, token, nil
}

// Login открывает сессию по почте и паролю.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Identity, string, error) {
	const op = "services.session.Login"

	identity, err := s.provider.Login(ctx, email, password)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.open(ctx, identity)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return identity, token, nil
}

// Federated открывает сессию через внешнего провайдера.
func (s *Service) Federated(ctx context.Context, provider string) (*models.Identity, string, error) {
	const op = "services.session.Federated"

	identity, err := s.provider.Federated(ctx, provider)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.open(ctx, identity)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return identity, token, nil
}

// SignOut закрывает сессию: отменяет время жизни, сбрасывает идентичность
// и уведомляет подписчиков.
func (s *Service) SignOut() {
	s.mu.Lock()
	s.lifetimeCancel()
	s.identity = nil
	s.mu.Unlock()

	s.notify(nil)
	s.log.Info("session closed")
}

// Current возвращает текущую идентичность либо nil.
func (s *Service) Current() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Lifetime возвращает контекст времени жизни текущей сессии.
// Контекст отменяется при выходе; фоновые записи от имени сессии обязаны
// использовать его, чтобы не пережить ее.
func (s *Service) Lifetime() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifetimeCtx
}

// OnIdentityChange подписывает колбек на изменения идентичности.
// Колбек немедленно вызывается с текущим состоянием, далее — при каждом
// изменении, синхронно и в порядке регистрации подписчиков.
func (s *Service) OnIdentityChange(fn Listener) Handle {
	s.mu.Lock()
	s.nextListenerID++
	entry := &listenerEntry{id: s.nextListenerID, fn: fn}
	s.listeners = append(s.listeners, entry)
	current := s.identity
	s.mu.Unlock()

	fn(current)
	return &listenerHandle{s: s, id: entry.id}
}

// SyncUserData дописывает поля в профиль пользователя и отмечает
// синхронизацию в ленте активности.
func (s *Service) SyncUserData(ctx context.Context, uid string, fields store.Document) error {
	const op = "services.session.SyncUserData"

	merged := store.Document{"updatedAt": time.Now().UTC().Format(time.RFC3339Nano)}
	for k, v := range fields {
		merged[k] = v
	}
	if err := s.store.Set(ctx, store.CollectionUsers, uid, merged, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	entry, err := store.Encode(models.ActivityUpdate{
		UserID:    uid,
		Message:   "User data synchronized",
		Severity:  models.SeverityInfo,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.store.Add(ctx, store.CollectionRealtimeUpdates, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// open фиксирует новую идентичность: обновляет проекцию профиля, выпускает
// токен, запускает новое время жизни и уведомляет подписчиков.
func (s *Service) open(ctx context.Context, identity *models.Identity) (string, error) {
	if err := s.ensureProfile(ctx, identity); err != nil {
		return "", err
	}
	token, err := s.tokenMaker.GenerateToken(identity.UID, identity.Email, identity.DisplayName)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.lifetimeCancel()
	s.lifetimeCtx, s.lifetimeCancel = context.WithCancel(context.Background())
	s.identity = identity
	s.mu.Unlock()

	s.notify(identity)
	s.log.Info("session opened", slog.String("uid", identity.UID))
	return token, nil
}

// ensureProfile создает или дописывает проекцию профиля в коллекции users.
// При первом входе проставляются значения по умолчанию: статус подписки
// none и пустой план.
func (s *Service) ensureProfile(ctx context.Context, identity *models.Identity) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	fields := store.Document{
		"uid":         identity.UID,
		"email":       identity.Email,
		"displayName": identity.DisplayName,
		"lastLogin":   now,
		"updatedAt":   now,
	}
	if identity.PhotoURL != nil {
		fields["photoURL"] = *identity.PhotoURL
	}

	if _, err := s.store.Get(ctx, store.CollectionUsers, identity.UID); err != nil {
		fields["createdAt"] = now
		fields["subscriptionStatus"] = models.StatusNone
		fields["subscriptionPlan"] = nil
	}
	return s.store.Set(ctx, store.CollectionUsers, identity.UID, fields, true)
}

// notify рассылает новое состояние подписчикам в порядке их регистрации.
func (s *Service) notify(identity *models.Identity) {
	s.mu.Lock()
	entries := make([]*listenerEntry, len(s.listeners))
	copy(entries, s.listeners)
	s.mu.Unlock()

	for _, e := range entries {
		e.fn(identity)
	}
}

type listenerHandle struct {
	s    *Service
	id   int64
	once sync.Once
}

// Cancel снимает подписку на изменения идентичности.
func (h *listenerHandle) Cancel() {
	h.once.Do(func() {
		h.s.mu.Lock()
		defer h.s.mu.Unlock()
		for i, e := range h.s.listeners {
			if e.id == h.id {
				h.s.listeners = append(h.s.listeners[:i], h.s.listeners[i+1:]...)
				break
			}
		}
	})
}
