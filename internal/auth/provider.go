// Package auth реализует локального провайдера идентичности песочницы.
//
// Учетные записи хранятся в документном хранилище отдельно от проекций
// профилей; пароли хранятся bcrypt-хешами. Ошибки провайдера несут
// машинные коды auth/<причина>, которые верхние слои переводят
// в сообщения для пользователя.
package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paylab/subscription-sandbox/internal/lib/password"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/store"
)

// CollectionAccounts коллекция учетных записей провайдера.
const CollectionAccounts = "auth_accounts"

const minPasswordLen = 6

// account учетная запись в хранилище.
type account struct {
	UID           string     `json:"uid"`
	Email         string     `json:"email"`
	DisplayName   string     `json:"displayName"`
	PhotoURL      *string    `json:"photoURL"`
	PasswordHash  string     `json:"passwordHash,omitempty"`
	Provider      string     `json:"provider"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastSignInAt  *time.Time `json:"lastSignInAt,omitempty"`
}

// Provider локальный провайдер идентичности поверх документного хранилища.
type Provider struct {
	store store.Store
}

// New создает провайдера идентичности.
func New(st store.Store) *Provider {
	return &Provider{store: st}
}

// Register создает учетную запись по почте и паролю и возвращает идентичность.
func (p *Provider) Register(ctx context.Context, name, email, pass string) (*models.Identity, error) {
	const op = "auth.Register"

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, NewCodeError(CodeInvalidEmail))
	}
	if len(pass) < minPasswordLen {
		return nil, fmt.Errorf("%s: %w", op, NewCodeError(CodeWeakPassword))
	}
	if _, err := p.findByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%s: %w", op, NewCodeError(CodeEmailInUse))
	}

	hash, err := password.GetHash(pass)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	acc := account{
		UID:          uuid.New().String(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Provider:     "password",
		CreatedAt:    now,
		LastSignInAt: &now,
	}
	if err := p.save(ctx, acc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return identityOf(acc), nil
}

// Login проверяет пароль и возвращает идентичность учетной записи.
func (p *Provider) Login(ctx context.Context, email, pass string) (*models.Identity, error) {
	const op = "auth.Login"

	acc, err := p.findByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, NewCodeError(CodeUserNotFound))
	}
	if err := password.CompareHash(acc.PasswordHash, pass); err != nil {
		return nil, fmt.Errorf("%s: %w", op, NewCodeError(CodeWrongPassword))
	}

	now := time.Now().UTC()
	acc.LastSignInAt = &now
	if err := p.save(ctx, *acc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return identityOf(*acc), nil
}

// Federated выполняет вход через внешнего провайдера. В песочнице внешний
// провайдер синтезируется: учетная запись создается при первом входе
// с подтвержденной почтой вида <provider>.user@example.com.
func (p *Provider) Federated(ctx context.Context, provider string) (*models.Identity, error) {
	const op = "auth.Federated"

	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, fmt.Errorf("%s: provider is empty", op)
	}

	email := provider + ".user@example.com"
	now := time.Now().UTC()
	if acc, err := p.findByEmail(ctx, email); err == nil {
		acc.LastSignInAt = &now
		if err := p.save(ctx, *acc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return identityOf(*acc), nil
	}

	photo := "https://avatars.example.com/" + provider + ".png"
	acc := account{
		UID:           uuid.New().String(),
		Email:         email,
		DisplayName:   capitalize(provider) + " User",
		PhotoURL:      &photo,
		Provider:      provider,
		EmailVerified: true,
		CreatedAt:     now,
		LastSignInAt:  &now,
	}
	if err := p.save(ctx, acc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return identityOf(acc), nil
}

func (p *Provider) findByEmail(ctx context.Context, email string) (*account, error) {
	docs, err := p.store.Documents(ctx, store.NewQuery(CollectionAccounts).Where("email", email))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	var acc account
	if err := store.Decode(docs[0].Data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (p *Provider) save(ctx context.Context, acc account) error {
	doc, err := store.Encode(acc)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, CollectionAccounts, acc.UID, doc, false)
}

func identityOf(acc account) *models.Identity {
	return &models.Identity{
		UID:           acc.UID,
		Email:         acc.Email,
		DisplayName:   acc.DisplayName,
		PhotoURL:      acc.PhotoURL,
		EmailVerified: acc.EmailVerified,
		LastSignInAt:  acc.LastSignInAt,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
