package service

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/infra/auth"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenTTL = 8 * time.Hour
	tokenIssuer     = "guildpulse-console"
)

type AuthProvider interface {
	GetModeratorByUsername(ctx context.Context, username string) (*domain.Moderator, error)
}

// AuthService выдает токены модераторам и сам же их проверяет (BaseValidator).
type AuthService struct {
	*auth.BaseValidator
	repo       AuthProvider
	privateKey *rsa.PrivateKey
	ttl        time.Duration
	now        func() time.Time
}

func NewAuthService(repo AuthProvider, privateKey *rsa.PrivateKey, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthService{
		BaseValidator: auth.NewBaseValidator(&privateKey.PublicKey, auth.WithIssuer(tokenIssuer)),
		repo:          repo,
		privateKey:    privateKey,
		ttl:           ttl,
		now:           time.Now,
	}
}

func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (*domain.TokenResponse, error) {
	// 1. Аутентификация (Источник правды — хранилище)
	m, err := s.repo.GetModeratorByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("auth_service: lookup moderator: %w", err)
	}
	if m == nil {
		return nil, domain.ErrInvalidCredentials
	}

	// 2. Проверка пароля (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	// 3. Scopes берем из прав модератора в БД
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := &domain.CustomClaims{
		UserID: m.ID,
		Scopes: m.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   m.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	// 4. Подпись ЗАКРЫТЫМ КЛЮЧОМ (RS256)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
	}, nil
}

// HashPassword — для заведения модераторов (seed, миграции).
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
