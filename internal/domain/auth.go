package domain

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Права модераторов в консоли
const (
	ScopeAnalysisRun  = "analysis.run"
	ScopeAnalysisRead = "analysis.read"
	ScopeAlertsDecide = "alerts.decide"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // "analysis.run": true
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

// Moderator — учетная запись оператора консоли (не участник гильдии).
type Moderator struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"` // Никогда не отправляем на фронт
	Role         string          `json:"role"`
	Scopes       map[string]bool `json:"scopes"`
	CreatedAt    time.Time       `json:"created_at"`
}
