package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/guildpulse/internal/domain"
)

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

type ValidatorOption func(*BaseValidator)

// WithIssuer требует совпадения iss (консоль подписывает своим именем).
func WithIssuer(iss string) ValidatorOption {
	return func(v *BaseValidator) { v.issuer = iss }
}

// WithLeeway допускает расхождение часов между консолью и analyzer.
func WithLeeway(d time.Duration) ValidatorOption {
	return func(v *BaseValidator) { v.leeway = d }
}

// BaseValidator проверяет RS256-токены консоли открытым ключом.
type BaseValidator struct {
	publicKey *rsa.PublicKey
	issuer    string
	leeway    time.Duration
}

func NewBaseValidator(pubKey *rsa.PublicKey, opts ...ValidatorOption) *BaseValidator {
	v := &BaseValidator{publicKey: pubKey}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyToken принимает как "Bearer <jwt>", так и голый токен.
// exp обязателен, алгоритм только RS256.
func (v *BaseValidator) VerifyToken(raw string) (*domain.CustomClaims, error) {
	tokenStr := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(tokenStr, "Bearer"); ok {
		tokenStr = strings.TrimSpace(rest)
	}
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	claims := &domain.CustomClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.publicKey, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: empty user_id", ErrInvalidToken)
	}
	return claims, nil
}

// ParseRSAPublicKey разбирает PEM открытого ключа (analyzer, проверка)
func ParseRSAPublicKey(pemData []byte) (*rsa.PublicKey, error) {
	if len(pemData) == 0 {
		return nil, errors.New("auth: public key PEM is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemData)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	return key, nil
}

// ParseRSAPrivateKey разбирает PEM закрытого ключа (только консоль, подпись)
func ParseRSAPrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	if len(pemData) == 0 {
		return nil, errors.New("auth: private key PEM is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemData)
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}
	return key, nil
}
