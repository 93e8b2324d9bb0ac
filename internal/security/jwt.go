package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"modulon/internal/model"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

var (
	ErrInvalidToken   = errors.New("невалидный токен")
	ErrWrongTokenKind = errors.New("неверный тип токена")
)

// TokenKind различает access и refresh токены с одинаковым набором утверждений
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims общий набор утверждений обоих токенов пары.
// Subject содержит id аккаунта, ID (jti) уникален для каждого выпущенного токена.
// Email и Role заполняются только в access-токене
type Claims struct {
	Kind      TokenKind  `json:"typ"`
	Email     string     `json:"email,omitempty"`
	Role      model.Role `json:"role,omitempty"`
	SessionID string     `json:"sid"`
	jwt.RegisteredClaims
}

func (c *Claims) AccountID() string {
	return c.Subject
}

// TokenIssuer подписывает и проверяет токены. Access и refresh подписываются разными ключами
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

type TokenIssuerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("секреты токенов не заданы")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("секреты access и refresh токенов должны различаться")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("время жизни токенов должно быть положительным")
	}

	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}, nil
}

// WithClock подменяет источник времени, используется в тестах
func (issuer *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	issuer.now = now
	return issuer
}

func (issuer *TokenIssuer) Now() time.Time            { return issuer.now() }
func (issuer *TokenIssuer) AccessTTL() time.Duration  { return issuer.accessTTL }
func (issuer *TokenIssuer) RefreshTTL() time.Duration { return issuer.refreshTTL }

// SignAccess подписывает access-токен и возвращает его вместе со временем истечения
func (issuer *TokenIssuer) SignAccess(account model.AccountSummary, sessionID string) (string, time.Time, error) {
	now := issuer.now()
	expiresAt := now.Add(issuer.accessTTL)

	claims := &Claims{
		Kind:             TokenKindAccess,
		Email:            account.Email,
		Role:             account.Role,
		SessionID:        sessionID,
		RegisteredClaims: issuer.registeredClaims(account.ID, now, expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(issuer.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи access токена: %w", err)
	}
	return token, expiresAt, nil
}

// SignRefresh подписывает refresh-токен. Время истечения задается явно, чтобы совпадать с записью сессии
func (issuer *TokenIssuer) SignRefresh(accountID string, sessionID string, expiresAt time.Time) (string, error) {
	claims := &Claims{
		Kind:             TokenKindRefresh,
		SessionID:        sessionID,
		RegisteredClaims: issuer.registeredClaims(accountID, issuer.now(), expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(issuer.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи refresh токена: %w", err)
	}
	return token, nil
}

// ParseAccess проверяет подпись и срок действия access-токена без обращения к хранилищу
func (issuer *TokenIssuer) ParseAccess(tokenString string) (*Claims, error) {
	return issuer.parse(tokenString, issuer.accessSecret, TokenKindAccess)
}

func (issuer *TokenIssuer) ParseRefresh(tokenString string) (*Claims, error) {
	return issuer.parse(tokenString, issuer.refreshSecret, TokenKindRefresh)
}

// ParseRefreshIgnoringExpiry проверяет только подпись refresh-токена.
// Нужен для выхода: просроченный токен все еще указывает, какую сессию удалить
func (issuer *TokenIssuer) ParseRefreshIgnoringExpiry(tokenString string) (*Claims, error) {
	return issuer.parse(tokenString, issuer.refreshSecret, TokenKindRefresh, jwt.WithoutClaimsValidation())
}

func (issuer *TokenIssuer) registeredClaims(subject string, now time.Time, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    issuer.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (issuer *TokenIssuer) parse(tokenString string, secret []byte, kind TokenKind, extra ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}

	options := []jwt.ParserOption{
		jwt.WithTimeFunc(issuer.now),
		jwt.WithExpirationRequired(),
	}
	options = append(options, extra...)

	jwtToken, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Header["alg"] != jwt.SigningMethodHS512.Alg() {
			return nil, fmt.Errorf("неверный способ подписи токена: %v", token.Header["alg"])
		}
		return secret, nil
	}, options...)
	if err != nil || !jwtToken.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: отсутствуют обязательные утверждения", ErrInvalidToken)
	}

	return claims, nil
}
