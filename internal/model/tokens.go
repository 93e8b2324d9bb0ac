package model

import "time"

// TokensPair содержит пару access и refresh токенов.
// Пара никогда не попадает в тело ответа, клиент получает ее только в http-only cookie
type TokensPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthResult результат входа или обновления токенов
type AuthResult struct {
	Account   AccountSummary
	SessionID string
	Tokens    TokensPair
}

type VerificationType string

const (
	VerificationEmailConfirmation VerificationType = "EMAIL_CONFIRMATION"
)

// VerificationToken одноразовый код подтверждения email. Сам код не хранится, только его sha256
type VerificationToken struct {
	ID        string           `db:"id"`
	AccountID string           `db:"account_id"`
	TokenHash string           `db:"token_hash"`
	Type      VerificationType `db:"type"`
	ExpiresAt time.Time        `db:"expires_at"`
	CreatedAt time.Time        `db:"created_at"`
}
