package ports

import (
	"context"
	"time"

	"modulon/internal/model"
)

type AccountRepositoryInterface interface {
	Create(ctx context.Context, account *model.Account) error
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	// FindConfirmedByEmail ищет аккаунт с подтвержденным email, используется при входе
	FindConfirmedByEmail(ctx context.Context, email string) (*model.Account, error)
	Update(ctx context.Context, account *model.Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter model.AccountFilter) ([]model.Account, int, error)

	RecordLogin(ctx context.Context, id string, at time.Time) error
	IncrementFailedLogins(ctx context.Context, id string) error
	ConfirmEmail(ctx context.Context, id string, at time.Time) error

	FindPersonalData(ctx context.Context, accountID string) (*model.PersonalData, error)
	SavePersonalData(ctx context.Context, data *model.PersonalData) error
}

type SessionRepositoryInterface interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Rotate атомарно заменяет хэш токена и продлевает сессию, только если текущий хэш равен expectedHash
	// и сессия не истекла к моменту now. Возвращает false, если условие не выполнено
	Rotate(ctx context.Context, id string, expectedHash string, newHash string, expiresAt time.Time, now time.Time) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
	DeleteExpiredByAccount(ctx context.Context, accountID string, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	List(ctx context.Context, filter model.SessionFilter) ([]model.SessionView, int, error)
}

type VerificationRepositoryInterface interface {
	Create(ctx context.Context, token *model.VerificationToken) error
	FindValid(ctx context.Context, tokenHash string, tokenType model.VerificationType, now time.Time) (*model.VerificationToken, error)
	// Consume удаляет токен и подтверждает email аккаунта атомарно.
	// Возвращает false, если токен уже использован; при ошибке токен остается на месте
	Consume(ctx context.Context, id string, accountID string, at time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// VerificationMessage письмо с кодом подтверждения email
type VerificationMessage struct {
	AccountID string
	Email     string
	Token     string
	Link      string
	ExpiresAt time.Time
}

type MailerInterface interface {
	SendVerification(ctx context.Context, message VerificationMessage) error
}

// AddressChange refresh-токен сессии предъявлен с ip, отличного от ip входа
type AddressChange struct {
	AccountID  string
	SessionID  string
	PreviousIP string
	CurrentIP  string
}

type AlertNotifierInterface interface {
	NotifyAddressChange(ctx context.Context, change AddressChange) error
}

type PasswordHasherInterface interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
}
