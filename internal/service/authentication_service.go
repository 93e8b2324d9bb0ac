package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"modulon/internal/common"
	"modulon/internal/model"
	"modulon/internal/ports"
)

const invalidCredentialsMessage = "Invalid credentials or email not verified"

type AuthenticationService struct {
	accounts     ports.AccountRepositoryInterface
	hasher       ports.PasswordHasherInterface
	tokens       *TokenService
	verification *VerificationService
	now          func() time.Time
	log          logrus.FieldLogger
}

func NewAuthenticationService(accounts ports.AccountRepositoryInterface, hasher ports.PasswordHasherInterface, tokens *TokenService, verification *VerificationService, log logrus.FieldLogger) *AuthenticationService {
	return &AuthenticationService{
		accounts:     accounts,
		hasher:       hasher,
		tokens:       tokens,
		verification: verification,
		now:          time.Now,
		log:          log,
	}
}

func (service *AuthenticationService) WithClock(now func() time.Time) *AuthenticationService {
	service.now = now
	return service
}

// Register создает неподтвержденный аккаунт с ролью USER и отправляет код подтверждения.
// Токены не выдаются до подтверждения email
func (service *AuthenticationService) Register(ctx context.Context, email string, password string) (string, error) {
	email = normalizeEmail(email)

	if _, err := service.accounts.FindByEmail(ctx, email); err == nil {
		return "", common.Conflict("User already exists")
	} else if !errors.Is(err, common.ErrNotFound) {
		return "", fmt.Errorf("не удалось проверить email: %w", err)
	}

	passwordHash, err := service.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}

	now := service.now()
	account := &model.Account{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := service.accounts.Create(ctx, account); err != nil {
		return "", err
	}

	if err := service.verification.SendVerificationCode(ctx, email); err != nil {
		service.log.WithError(err).WithField("account_id", account.ID).Error("не удалось отправить код подтверждения при регистрации")
	}

	return fmt.Sprintf("Verification code sent to %s", email), nil
}

// Login на любую причину отказа отвечает одним и тем же Unauthorized
func (service *AuthenticationService) Login(ctx context.Context, email string, password string, client model.ClientContext) (*model.AuthResult, error) {
	account, err := service.accounts.FindConfirmedByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Unauthorized(invalidCredentialsMessage)
		}
		return nil, fmt.Errorf("не удалось найти аккаунт: %w", err)
	}

	valid, err := service.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		service.log.WithError(err).WithField("account_id", account.ID).Error("не удалось проверить пароль")
		return nil, common.Unauthorized(invalidCredentialsMessage)
	}
	if !valid {
		if err := service.accounts.IncrementFailedLogins(ctx, account.ID); err != nil {
			service.log.WithError(err).WithField("account_id", account.ID).Warn("не удалось увеличить счетчик неудачных входов")
		}
		return nil, common.Unauthorized(invalidCredentialsMessage)
	}

	if !account.CanLogin() {
		return nil, common.Unauthorized(invalidCredentialsMessage)
	}

	if err := service.accounts.RecordLogin(ctx, account.ID, service.now()); err != nil {
		return nil, fmt.Errorf("не удалось сохранить время входа: %w", err)
	}

	return service.tokens.IssuePair(ctx, account, client)
}

func (service *AuthenticationService) Refresh(ctx context.Context, refreshToken string, client model.ClientContext) (*model.AuthResult, error) {
	return service.tokens.Rotate(ctx, refreshToken, client)
}

// normalizeEmail убирает пробелы по краям. Регистр сохраняется: email уникален с учетом регистра
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
