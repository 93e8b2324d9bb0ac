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
	"modulon/internal/security"
)

// CreateAccountInput данные аккаунта, создаваемого администратором
type CreateAccountInput struct {
	Email            string
	Password         string
	Username         *string
	Name             *string
	Role             *model.Role
	IsEmailConfirmed bool
}

// UpdateAccountInput частичное обновление аккаунта администратором.
// nil и пустые строки означают "не менять"
type UpdateAccountInput struct {
	Username            *string
	Name                *string
	Password            *string
	Role                *model.Role
	IsActive            *bool
	IsBlocked           *bool
	IsEmailConfirmed    *bool
	FailedLoginAttempts *int
}

// UserService административное управление аккаунтами
type UserService struct {
	accounts ports.AccountRepositoryInterface
	hasher   ports.PasswordHasherInterface
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewUserService(accounts ports.AccountRepositoryInterface, hasher ports.PasswordHasherInterface, log logrus.FieldLogger) *UserService {
	return &UserService{
		accounts: accounts,
		hasher:   hasher,
		now:      time.Now,
		log:      log,
	}
}

func (service *UserService) Get(ctx context.Context, id string) (model.AccountView, error) {
	account, err := service.accounts.FindByID(ctx, id)
	if err != nil {
		return model.AccountView{}, err
	}
	return account.View(), nil
}

func (service *UserService) List(ctx context.Context, filter model.AccountFilter) (model.Page[model.AccountView], error) {
	page, limit := model.NormalizePaging(filter.Page, filter.Limit, model.DefaultPageLimit)
	filter.Page, filter.Limit = page, limit

	accounts, total, err := service.accounts.List(ctx, filter)
	if err != nil {
		return model.Page[model.AccountView]{}, fmt.Errorf("не удалось получить список аккаунтов: %w", err)
	}

	views := make([]model.AccountView, 0, len(accounts))
	for i := range accounts {
		views = append(views, accounts[i].View())
	}
	return model.NewPage(views, total, page, limit), nil
}

func (service *UserService) Create(ctx context.Context, actor model.AccountSummary, input CreateAccountInput) (string, error) {
	role := model.RoleUser
	if input.Role != nil {
		if err := security.CheckRoleAssignment(actor.Role, *input.Role); err != nil {
			return "", err
		}
		role = *input.Role
	}

	passwordHash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}

	now := service.now()
	account := &model.Account{
		Email:            normalizeEmail(input.Email),
		Username:         input.Username,
		Name:             input.Name,
		PasswordHash:     passwordHash,
		Role:             role,
		IsActive:         true,
		IsEmailConfirmed: input.IsEmailConfirmed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if input.IsEmailConfirmed {
		account.EmailVerifiedAt = &now
	}

	if err := service.accounts.Create(ctx, account); err != nil {
		return "", err
	}

	service.log.WithFields(logrus.Fields{"account_id": account.ID, "actor_id": actor.ID}).Info("аккаунт создан администратором")
	return fmt.Sprintf("User %s has been created.", account.Email), nil
}

func (service *UserService) Update(ctx context.Context, actor model.AccountSummary, id string, input UpdateAccountInput) (string, error) {
	if err := security.CheckNotSelf(actor.ID, id, security.SelfRoleChange); err != nil {
		return "", err
	}

	account, err := service.accounts.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	if input.Role != nil {
		if err := security.CheckRoleAssignment(actor.Role, *input.Role); err != nil {
			return "", err
		}
		account.Role = *input.Role
	}

	if value, ok := nonBlank(input.Name); ok {
		account.Name = &value
	}
	if value, ok := nonBlank(input.Username); ok {
		account.Username = &value
	}
	if value, ok := nonBlank(input.Password); ok {
		passwordHash, err := service.hasher.Hash(value)
		if err != nil {
			return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
		}
		account.PasswordHash = passwordHash
	}
	if input.IsActive != nil {
		account.IsActive = *input.IsActive
	}
	if input.IsBlocked != nil {
		account.IsBlocked = *input.IsBlocked
	}
	if input.FailedLoginAttempts != nil {
		account.FailedLoginAttempts = *input.FailedLoginAttempts
	}

	confirm := false
	if input.IsEmailConfirmed != nil {
		confirm = *input.IsEmailConfirmed && !account.IsEmailConfirmed
		account.IsEmailConfirmed = *input.IsEmailConfirmed
	}

	now := service.now()
	account.UpdatedAt = now
	if err := service.accounts.Update(ctx, account); err != nil {
		return "", err
	}
	if confirm {
		if err := service.accounts.ConfirmEmail(ctx, account.ID, now); err != nil {
			return "", fmt.Errorf("не удалось подтвердить email: %w", err)
		}
	}

	return fmt.Sprintf("User %s has been updated.", account.Email), nil
}

func (service *UserService) Block(ctx context.Context, actor model.AccountSummary, id string) (string, error) {
	if err := security.CheckNotSelf(actor.ID, id, security.SelfBlock); err != nil {
		return "", err
	}

	account, err := service.accounts.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	account.IsBlocked = true
	account.UpdatedAt = service.now()
	if err := service.accounts.Update(ctx, account); err != nil {
		return "", err
	}

	service.log.WithFields(logrus.Fields{"account_id": id, "actor_id": actor.ID}).Info("аккаунт заблокирован")
	return fmt.Sprintf("User %s has been blocked.", account.Email), nil
}

func (service *UserService) Delete(ctx context.Context, actor model.AccountSummary, id string) (string, error) {
	if err := security.CheckNotSelf(actor.ID, id, security.SelfDelete); err != nil {
		return "", err
	}

	if err := service.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.NotFound("User not found")
		}
		return "", err
	}

	service.log.WithFields(logrus.Fields{"account_id": id, "actor_id": actor.ID}).Info("аккаунт удален")
	return "User has been deleted.", nil
}

func nonBlank(value *string) (string, bool) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return "", false
	}
	return *value, true
}
