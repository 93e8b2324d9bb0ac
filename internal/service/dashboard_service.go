package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"modulon/internal/common"
	"modulon/internal/model"
	"modulon/internal/ports"
	"modulon/internal/security"
)

// DashboardUpdate изменение личного кабинета. RoleSubmitted выставляется, если в запросе было поле role
type DashboardUpdate struct {
	RoleSubmitted bool
	Account       model.AccountPatch
	Personal      model.PersonalDataPatch
}

type DashboardService struct {
	accounts ports.AccountRepositoryInterface
	hasher   ports.PasswordHasherInterface
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewDashboardService(accounts ports.AccountRepositoryInterface, hasher ports.PasswordHasherInterface, log logrus.FieldLogger) *DashboardService {
	return &DashboardService{
		accounts: accounts,
		hasher:   hasher,
		now:      time.Now,
		log:      log,
	}
}

// Get возвращает личный кабинет, при первом обращении создает пустую запись персональных данных
func (service *DashboardService) Get(ctx context.Context, accountID string) (*model.Dashboard, error) {
	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	personal, err := service.personalData(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &model.Dashboard{
		ID:           account.ID,
		Email:        account.Email,
		Username:     account.Username,
		Name:         account.Name,
		Role:         account.Role,
		LastLoginAt:  account.LastLoginAt,
		CreatedAt:    account.CreatedAt,
		PersonalData: *personal,
	}, nil
}

func (service *DashboardService) Update(ctx context.Context, accountID string, update DashboardUpdate) (string, error) {
	if update.RoleSubmitted {
		return "", common.SelfModificationForbidden("You cannot change your own role.")
	}
	if update.Personal.Gender.Set && !update.Personal.Gender.Null && !update.Personal.Gender.Value.Valid() {
		return "", common.BadRequest("Unknown gender.")
	}

	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}

	if !update.Account.Empty() {
		update.Account.Username.Apply(&account.Username)
		update.Account.Name.Apply(&account.Name)
		account.UpdatedAt = service.now()
		if err := service.accounts.Update(ctx, account); err != nil {
			return "", err
		}
	}

	if !update.Personal.Empty() {
		personal, err := service.personalData(ctx, accountID)
		if err != nil {
			return "", err
		}
		update.Personal.Apply(personal)
		if err := service.accounts.SavePersonalData(ctx, personal); err != nil {
			return "", err
		}
	}

	return "Profile updated successfully.", nil
}

func (service *DashboardService) ChangePassword(ctx context.Context, accountID string, currentPassword string, newPassword string) error {
	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.BadRequest("User does not exist.")
		}
		return err
	}

	valid, err := service.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrMalformedHash) {
		return fmt.Errorf("не удалось проверить пароль: %w", err)
	}
	if !valid {
		return common.Forbidden("Current password is incorrect.")
	}

	passwordHash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("ошибка хэширования пароля: %w", err)
	}

	account.PasswordHash = passwordHash
	account.UpdatedAt = service.now()
	return service.accounts.Update(ctx, account)
}

func (service *DashboardService) personalData(ctx context.Context, accountID string) (*model.PersonalData, error) {
	personal, err := service.accounts.FindPersonalData(ctx, accountID)
	if err == nil {
		return personal, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	personal = &model.PersonalData{AccountID: accountID}
	if err := service.accounts.SavePersonalData(ctx, personal); err != nil {
		return nil, fmt.Errorf("не удалось создать персональные данные: %w", err)
	}
	return personal, nil
}
