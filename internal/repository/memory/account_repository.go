package memory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"modulon/internal/common"
	"modulon/internal/model"
)

type AccountRepository struct {
	store *Store
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.accounts {
		if existing.Email == account.Email {
			return common.Conflict("User already exists")
		}
	}

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	r.store.accounts[account.ID] = *account

	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	r.store.mu.RLock()
	account, ok := r.store.accounts[id]
	r.store.mu.RUnlock()

	if !ok {
		return nil, common.NotFound("User not found")
	}
	return &account, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.find(ctx, func(account model.Account) bool {
		return account.Email == email
	})
}

func (r *AccountRepository) FindConfirmedByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.find(ctx, func(account model.Account) bool {
		return account.Email == email && account.IsEmailConfirmed && account.EmailVerifiedAt != nil
	})
}

func (r *AccountRepository) find(ctx context.Context, match func(model.Account) bool) (*model.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, account := range r.store.accounts {
		if match(account) {
			return &account, nil
		}
	}
	return nil, common.NotFound("User not found")
}

func (r *AccountRepository) Update(ctx context.Context, account *model.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.accounts[account.ID]
	if !ok {
		return common.NotFound("User not found")
	}
	for id, existing := range r.store.accounts {
		if id != account.ID && existing.Email == account.Email {
			return common.Conflict("User already exists")
		}
	}

	updated := *account
	updated.CreatedAt = current.CreatedAt
	updated.LastLoginAt = current.LastLoginAt
	updated.EmailVerifiedAt = current.EmailVerifiedAt
	r.store.accounts[account.ID] = updated

	return nil
}

// Delete удаляет аккаунт вместе с его сессиями, токенами и персональными данными, как ON DELETE CASCADE
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.accounts[id]; !ok {
		return common.NotFound("User not found")
	}
	delete(r.store.accounts, id)
	delete(r.store.personal, id)
	for sessionID, session := range r.store.sessions {
		if session.AccountID == id {
			delete(r.store.sessions, sessionID)
		}
	}
	for tokenID, token := range r.store.verifications {
		if token.AccountID == id {
			delete(r.store.verifications, tokenID)
		}
	}

	return nil
}

func (r *AccountRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return r.modify(ctx, id, func(account *model.Account) {
		account.LastLoginAt = &at
		account.FailedLoginAttempts = 0
		account.UpdatedAt = at
	})
}

func (r *AccountRepository) IncrementFailedLogins(ctx context.Context, id string) error {
	err := r.modify(ctx, id, func(account *model.Account) {
		account.FailedLoginAttempts++
	})
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	return nil
}

func (r *AccountRepository) ConfirmEmail(ctx context.Context, id string, at time.Time) error {
	return r.modify(ctx, id, func(account *model.Account) {
		account.IsEmailConfirmed = true
		account.EmailVerifiedAt = &at
		account.UpdatedAt = at
	})
}

func (r *AccountRepository) modify(ctx context.Context, id string, change func(*model.Account)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	account, ok := r.store.accounts[id]
	if !ok {
		return common.NotFound("User not found")
	}
	change(&account)
	r.store.accounts[id] = account

	return nil
}

func (r *AccountRepository) List(ctx context.Context, filter model.AccountFilter) ([]model.Account, int, error) {
	r.store.mu.RLock()
	accounts := make([]model.Account, 0, len(r.store.accounts))
	for _, account := range r.store.accounts {
		if matchesAccountFilter(account, filter) {
			accounts = append(accounts, account)
		}
	}
	r.store.mu.RUnlock()

	slices.SortFunc(accounts, func(a, b model.Account) int {
		result := compareAccounts(a, b, filter.SortField)
		if filter.SortDesc {
			return -result
		}
		return result
	})

	page, limit := model.NormalizePaging(filter.Page, filter.Limit, model.DefaultPageLimit)
	return paginate(accounts, page, limit), len(accounts), nil
}

func matchesAccountFilter(account model.Account, filter model.AccountFilter) bool {
	if filter.Search != "" &&
		!containsFold(account.Email, filter.Search) &&
		!containsFold(deref(account.Username), filter.Search) &&
		!containsFold(deref(account.Name), filter.Search) {
		return false
	}
	if filter.Email != "" && !containsFold(account.Email, filter.Email) {
		return false
	}
	if filter.Username != "" && !containsFold(deref(account.Username), filter.Username) {
		return false
	}
	if filter.Role != "" && account.Role != filter.Role {
		return false
	}
	if filter.IsBlocked != nil && account.IsBlocked != *filter.IsBlocked {
		return false
	}
	return true
}

func compareAccounts(a, b model.Account, field string) int {
	switch field {
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "username":
		return strings.Compare(deref(a.Username), deref(b.Username))
	case "name":
		return strings.Compare(deref(a.Name), deref(b.Name))
	case "role":
		return strings.Compare(string(a.Role), string(b.Role))
	case "lastLoginAt":
		return compareTimes(a.LastLoginAt, b.LastLoginAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func (r *AccountRepository) FindPersonalData(ctx context.Context, accountID string) (*model.PersonalData, error) {
	r.store.mu.RLock()
	data, ok := r.store.personal[accountID]
	r.store.mu.RUnlock()

	if !ok {
		return nil, common.NotFound("Personal data not found")
	}
	return &data, nil
}

func (r *AccountRepository) SavePersonalData(ctx context.Context, data *model.PersonalData) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.accounts[data.AccountID]; !ok {
		return common.NotFound("User not found")
	}
	r.store.personal[data.AccountID] = *data

	return nil
}
