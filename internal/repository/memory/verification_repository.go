package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"modulon/internal/common"
	"modulon/internal/model"
)

type VerificationRepository struct {
	store *Store
}

func (r *VerificationRepository) Create(ctx context.Context, token *model.VerificationToken) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.verifications {
		if existing.TokenHash == token.TokenHash {
			return common.Conflict("Verification token already exists")
		}
	}
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	r.store.verifications[token.ID] = *token

	return nil
}

func (r *VerificationRepository) FindValid(ctx context.Context, tokenHash string, tokenType model.VerificationType, now time.Time) (*model.VerificationToken, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, token := range r.store.verifications {
		if token.TokenHash == tokenHash && token.Type == tokenType && !token.ExpiresAt.Before(now) {
			return &token, nil
		}
	}
	return nil, common.BadRequest("Invalid or expired verification token")
}

func (r *VerificationRepository) Consume(ctx context.Context, id string, accountID string, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.verifications[id]; !ok {
		return false, nil
	}
	account, ok := r.store.accounts[accountID]
	if !ok {
		return false, common.NotFound("User not found")
	}

	delete(r.store.verifications, id)
	account.IsEmailConfirmed = true
	account.EmailVerifiedAt = &at
	account.UpdatedAt = at
	r.store.accounts[accountID] = account

	return true, nil
}

func (r *VerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for id, token := range r.store.verifications {
		if token.ExpiresAt.Before(now) {
			delete(r.store.verifications, id)
			count++
		}
	}

	return count, nil
}
