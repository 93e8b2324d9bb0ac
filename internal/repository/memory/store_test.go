package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modulon/internal/common"
	"modulon/internal/model"
)

func seedAccount(t *testing.T, store *Store, email string, created time.Time) *model.Account {
	t.Helper()
	account := &model.Account{Email: email, Role: model.RoleUser, IsActive: true, CreatedAt: created, UpdatedAt: created}
	require.NoError(t, store.Accounts().Create(context.Background(), account))
	return account
}

func TestAccountRepository_DuplicateEmail(t *testing.T) {
	store := NewStore()
	seedAccount(t, store, "a@x.com", time.Now())

	err := store.Accounts().Create(context.Background(), &model.Account{Email: "a@x.com"})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestAccountRepository_EmailIsCaseSensitive(t *testing.T) {
	store := NewStore()
	seedAccount(t, store, "a@x.com", time.Now())

	require.NoError(t, store.Accounts().Create(context.Background(), &model.Account{Email: "A@x.com"}))

	found, err := store.Accounts().FindByEmail(context.Background(), "A@x.com")
	require.NoError(t, err)
	assert.Equal(t, "A@x.com", found.Email)
}

func TestAccountRepository_ConfirmedLookup(t *testing.T) {
	store := NewStore()
	account := seedAccount(t, store, "a@x.com", time.Now())
	ctx := context.Background()

	_, err := store.Accounts().FindConfirmedByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, store.Accounts().ConfirmEmail(ctx, account.ID, time.Now()))

	found, err := store.Accounts().FindConfirmedByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, found.IsEmailConfirmed)
	assert.NotNil(t, found.EmailVerifiedAt)
}

func TestAccountRepository_FailedLoginsReset(t *testing.T) {
	store := NewStore()
	account := seedAccount(t, store, "a@x.com", time.Now())
	ctx := context.Background()

	require.NoError(t, store.Accounts().IncrementFailedLogins(ctx, account.ID))
	require.NoError(t, store.Accounts().IncrementFailedLogins(ctx, account.ID))

	found, err := store.Accounts().FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.FailedLoginAttempts)

	require.NoError(t, store.Accounts().RecordLogin(ctx, account.ID, time.Now()))
	found, err = store.Accounts().FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, found.FailedLoginAttempts)
	assert.NotNil(t, found.LastLoginAt)
}

func TestAccountRepository_ListSortsAndPages(t *testing.T) {
	store := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedAccount(t, store, fmt.Sprintf("user%d@x.com", i), base.Add(time.Duration(i)*time.Hour))
	}

	accounts, total, err := store.Accounts().List(context.Background(), model.AccountFilter{
		Page:      2,
		Limit:     2,
		SortField: "email",
		SortDesc:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, accounts, 2)
	assert.Equal(t, "user2@x.com", accounts[0].Email)
	assert.Equal(t, "user1@x.com", accounts[1].Email)

	accounts, total, err = store.Accounts().List(context.Background(), model.AccountFilter{Search: "USER3"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "user3@x.com", accounts[0].Email)
}

func TestAccountRepository_DeleteCascades(t *testing.T) {
	store := NewStore()
	account := seedAccount(t, store, "a@x.com", time.Now())
	ctx := context.Background()

	require.NoError(t, store.Sessions().Create(ctx, &model.Session{AccountID: account.ID, ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, store.Verifications().Create(ctx, &model.VerificationToken{
		AccountID: account.ID,
		TokenHash: "h",
		Type:      model.VerificationEmailConfirmation,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, store.Accounts().Delete(ctx, account.ID))

	sessions, total, err := store.Sessions().List(ctx, model.SessionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, sessions)

	_, err = store.Verifications().FindValid(ctx, "h", model.VerificationEmailConfirmation, time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestSessionRepository_ConcurrentRotateHasOneWinner(t *testing.T) {
	store := NewStore()
	account := seedAccount(t, store, "a@x.com", time.Now())
	ctx := context.Background()
	now := time.Now()

	session := &model.Session{AccountID: account.ID, TokenHash: "old", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.Sessions().Create(ctx, session))

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := store.Sessions().Rotate(ctx, session.ID, "old", fmt.Sprintf("new-%d", i), now.Add(2*time.Hour), now)
			assert.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, winners.Load())
}

func TestSessionRepository_RotateRejectsExpired(t *testing.T) {
	store := NewStore()
	account := seedAccount(t, store, "a@x.com", time.Now())
	ctx := context.Background()
	now := time.Now()

	session := &model.Session{AccountID: account.ID, TokenHash: "h", ExpiresAt: now}
	require.NoError(t, store.Sessions().Create(ctx, session))

	ok, err := store.Sessions().Rotate(ctx, session.ID, "h", "h2", now.Add(time.Hour), now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRepository_BulkDeletes(t *testing.T) {
	store := NewStore()
	first := seedAccount(t, store, "a@x.com", time.Now())
	second := seedAccount(t, store, "b@x.com", time.Now())
	ctx := context.Background()
	now := time.Now()

	for _, session := range []*model.Session{
		{AccountID: first.ID, ExpiresAt: now.Add(-time.Minute)},
		{AccountID: first.ID, ExpiresAt: now.Add(time.Hour)},
		{AccountID: second.ID, ExpiresAt: now.Add(-time.Hour)},
		{AccountID: second.ID, ExpiresAt: now.Add(time.Hour)},
	} {
		require.NoError(t, store.Sessions().Create(ctx, session))
	}

	count, err := store.Sessions().DeleteExpiredByAccount(ctx, first.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = store.Sessions().DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = store.Sessions().DeleteByAccount(ctx, first.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, total, err := store.Sessions().List(ctx, model.SessionFilter{Search: "b@x"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestVerificationRepository_ExpiryAndSingleConsume(t *testing.T) {
	store := NewStore()
	account := seedAccount(t, store, "a@x.com", time.Now())
	ctx := context.Background()
	now := time.Now()

	token := &model.VerificationToken{
		AccountID: account.ID,
		TokenHash: "h",
		Type:      model.VerificationEmailConfirmation,
		ExpiresAt: now.Add(time.Minute),
	}
	require.NoError(t, store.Verifications().Create(ctx, token))

	_, err := store.Verifications().FindValid(ctx, "h", model.VerificationEmailConfirmation, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, common.ErrBadRequest)

	found, err := store.Verifications().FindValid(ctx, "h", model.VerificationEmailConfirmation, now)
	require.NoError(t, err)

	consumed, err := store.Verifications().Consume(ctx, found.ID, account.ID, now)
	require.NoError(t, err)
	assert.True(t, consumed)

	confirmed, err := store.Accounts().FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.IsEmailConfirmed)
	require.NotNil(t, confirmed.EmailVerifiedAt)
	assert.Equal(t, now, *confirmed.EmailVerifiedAt)

	consumed, err = store.Verifications().Consume(ctx, found.ID, account.ID, now)
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestVerificationRepository_ConsumeKeepsTokenOnFailure(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now()

	token := &model.VerificationToken{AccountID: "missing", TokenHash: "h", Type: model.VerificationEmailConfirmation, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, store.Verifications().Create(ctx, token))

	_, err := store.Verifications().Consume(ctx, token.ID, "missing", now)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.Verifications().FindValid(ctx, "h", model.VerificationEmailConfirmation, now)
	assert.NoError(t, err, "код не израсходован")
}
