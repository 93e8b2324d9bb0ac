package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"modulon/internal/common"
	"modulon/internal/model"
)

const defaultSessionPageLimit = 20

type SessionRepository struct {
	store *Store
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.accounts[session.AccountID]; !ok {
		return common.NotFound("User not found")
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	r.store.sessions[session.ID] = *session

	return nil
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.store.mu.RLock()
	session, ok := r.store.sessions[id]
	r.store.mu.RUnlock()

	if !ok {
		return nil, common.NotFound("Session not found")
	}
	return &session, nil
}

// Rotate сравнивает и заменяет хэш под одной блокировкой записи
func (r *SessionRepository) Rotate(ctx context.Context, id string, expectedHash string, newHash string, expiresAt time.Time, now time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[id]
	if !ok || session.TokenHash != expectedHash || !session.ExpiresAt.After(now) {
		return false, nil
	}

	session.TokenHash = newHash
	session.ExpiresAt = expiresAt
	session.UpdatedAt = now
	r.store.sessions[id] = session

	return true, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.sessions[id]; !ok {
		return false, nil
	}
	delete(r.store.sessions, id)

	return true, nil
}

func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	return r.deleteWhere(ctx, func(session model.Session) bool {
		return session.AccountID == accountID
	})
}

func (r *SessionRepository) DeleteExpiredByAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, func(session model.Session) bool {
		return session.AccountID == accountID && session.ExpiresAt.Before(now)
	})
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, func(session model.Session) bool {
		return session.ExpiresAt.Before(now)
	})
}

func (r *SessionRepository) deleteWhere(ctx context.Context, match func(model.Session) bool) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for id, session := range r.store.sessions {
		if match(session) {
			delete(r.store.sessions, id)
			count++
		}
	}

	return count, nil
}

func (r *SessionRepository) List(ctx context.Context, filter model.SessionFilter) ([]model.SessionView, int, error) {
	r.store.mu.RLock()
	views := make([]model.SessionView, 0, len(r.store.sessions))
	for _, session := range r.store.sessions {
		account, ok := r.store.accounts[session.AccountID]
		if !ok {
			continue
		}
		if filter.Search != "" &&
			!containsFold(session.IP, filter.Search) &&
			!containsFold(session.DeviceInfo, filter.Search) &&
			!containsFold(account.Email, filter.Search) {
			continue
		}
		views = append(views, model.SessionView{
			ID:           session.ID,
			AccountID:    session.AccountID,
			AccountEmail: account.Email,
			ExpiresAt:    session.ExpiresAt,
			IP:           session.IP,
			DeviceInfo:   session.DeviceInfo,
			CreatedAt:    session.CreatedAt,
			UpdatedAt:    session.UpdatedAt,
		})
	}
	r.store.mu.RUnlock()

	slices.SortFunc(views, func(a, b model.SessionView) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	page, limit := model.NormalizePaging(filter.Page, filter.Limit, defaultSessionPageLimit)
	return paginate(views, page, limit), len(views), nil
}
