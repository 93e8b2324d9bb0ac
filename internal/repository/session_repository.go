package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"modulon/internal"
	"modulon/internal/common"
	"modulon/internal/model"
)

const DefaultSessionPageLimit = 20

type SessionRepository struct {
	*internal.Database
}

func NewSessionRepository(database *internal.Database) *SessionRepository {
	return &SessionRepository{database}
}

func (repository *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	query := `INSERT INTO sessions (id, account_id, token_hash, expires_at, ip, device_info, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := repository.DB.ExecContext(ctx, query,
		session.ID,
		session.AccountID,
		session.TokenHash,
		session.ExpiresAt,
		session.IP,
		session.DeviceInfo,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка вставки сессии: %w", err)
	}

	return nil
}

func (repository *SessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT id, account_id, token_hash, expires_at, ip, device_info, created_at, updated_at
			  FROM sessions WHERE id = $1`

	var session model.Session
	if err := repository.DB.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFound("Session not found")
		}
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return &session, nil
}

// Rotate выполняет сравнение и замену одним UPDATE, поэтому из двух параллельных ротаций
// с одним и тем же токеном успешной будет только одна
func (repository *SessionRepository) Rotate(ctx context.Context, id string, expectedHash string, newHash string, expiresAt time.Time, now time.Time) (bool, error) {
	query := `UPDATE sessions SET token_hash = $3, expires_at = $4, updated_at = $5
			  WHERE id = $1 AND token_hash = $2 AND expires_at > $5`

	result, err := repository.DB.ExecContext(ctx, query, id, expectedHash, newHash, expiresAt, now)
	if err != nil {
		return false, fmt.Errorf("не удалось обновить сессию: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("не удалось проверить количество измененных строк: %w", err)
	}

	return rowsAffected == 1, nil
}

func (repository *SessionRepository) Delete(ctx context.Context, id string) (bool, error) {
	affected, err := repository.exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (repository *SessionRepository) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	return repository.exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
}

func (repository *SessionRepository) DeleteExpiredByAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	return repository.exec(ctx, `DELETE FROM sessions WHERE account_id = $1 AND expires_at < $2`, accountID, now)
}

func (repository *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return repository.exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
}

func (repository *SessionRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := repository.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("не удалось удалить сессии: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("не удалось проверить количество удаленных строк: %w", err)
	}

	return rowsAffected, nil
}

func (repository *SessionRepository) List(ctx context.Context, filter model.SessionFilter) ([]model.SessionView, int, error) {
	var (
		where string
		args  []any
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = ` WHERE (s.ip ILIKE $1 OR s.device_info ILIKE $1 OR a.email ILIKE $1)`
	}

	from := ` FROM sessions s JOIN accounts a ON a.id = s.account_id`

	var total int
	if err := repository.DB.GetContext(ctx, &total, `SELECT COUNT(*)`+from+where, args...); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета сессий: %w", err)
	}

	page, limit := model.NormalizePaging(filter.Page, filter.Limit, DefaultSessionPageLimit)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT s.id, s.account_id, a.email AS account_email, s.expires_at, s.ip, s.device_info,
			  s.created_at, s.updated_at%s%s ORDER BY s.created_at DESC LIMIT $%d OFFSET $%d`,
		from, where, len(args)-1, len(args))

	sessions := []model.SessionView{}
	if err := repository.DB.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки сессий: %w", err)
	}

	return sessions, total, nil
}
