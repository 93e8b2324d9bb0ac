package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"modulon/internal"
	"modulon/internal/common"
	"modulon/internal/model"
)

type VerificationRepository struct {
	*internal.Database
}

func NewVerificationRepository(database *internal.Database) *VerificationRepository {
	return &VerificationRepository{database}
}

func (repository *VerificationRepository) Create(ctx context.Context, token *model.VerificationToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	query := `INSERT INTO verification_tokens (id, account_id, token_hash, type, expires_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := repository.DB.ExecContext(ctx, query,
		token.ID,
		token.AccountID,
		token.TokenHash,
		token.Type,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка вставки токена подтверждения: %w", err)
	}

	return nil
}

func (repository *VerificationRepository) FindValid(ctx context.Context, tokenHash string, tokenType model.VerificationType, now time.Time) (*model.VerificationToken, error) {
	query := `SELECT id, account_id, token_hash, type, expires_at, created_at FROM verification_tokens
			  WHERE token_hash = $1 AND type = $2 AND expires_at >= $3`

	var token model.VerificationToken
	if err := repository.DB.GetContext(ctx, &token, query, tokenHash, tokenType, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.BadRequest("Invalid or expired verification token")
		}
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return &token, nil
}

func (repository *VerificationRepository) Consume(ctx context.Context, id string, accountID string, at time.Time) (bool, error) {
	consumed := false
	err := repository.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM verification_tokens WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("не удалось удалить токен подтверждения: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("не удалось проверить количество удаленных строк: %w", err)
		}
		if rowsAffected == 0 {
			return nil
		}

		result, err = tx.ExecContext(ctx, confirmEmailQuery, accountID, at)
		if err != nil {
			return fmt.Errorf("не удалось подтвердить email: %w", err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}

		consumed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return consumed, nil
}

func (repository *VerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := repository.DB.ExecContext(ctx, `DELETE FROM verification_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("не удалось удалить истекшие токены подтверждения: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("не удалось проверить количество удаленных строк: %w", err)
	}

	return rowsAffected, nil
}
