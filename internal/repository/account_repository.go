package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"modulon/internal"
	"modulon/internal/common"
	"modulon/internal/model"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, username, name, password_hash, role, is_active, is_blocked,
	is_email_confirmed, email_verified_at, failed_login_attempts, last_login_at, created_at, updated_at`

// sortColumns допустимые поля сортировки списка аккаунтов
var sortColumns = map[string]string{
	"email":       "email",
	"username":    "username",
	"name":        "name",
	"role":        "role",
	"createdAt":   "created_at",
	"lastLoginAt": "last_login_at",
}

type AccountRepository struct {
	*internal.Database
}

func NewAccountRepository(database *internal.Database) *AccountRepository {
	return &AccountRepository{database}
}

func (repository *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	query := `INSERT INTO accounts (id, email, username, name, password_hash, role, is_active, is_blocked,
			  is_email_confirmed, email_verified_at, failed_login_attempts, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := repository.DB.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.Username,
		account.Name,
		account.PasswordHash,
		account.Role,
		account.IsActive,
		account.IsBlocked,
		account.IsEmailConfirmed,
		account.EmailVerifiedAt,
		account.FailedLoginAttempts,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return common.Conflict("User already exists")
		}
		return fmt.Errorf("ошибка вставки аккаунта: %w", err)
	}

	return nil
}

func (repository *AccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return repository.get(ctx, query, id)
}

func (repository *AccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return repository.get(ctx, query, email)
}

func (repository *AccountRepository) FindConfirmedByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
			  WHERE email = $1 AND is_email_confirmed = TRUE AND email_verified_at IS NOT NULL`
	return repository.get(ctx, query, email)
}

func (repository *AccountRepository) get(ctx context.Context, query string, arg string) (*model.Account, error) {
	var account model.Account

	err := repository.DB.GetContext(ctx, &account, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFound("User not found")
		}
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return &account, nil
}

func (repository *AccountRepository) Update(ctx context.Context, account *model.Account) error {
	query := `UPDATE accounts SET email = $2, username = $3, name = $4, password_hash = $5, role = $6,
			  is_active = $7, is_blocked = $8, is_email_confirmed = $9, failed_login_attempts = $10, updated_at = $11
			  WHERE id = $1`

	result, err := repository.DB.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.Username,
		account.Name,
		account.PasswordHash,
		account.Role,
		account.IsActive,
		account.IsBlocked,
		account.IsEmailConfirmed,
		account.FailedLoginAttempts,
		account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return common.Conflict("User already exists")
		}
		return fmt.Errorf("не удалось обновить аккаунт: %w", err)
	}

	return requireAffected(result)
}

func (repository *AccountRepository) Delete(ctx context.Context, id string) error {
	result, err := repository.DB.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("не удалось удалить аккаунт: %w", err)
	}

	return requireAffected(result)
}

func (repository *AccountRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE accounts SET last_login_at = $2, failed_login_attempts = 0, updated_at = $2 WHERE id = $1`

	result, err := repository.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("не удалось обновить время входа: %w", err)
	}

	return requireAffected(result)
}

func (repository *AccountRepository) IncrementFailedLogins(ctx context.Context, id string) error {
	query := `UPDATE accounts SET failed_login_attempts = failed_login_attempts + 1 WHERE id = $1`

	if _, err := repository.DB.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("не удалось обновить счетчик неудачных входов: %w", err)
	}

	return nil
}

const confirmEmailQuery = `UPDATE accounts SET is_email_confirmed = TRUE, email_verified_at = $2, updated_at = $2 WHERE id = $1`

func (repository *AccountRepository) ConfirmEmail(ctx context.Context, id string, at time.Time) error {
	result, err := repository.DB.ExecContext(ctx, confirmEmailQuery, id, at)
	if err != nil {
		return fmt.Errorf("не удалось подтвердить email: %w", err)
	}

	return requireAffected(result)
}

func (repository *AccountRepository) List(ctx context.Context, filter model.AccountFilter) ([]model.Account, int, error) {
	var (
		conditions []string
		args       []any
	)
	addCondition := func(format string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(email ILIKE $%d OR username ILIKE $%d OR name ILIKE $%d)", n, n, n))
	}
	if filter.Email != "" {
		addCondition("email ILIKE $%d", "%"+filter.Email+"%")
	}
	if filter.Username != "" {
		addCondition("username ILIKE $%d", "%"+filter.Username+"%")
	}
	if filter.Role != "" {
		addCondition("role = $%d", filter.Role)
	}
	if filter.IsBlocked != nil {
		addCondition("is_blocked = $%d", *filter.IsBlocked)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := repository.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM accounts`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета аккаунтов: %w", err)
	}

	column, ok := sortColumns[filter.SortField]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	page, limit := model.NormalizePaging(filter.Page, filter.Limit, model.DefaultPageLimit)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM accounts%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		accountColumns, where, column, direction, len(args)-1, len(args))

	accounts := []model.Account{}
	if err := repository.DB.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки аккаунтов: %w", err)
	}

	return accounts, total, nil
}

func (repository *AccountRepository) FindPersonalData(ctx context.Context, accountID string) (*model.PersonalData, error) {
	query := `SELECT account_id, first_name, middle_name, last_name, phone_number, address, city, zip_code,
			  country, birth_date, gender FROM personal_data WHERE account_id = $1`

	var data model.PersonalData
	if err := repository.DB.GetContext(ctx, &data, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFound("Personal data not found")
		}
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return &data, nil
}

func (repository *AccountRepository) SavePersonalData(ctx context.Context, data *model.PersonalData) error {
	query := `INSERT INTO personal_data (account_id, first_name, middle_name, last_name, phone_number, address,
			  city, zip_code, country, birth_date, gender)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  ON CONFLICT (account_id) DO UPDATE SET first_name = EXCLUDED.first_name,
			  middle_name = EXCLUDED.middle_name, last_name = EXCLUDED.last_name,
			  phone_number = EXCLUDED.phone_number, address = EXCLUDED.address, city = EXCLUDED.city,
			  zip_code = EXCLUDED.zip_code, country = EXCLUDED.country, birth_date = EXCLUDED.birth_date,
			  gender = EXCLUDED.gender`

	_, err := repository.DB.ExecContext(ctx, query,
		data.AccountID,
		data.FirstName,
		data.MiddleName,
		data.LastName,
		data.PhoneNumber,
		data.Address,
		data.City,
		data.ZipCode,
		data.Country,
		data.BirthDate,
		data.Gender,
	)
	if err != nil {
		return fmt.Errorf("не удалось сохранить персональные данные: %w", err)
	}

	return nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("не удалось проверить количество измененных строк: %w", err)
	}
	if rowsAffected == 0 {
		return common.NotFound("User not found")
	}
	return nil
}
