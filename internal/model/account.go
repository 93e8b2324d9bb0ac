package model

import "time"

// Account учетная запись пользователя. Пароль хранится только в виде argon2id-хэша
type Account struct {
	ID                  string     `db:"id"`
	Email               string     `db:"email"`
	Username            *string    `db:"username"`
	Name                *string    `db:"name"`
	PasswordHash        string     `db:"password_hash"`
	Role                Role       `db:"role"`
	IsActive            bool       `db:"is_active"`
	IsBlocked           bool       `db:"is_blocked"`
	IsEmailConfirmed    bool       `db:"is_email_confirmed"`
	EmailVerifiedAt     *time.Time `db:"email_verified_at"`
	FailedLoginAttempts int        `db:"failed_login_attempts"`
	LastLoginAt         *time.Time `db:"last_login_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// CanLogin проверяет условия входа: подтвержденный email и отсутствие блокировки
func (a *Account) CanLogin() bool {
	return a.IsEmailConfirmed && a.EmailVerifiedAt != nil && a.IsActive && !a.IsBlocked
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{ID: a.ID, Email: a.Email, Role: a.Role}
}

// AccountSummary краткое представление аккаунта, которое отдается после входа и обновления токенов
// swagger:model
type AccountSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// AccountView представление аккаунта для администратора
// swagger:model
type AccountView struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Username            *string    `json:"username"`
	Name                *string    `json:"name"`
	Role                Role       `json:"role"`
	IsActive            bool       `json:"isActive"`
	IsBlocked           bool       `json:"isBlocked"`
	IsEmailConfirmed    bool       `json:"isEmailConfirmed"`
	FailedLoginAttempts int        `json:"failedLoginAttempts"`
	LastLoginAt         *time.Time `json:"lastLoginAt"`
	CreatedAt           time.Time  `json:"createdAt"`
}

func (a *Account) View() AccountView {
	return AccountView{
		ID:                  a.ID,
		Email:               a.Email,
		Username:            a.Username,
		Name:                a.Name,
		Role:                a.Role,
		IsActive:            a.IsActive,
		IsBlocked:           a.IsBlocked,
		IsEmailConfirmed:    a.IsEmailConfirmed,
		FailedLoginAttempts: a.FailedLoginAttempts,
		LastLoginAt:         a.LastLoginAt,
		CreatedAt:           a.CreatedAt,
	}
}

// PersonalData персональные данные пользователя, одна запись на аккаунт
type PersonalData struct {
	AccountID   string     `db:"account_id" json:"-"`
	FirstName   *string    `db:"first_name" json:"firstName"`
	MiddleName  *string    `db:"middle_name" json:"middleName"`
	LastName    *string    `db:"last_name" json:"lastName"`
	PhoneNumber *string    `db:"phone_number" json:"phoneNumber"`
	Address     *string    `db:"address" json:"address"`
	City        *string    `db:"city" json:"city"`
	ZipCode     *string    `db:"zip_code" json:"zipCode"`
	Country     *string    `db:"country" json:"country"`
	BirthDate   *time.Time `db:"birth_date" json:"birthDate"`
	Gender      *Gender    `db:"gender" json:"gender"`
}

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// AccountFilter параметры выборки списка аккаунтов
type AccountFilter struct {
	Page      int
	Limit     int
	SortField string
	SortDesc  bool
	Search    string
	Email     string
	Username  string
	Role      Role
	IsBlocked *bool
}

// Page страница результатов выборки
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func NewPage[T any](data []T, total int, page int, limit int) Page[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Page[T]{Data: data, Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}

const (
	DefaultPageLimit = 25
	MaxPageLimit     = 100
)

// NormalizePaging приводит номер страницы и размер к допустимым значениям
func NormalizePaging(page int, limit int, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// Dashboard данные личного кабинета пользователя
// swagger:model
type Dashboard struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Username     *string      `json:"username"`
	Name         *string      `json:"name"`
	Role         Role         `json:"role"`
	LastLoginAt  *time.Time   `json:"lastLoginAt"`
	CreatedAt    time.Time    `json:"createdAt"`
	PersonalData PersonalData `json:"personalData"`
}

// AccountPatch изменяемые пользователем поля аккаунта
type AccountPatch struct {
	Username Optional[string] `json:"username"`
	Name     Optional[string] `json:"name"`
}

func (p AccountPatch) Empty() bool {
	return !p.Username.Set && !p.Name.Set
}

// PersonalDataPatch частичное обновление персональных данных
type PersonalDataPatch struct {
	FirstName   Optional[string]    `json:"firstName"`
	MiddleName  Optional[string]    `json:"middleName"`
	LastName    Optional[string]    `json:"lastName"`
	PhoneNumber Optional[string]    `json:"phoneNumber"`
	Address     Optional[string]    `json:"address"`
	City        Optional[string]    `json:"city"`
	ZipCode     Optional[string]    `json:"zipCode"`
	Country     Optional[string]    `json:"country"`
	BirthDate   Optional[time.Time] `json:"birthDate"`
	Gender      Optional[Gender]    `json:"gender"`
}

func (p PersonalDataPatch) Apply(data *PersonalData) {
	p.FirstName.Apply(&data.FirstName)
	p.MiddleName.Apply(&data.MiddleName)
	p.LastName.Apply(&data.LastName)
	p.PhoneNumber.Apply(&data.PhoneNumber)
	p.Address.Apply(&data.Address)
	p.City.Apply(&data.City)
	p.ZipCode.Apply(&data.ZipCode)
	p.Country.Apply(&data.Country)
	p.BirthDate.Apply(&data.BirthDate)
	p.Gender.Apply(&data.Gender)
}

func (p PersonalDataPatch) Empty() bool {
	return !p.FirstName.Set && !p.MiddleName.Set && !p.LastName.Set && !p.PhoneNumber.Set &&
		!p.Address.Set && !p.City.Set && !p.ZipCode.Set && !p.Country.Set && !p.BirthDate.Set && !p.Gender.Set
}
