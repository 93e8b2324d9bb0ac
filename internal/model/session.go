package model

import "time"

// Session серверная запись об одной цепочке refresh-токенов (одном входе).
// В TokenHash хранится sha256 текущего refresh-токена, после ротации старый токен перестает совпадать
type Session struct {
	ID         string    `db:"id"`
	AccountID  string    `db:"account_id"`
	TokenHash  string    `db:"token_hash"`
	ExpiresAt  time.Time `db:"expires_at"`
	IP         string    `db:"ip"`
	DeviceInfo string    `db:"device_info"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (s *Session) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// ClientContext данные клиента, из запроса которого создается сессия
type ClientContext struct {
	IP         string
	DeviceInfo string
}

// SessionView представление сессии для администратора, без токена
// swagger:model
type SessionView struct {
	ID           string    `db:"id" json:"id"`
	AccountID    string    `db:"account_id" json:"userId"`
	AccountEmail string    `db:"account_email" json:"email"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires"`
	IP           string    `db:"ip" json:"ip"`
	DeviceInfo   string    `db:"device_info" json:"deviceInfo"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// SessionFilter параметры выборки списка сессий
type SessionFilter struct {
	Page   int
	Limit  int
	Search string
}
