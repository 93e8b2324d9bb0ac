// Package memory хранит аккаунты, сессии и токены подтверждения в памяти процесса.
// Используется в тестах и при storage.kind = memory
package memory

import (
	"strings"
	"sync"

	"modulon/internal/model"
)

// Store общее хранилище для всех репозиториев пакета: список сессий соединяется с аккаунтами,
// поэтому данные лежат под одним мьютексом
type Store struct {
	mu            sync.RWMutex
	accounts      map[string]model.Account
	personal      map[string]model.PersonalData
	sessions      map[string]model.Session
	verifications map[string]model.VerificationToken
}

func NewStore() *Store {
	return &Store{
		accounts:      make(map[string]model.Account),
		personal:      make(map[string]model.PersonalData),
		sessions:      make(map[string]model.Session),
		verifications: make(map[string]model.VerificationToken),
	}
}

func (s *Store) Accounts() *AccountRepository {
	return &AccountRepository{store: s}
}

func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{store: s}
}

func (s *Store) Verifications() *VerificationRepository {
	return &VerificationRepository{store: s}
}

func containsFold(value string, search string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(search))
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func paginate[T any](items []T, page int, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
