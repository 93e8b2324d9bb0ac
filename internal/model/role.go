package model

import "fmt"

// Role определяет уровень привилегий аккаунта
type Role string

const (
	RoleGuest     Role = "GUEST"
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
	RoleSystem    Role = "SYSTEM"
	RoleRoot      Role = "ROOT"
)

// roleOrder перечисляет роли от низшей к высшей; индекс и есть приоритет роли
var roleOrder = [...]Role{
	RoleGuest,
	RoleUser,
	RoleModerator,
	RoleAdmin,
	RoleSystem,
	RoleRoot,
}

// Roles возвращает все роли по возрастанию привилегий
func Roles() []Role {
	roles := make([]Role, len(roleOrder))
	copy(roles, roleOrder[:])
	return roles
}

// Rank возвращает приоритет роли, -1 для неизвестной роли
func (r Role) Rank() int {
	for i, role := range roleOrder {
		if role == r {
			return i
		}
	}
	return -1
}

func (r Role) Valid() bool {
	return r.Rank() >= 0
}

func (r Role) String() string {
	return string(r)
}

// IsAtLeast сообщает, что actual не ниже required. Неизвестная роль не удовлетворяет ни одному требованию
func IsAtLeast(actual Role, required Role) bool {
	actualRank := actual.Rank()
	if actualRank < 0 || !required.Valid() {
		return false
	}
	return actualRank >= required.Rank()
}

func ParseRole(value string) (Role, error) {
	role := Role(value)
	if !role.Valid() {
		return "", fmt.Errorf("неизвестная роль: %q", value)
	}
	return role, nil
}

// CastRole приводит произвольное значение к роли, неизвестные значения становятся GUEST
func CastRole(value string) Role {
	role, err := ParseRole(value)
	if err != nil {
		return RoleGuest
	}
	return role
}
