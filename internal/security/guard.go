package security

import (
	"net/http"

	"modulon/internal/common"
	"modulon/internal/model"
)

// SelfAction действие, которое аккаунт не может выполнить над самим собой
type SelfAction string

const (
	SelfRoleChange SelfAction = "role-change"
	SelfDelete     SelfAction = "delete"
	SelfBlock      SelfAction = "block"
)

var selfActionMessages = map[SelfAction]string{
	SelfRoleChange: "You cannot change your own role.",
	SelfDelete:     "You cannot delete yourself.",
	SelfBlock:      "You cannot block yourself.",
}

// CheckNotSelf запрещает действие над собственным аккаунтом независимо от роли
func CheckNotSelf(actorID string, targetID string, action SelfAction) error {
	if actorID != targetID {
		return nil
	}
	message, ok := selfActionMessages[action]
	if !ok {
		message = "You cannot modify your own account."
	}
	return common.SelfModificationForbidden(message)
}

// CheckRoleAssignment запрещает выдавать роль, равную или выше собственной
func CheckRoleAssignment(actor model.Role, target model.Role) error {
	if !target.Valid() {
		return common.BadRequest("Unknown role.")
	}
	if target.Rank() >= actor.Rank() {
		return common.InvalidRoleChange("You cannot assign a role equal to or higher than your own.")
	}
	return nil
}

// RequireRole пропускает запрос, только если роль из access-токена не ниже required.
// Должен стоять после JWTMiddleware
func RequireRole(required model.Role) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims, ok := ClaimsFromContext(request.Context())
			if !ok {
				writeAuthError(writer, http.StatusUnauthorized, "Unauthorized", "You must be logged in to access this resource.")
				return
			}
			if !model.IsAtLeast(claims.Role, required) {
				writeAuthError(writer, http.StatusForbidden, "Forbidden", "You don't have permission to perform this action.")
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}
