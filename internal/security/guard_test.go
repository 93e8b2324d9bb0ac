package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"modulon/internal/common"
	"modulon/internal/logger"
	"modulon/internal/model"
)

func TestCheckRoleAssignment(t *testing.T) {
	assert.NoError(t, CheckRoleAssignment(model.RoleAdmin, model.RoleUser))
	assert.NoError(t, CheckRoleAssignment(model.RoleAdmin, model.RoleModerator))
	assert.ErrorIs(t, CheckRoleAssignment(model.RoleAdmin, model.RoleAdmin), common.ErrInvalidRoleChange)
	assert.ErrorIs(t, CheckRoleAssignment(model.RoleAdmin, model.RoleRoot), common.ErrInvalidRoleChange)
	assert.ErrorIs(t, CheckRoleAssignment(model.RoleRoot, model.Role("GOD")), common.ErrBadRequest)
}

func TestCheckNotSelf(t *testing.T) {
	assert.NoError(t, CheckNotSelf("a", "b", SelfDelete))

	err := CheckNotSelf("a", "a", SelfDelete)
	assert.ErrorIs(t, err, common.ErrSelfModificationForbidden)
	assert.ErrorIs(t, err, common.ErrForbidden)
	message, _ := common.Message(err)
	assert.Equal(t, "You cannot delete yourself.", message)
}

func TestRequireRole(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ok := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNoContent)
	})
	handler := JWTMiddleware(issuer, logger.Discard())(RequireRole(model.RoleAdmin)(ok))

	tests := []struct {
		name   string
		role   model.Role
		token  bool
		status int
	}{
		{"no token", "", false, http.StatusUnauthorized},
		{"user", model.RoleUser, true, http.StatusForbidden},
		{"admin", model.RoleAdmin, true, http.StatusNoContent},
		{"root", model.RoleRoot, true, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.token {
				token, _, err := issuer.SignAccess(model.AccountSummary{ID: "acc-1", Email: "a@x.com", Role: tt.role}, "sid-1")
				assert.NoError(t, err)
				request.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
			}

			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)
			assert.Equal(t, tt.status, recorder.Code)
		})
	}
}

func TestAccessTokenFromRequest(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, AccessTokenFromRequest(request))

	request.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", AccessTokenFromRequest(request))

	request.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie-token"})
	assert.Equal(t, "cookie-token", AccessTokenFromRequest(request))
}
