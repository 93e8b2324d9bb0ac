package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modulon/internal/logger"
	"modulon/internal/model"
	"modulon/internal/ports"
	"modulon/internal/repository/memory"
	"modulon/internal/security"
	"modulon/internal/service"
)

type capturingMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *capturingMailer) SendVerification(ctx context.Context, message ports.VerificationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[message.Email] = message.Token
	return nil
}

func (m *capturingMailer) token(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}

type testServer struct {
	*httptest.Server
	store  *memory.Store
	mailer *capturingMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Discard()

	issuer, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    6 * time.Hour,
	})
	require.NoError(t, err)

	store := memory.NewStore()
	mailer := &capturingMailer{tokens: map[string]string{}}
	hasher := security.NewPasswordHasher(security.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})

	tokens := service.NewTokenService(store.Accounts(), store.Sessions(), issuer, log)
	verification := service.NewVerificationService(store.Accounts(), store.Verifications(), mailer, 15*time.Minute, "", log)
	sessions := service.NewSessionService(store.Sessions(), store.Verifications(), issuer, log)
	auth := service.NewAuthenticationService(store.Accounts(), hasher, tokens, verification, log)
	cookies := CookieSettings{AccessTTL: issuer.AccessTTL(), RefreshTTL: issuer.RefreshTTL()}

	router := Router{
		Issuer:         issuer,
		Authentication: NewAuthenticationHandler(auth, sessions, verification, cookies, log),
		Users:          NewAdminUserHandler(service.NewUserService(store.Accounts(), hasher, log), log),
		Sessions:       NewAdminSessionHandler(sessions, log),
		Dashboard:      NewDashboardHandler(service.NewDashboardService(store.Accounts(), hasher, log), log),
		RequestTimeout: 5 * time.Second,
		Log:            log,
	}

	server := httptest.NewServer(router.Handler())
	t.Cleanup(server.Close)
	return &testServer{Server: server, store: store, mailer: mailer}
}

func (s *testServer) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (s *testServer) do(t *testing.T, client *http.Client, method string, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	request, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")

	response, err := client.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(response.Body).Decode(&decoded)
	return response, decoded
}

func (s *testServer) signUp(t *testing.T, client *http.Client, email string, password string) {
	t.Helper()

	response, _ := s.do(t, client, http.MethodPost, "/auth/register", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, response.StatusCode)

	response, _ = s.do(t, client, http.MethodPost, "/auth/verify-email-code", map[string]string{"token": s.mailer.token(email)})
	require.Equal(t, http.StatusOK, response.StatusCode)

	response, _ = s.do(t, client, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, response.StatusCode)
}

func (s *testServer) promote(t *testing.T, email string, role model.Role) {
	t.Helper()
	account, err := s.store.Accounts().FindByEmail(context.Background(), email)
	require.NoError(t, err)
	account.Role = role
	require.NoError(t, s.store.Accounts().Update(context.Background(), account))
}

func cookieByName(response *http.Response, name string) *http.Cookie {
	for _, cookie := range response.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestAuthFlow(t *testing.T) {
	server := newTestServer(t)
	client := server.newClient(t)

	response, body := server.do(t, client, http.MethodPost, "/auth/register", map[string]string{"email": "user@example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, response.StatusCode)
	assert.Equal(t, "Verification code sent to user@example.com", body["message"])

	response, _ = server.do(t, client, http.MethodPost, "/auth/login", map[string]string{"email": "user@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode, "email не подтвержден")

	response, _ = server.do(t, client, http.MethodPost, "/auth/verify-email-code", map[string]string{"token": server.mailer.token("user@example.com")})
	require.Equal(t, http.StatusOK, response.StatusCode)

	response, body = server.do(t, client, http.MethodPost, "/auth/login", map[string]string{"email": "user@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.NotContains(t, body, "tokens", "токены не должны попадать в тело ответа")
	user := body["user"].(map[string]any)
	assert.Equal(t, "user@example.com", user["email"])
	assert.Equal(t, "USER", user["role"])

	access := cookieByName(response, security.AccessTokenCookie)
	refresh := cookieByName(response, security.RefreshTokenCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, refresh.SameSite)
	assert.Equal(t, int((6 * time.Hour).Seconds()), refresh.MaxAge)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)

	response, body = server.do(t, client, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "user@example.com", body["email"])
	assert.NotZero(t, body["exp"])
	assert.NotZero(t, body["iat"])

	response, _ = server.do(t, client, http.MethodPost, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	rotated := cookieByName(response, security.RefreshTokenCookie)
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)

	response, _ = server.do(t, client, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	cleared := cookieByName(response, security.RefreshTokenCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	response, _ = server.do(t, client, http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)

	response, _ = server.do(t, client, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode, "повторный выход")
}

func TestRegisterValidation(t *testing.T) {
	server := newTestServer(t)
	client := server.newClient(t)

	response, body := server.do(t, client, http.MethodPost, "/auth/register", map[string]string{"email": "not-an-email", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Equal(t, float64(http.StatusBadRequest), body["statusCode"])

	server.signUp(t, client, "dup@example.com", "secret123")
	response, _ = server.do(t, client, http.MethodPost, "/auth/register", map[string]string{"email": "dup@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, response.StatusCode)
}

func TestVerifyEmailCode_Invalid(t *testing.T) {
	server := newTestServer(t)
	client := server.newClient(t)

	response, body := server.do(t, client, http.MethodPost, "/auth/verify-email-code", map[string]string{"token": "unknown"})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Equal(t, "Invalid or expired token", body["message"])

	response, _ = server.do(t, client, http.MethodPost, "/auth/send-verification-code", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestRoleGuard(t *testing.T) {
	server := newTestServer(t)

	anonymous := server.newClient(t)
	response, _ := server.do(t, anonymous, http.MethodGet, "/admin/users", nil)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	response, _ = server.do(t, anonymous, http.MethodGet, "/user/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)

	user := server.newClient(t)
	server.signUp(t, user, "user@example.com", "secret123")
	response, _ = server.do(t, user, http.MethodGet, "/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
	response, _ = server.do(t, user, http.MethodGet, "/user/dashboard", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	server.promote(t, "user@example.com", model.RoleAdmin)
	response, _ = server.do(t, user, http.MethodGet, "/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, response.StatusCode, "роль в access-токене еще старая")

	response, _ = server.do(t, user, http.MethodPost, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	response, body := server.do(t, user, http.MethodGet, "/admin/users?sort=email:asc&limit=10", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(10), body["limit"])
}

func TestAdminUsers(t *testing.T) {
	server := newTestServer(t)
	admin := server.newClient(t)
	server.signUp(t, admin, "admin@example.com", "secret123")
	server.promote(t, "admin@example.com", model.RoleAdmin)
	response, _ := server.do(t, admin, http.MethodPost, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)

	self, err := server.store.Accounts().FindByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)

	response, body := server.do(t, admin, http.MethodPost, "/admin/users", map[string]any{"email": "created@example.com", "password": "secret1", "role": "ADMIN"})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Equal(t, "You cannot assign a role equal to or higher than your own.", body["message"])

	response, body = server.do(t, admin, http.MethodPost, "/admin/users", map[string]any{"email": "created@example.com", "password": "secret1", "role": "MODERATOR"})
	require.Equal(t, http.StatusCreated, response.StatusCode)
	assert.Equal(t, "User created@example.com has been created.", body["message"])

	created, err := server.store.Accounts().FindByEmail(context.Background(), "created@example.com")
	require.NoError(t, err)

	response, body = server.do(t, admin, http.MethodPatch, "/admin/users/"+self.ID, map[string]any{"role": "USER"})
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
	assert.Equal(t, "You cannot change your own role.", body["message"])

	response, body = server.do(t, admin, http.MethodDelete, "/admin/users/"+self.ID, nil)
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
	assert.Equal(t, "You cannot delete yourself.", body["message"])

	response, _ = server.do(t, admin, http.MethodPatch, "/admin/users/"+created.ID, map[string]any{"name": "Created"})
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, body = server.do(t, admin, http.MethodGet, "/admin/users/"+created.ID, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "Created", body["name"])

	response, _ = server.do(t, admin, http.MethodPost, "/admin/users/"+created.ID+"/block", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, _ = server.do(t, admin, http.MethodDelete, "/admin/users/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, _ = server.do(t, admin, http.MethodGet, "/admin/users/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	response, _ = server.do(t, admin, http.MethodGet, "/admin/users?sort=password:asc", nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestAdminSessions(t *testing.T) {
	server := newTestServer(t)
	admin := server.newClient(t)
	server.signUp(t, admin, "admin@example.com", "secret123")
	server.promote(t, "admin@example.com", model.RoleAdmin)
	response, _ := server.do(t, admin, http.MethodPost, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)

	user := server.newClient(t)
	server.signUp(t, user, "user@example.com", "secret123")
	account, err := server.store.Accounts().FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)

	response, body := server.do(t, admin, http.MethodGet, "/admin/sessions?search=user@", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	response, body = server.do(t, admin, http.MethodDelete, "/admin/sessions/user/"+account.ID+"/inactive", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(0), body["count"])

	response, body = server.do(t, admin, http.MethodDelete, "/admin/sessions/user/"+account.ID, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	response, _ = server.do(t, user, http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)

	response, _ = server.do(t, admin, http.MethodDelete, "/admin/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	response, body = server.do(t, admin, http.MethodDelete, "/admin/sessions/inactive/all", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(0), body["count"])
}

func TestDashboard(t *testing.T) {
	server := newTestServer(t)
	client := server.newClient(t)
	server.signUp(t, client, "me@example.com", "secret123")

	response, body := server.do(t, client, http.MethodPatch, "/user/dashboard", map[string]any{"role": "ROOT"})
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
	assert.Equal(t, "You cannot change your own role.", body["message"])

	response, _ = server.do(t, client, http.MethodPatch, "/user/dashboard", map[string]any{"role": nil})
	assert.Equal(t, http.StatusForbidden, response.StatusCode)

	response, _ = server.do(t, client, http.MethodPatch, "/user/dashboard", map[string]any{"username": "me", "firstName": "Anna", "city": "Riga"})
	require.Equal(t, http.StatusOK, response.StatusCode)

	response, _ = server.do(t, client, http.MethodPatch, "/user/dashboard", map[string]any{"city": nil})
	require.Equal(t, http.StatusOK, response.StatusCode)

	response, body = server.do(t, client, http.MethodGet, "/user/dashboard", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "me", body["username"])
	personal := body["personalData"].(map[string]any)
	assert.Equal(t, "Anna", personal["firstName"])
	assert.Nil(t, personal["city"])

	response, _ = server.do(t, client, http.MethodPost, "/user/dashboard/change-password", map[string]string{"currentPassword": "wrong", "newPassword": "changed123"})
	assert.Equal(t, http.StatusForbidden, response.StatusCode)

	response, _ = server.do(t, client, http.MethodPost, "/user/dashboard/change-password", map[string]string{"currentPassword": "secret123", "newPassword": "changed123"})
	assert.Equal(t, http.StatusOK, response.StatusCode)
}
