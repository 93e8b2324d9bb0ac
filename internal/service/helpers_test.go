package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"modulon/internal/logger"
	"modulon/internal/model"
	"modulon/internal/ports"
	"modulon/internal/repository/memory"
	"modulon/internal/security"
)

const (
	testAccessTTL       = 15 * time.Minute
	testRefreshTTL      = 360 * time.Minute
	testVerificationTTL = 15 * time.Minute
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeMailer struct {
	mu       sync.Mutex
	messages []ports.VerificationMessage
	err      error
}

func (m *fakeMailer) SendVerification(ctx context.Context, message ports.VerificationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, message)
	return nil
}

func (m *fakeMailer) last(t *testing.T) ports.VerificationMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.messages, "письмо не отправлено")
	return m.messages[len(m.messages)-1]
}

type fakeAlerts struct {
	changes chan ports.AddressChange
}

func (a *fakeAlerts) NotifyAddressChange(ctx context.Context, change ports.AddressChange) error {
	a.changes <- change
	return nil
}

type testEnv struct {
	clock        *testClock
	store        *memory.Store
	issuer       *security.TokenIssuer
	hasher       *security.PasswordHasher
	mailer       *fakeMailer
	tokens       *TokenService
	sessions     *SessionService
	verification *VerificationService
	auth         *AuthenticationService
	users        *UserService
	dashboard    *DashboardService
}

var fastArgon2 = security.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newTestClock()
	issuer, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     testAccessTTL,
		RefreshTTL:    testRefreshTTL,
		Issuer:        "test",
	})
	require.NoError(t, err)
	issuer.WithClock(clock.Now)

	log := logger.Discard()
	store := memory.NewStore()
	hasher := security.NewPasswordHasher(fastArgon2)
	mailer := &fakeMailer{}

	tokens := NewTokenService(store.Accounts(), store.Sessions(), issuer, log)
	verification := NewVerificationService(store.Accounts(), store.Verifications(), mailer, testVerificationTTL, "http://client/verify-email-link", log).
		WithClock(clock.Now)

	env := &testEnv{
		clock:        clock,
		store:        store,
		issuer:       issuer,
		hasher:       hasher,
		mailer:       mailer,
		tokens:       tokens,
		sessions:     NewSessionService(store.Sessions(), store.Verifications(), issuer, log),
		verification: verification,
		auth:         NewAuthenticationService(store.Accounts(), hasher, tokens, verification, log).WithClock(clock.Now),
		users:        NewUserService(store.Accounts(), hasher, log),
		dashboard:    NewDashboardService(store.Accounts(), hasher, log),
	}
	env.users.now = clock.Now
	env.dashboard.now = clock.Now
	return env
}

// registerConfirmed регистрирует аккаунт и подтверждает email последним отправленным кодом
func (env *testEnv) registerConfirmed(t *testing.T, email string, password string) *model.Account {
	t.Helper()
	ctx := context.Background()

	_, err := env.auth.Register(ctx, email, password)
	require.NoError(t, err)
	require.NoError(t, env.verification.VerifyToken(ctx, env.mailer.last(t).Token))

	account, err := env.store.Accounts().FindByEmail(ctx, email)
	require.NoError(t, err)
	return account
}

func (env *testEnv) login(t *testing.T, email string, password string) *model.AuthResult {
	t.Helper()
	result, err := env.auth.Login(context.Background(), email, password, model.ClientContext{IP: "10.0.0.1", DeviceInfo: "test-agent"})
	require.NoError(t, err)
	return result
}

func (env *testEnv) createWithRole(t *testing.T, email string, role model.Role) *model.Account {
	t.Helper()
	account := env.registerConfirmed(t, email, "secret123")
	account.Role = role
	require.NoError(t, env.store.Accounts().Update(context.Background(), account))
	return account
}
