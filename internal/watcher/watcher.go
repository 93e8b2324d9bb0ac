// Package watcher следит за сроком действия клиентской сессии: предупреждает незадолго до истечения,
// предлагает продлить сессию или выйти и принудительно завершает ее в момент истечения
package watcher

import (
	"context"
	"errors"
	"sync"
	"time"
)

const DefaultWarningLead = 5 * time.Minute

// ErrPromptExpired предложение устарело: сессия уже продлена, завершена или снова запланирована
var ErrPromptExpired = errors.New("предложение продлить сессию устарело")

// Session операции сервера, которые вызывает наблюдатель
type Session interface {
	// Refresh продлевает сессию и возвращает новый момент истечения
	Refresh(ctx context.Context) (time.Time, error)
	Logout(ctx context.Context) error
}

// LogoutReason причина завершения сессии
type LogoutReason string

const (
	LogoutExpired       LogoutReason = "expired"
	LogoutRefreshFailed LogoutReason = "refresh-failed"
	LogoutRequested     LogoutReason = "requested"
)

type Config struct {
	WarningLead time.Duration
	// OnWarning вызывается один раз на каждое запланированное истечение
	OnWarning func(prompt *Prompt)
	// OnLogout вызывается после завершения сессии, здесь очищается локальное состояние
	OnLogout func(reason LogoutReason)
}

type Watcher struct {
	mu         sync.Mutex
	clock      Clock
	session    Session
	lead       time.Duration
	onWarning  func(prompt *Prompt)
	onLogout   func(reason LogoutReason)
	generation uint64
	expiry     time.Time
	warning    Timer
	deadline   Timer
}

func New(session Session, cfg Config) *Watcher {
	lead := cfg.WarningLead
	if lead <= 0 {
		lead = DefaultWarningLead
	}
	return &Watcher{
		clock:     SystemClock(),
		session:   session,
		lead:      lead,
		onWarning: cfg.OnWarning,
		onLogout:  cfg.OnLogout,
	}
}

// WithClock подменяет часы, используется в тестах
func (w *Watcher) WithClock(clock Clock) *Watcher {
	w.clock = clock
	return w
}

// Observe планирует предупреждение и выход для нового момента истечения.
// Ранее запланированные таймеры отменяются, их колбэки становятся пустыми
func (w *Watcher) Observe(expiry time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked(expiry)
}

// Stop отменяет таймеры без выхода из сессии
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked()
}

// ExpiresAt момент истечения, за которым сейчас следит наблюдатель
func (w *Watcher) ExpiresAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expiry
}

func (w *Watcher) observeLocked(expiry time.Time) {
	w.cancelLocked()
	w.expiry = expiry
	generation := w.generation

	now := w.clock.Now()
	w.warning = w.clock.AfterFunc(nonNegative(expiry.Add(-w.lead).Sub(now)), func() {
		w.fireWarning(generation)
	})
	w.deadline = w.clock.AfterFunc(nonNegative(expiry.Sub(now)), func() {
		_ = w.logout(context.Background(), generation, LogoutExpired)
	})
}

// cancelLocked останавливает таймеры и делает устаревшими все выданные колбэки и предложения
func (w *Watcher) cancelLocked() {
	w.generation++
	if w.warning != nil {
		w.warning.Stop()
		w.warning = nil
	}
	if w.deadline != nil {
		w.deadline.Stop()
		w.deadline = nil
	}
}

func (w *Watcher) fireWarning(generation uint64) {
	w.mu.Lock()
	if generation != w.generation {
		w.mu.Unlock()
		return
	}
	prompt := &Prompt{watcher: w, generation: generation, expiresAt: w.expiry}
	w.mu.Unlock()

	if w.onWarning != nil {
		w.onWarning(prompt)
	}
}

func (w *Watcher) extend(ctx context.Context, generation uint64) (time.Time, error) {
	if !w.current(generation) {
		return time.Time{}, ErrPromptExpired
	}

	expiry, err := w.session.Refresh(ctx)
	if err != nil {
		_ = w.logout(ctx, generation, LogoutRefreshFailed)
		return time.Time{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if generation != w.generation {
		return time.Time{}, ErrPromptExpired
	}
	w.observeLocked(expiry)
	return expiry, nil
}

func (w *Watcher) logout(ctx context.Context, generation uint64, reason LogoutReason) error {
	w.mu.Lock()
	if generation != w.generation {
		w.mu.Unlock()
		return ErrPromptExpired
	}
	w.cancelLocked()
	w.mu.Unlock()

	err := w.session.Logout(ctx)
	if w.onLogout != nil {
		w.onLogout(reason)
	}
	return err
}

func (w *Watcher) current(generation uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return generation == w.generation
}

// Prompt предложение продлить сессию или выйти. Действительно до следующего Observe, выхода или истечения
type Prompt struct {
	watcher    *Watcher
	generation uint64
	expiresAt  time.Time
}

func (p *Prompt) ExpiresAt() time.Time {
	return p.expiresAt
}

// Remaining время до принудительного выхода
func (p *Prompt) Remaining() time.Duration {
	return nonNegative(p.expiresAt.Sub(p.watcher.clock.Now()))
}

// Extend продлевает сессию. При ошибке продления сессия завершается без повторных попыток
func (p *Prompt) Extend(ctx context.Context) (time.Time, error) {
	return p.watcher.extend(ctx, p.generation)
}

func (p *Prompt) Logout(ctx context.Context) error {
	return p.watcher.logout(ctx, p.generation, LogoutRequested)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
