package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"modulon/internal/common"
	"modulon/internal/model"
	"modulon/internal/ports"
	"modulon/internal/security"
)

const defaultSessionLimit = 20

type SessionService struct {
	sessions      ports.SessionRepositoryInterface
	verifications ports.VerificationRepositoryInterface
	issuer        *security.TokenIssuer
	log           logrus.FieldLogger
}

func NewSessionService(sessions ports.SessionRepositoryInterface, verifications ports.VerificationRepositoryInterface, issuer *security.TokenIssuer, log logrus.FieldLogger) *SessionService {
	return &SessionService{
		sessions:      sessions,
		verifications: verifications,
		issuer:        issuer,
		log:           log,
	}
}

// Terminate удаляет сессию по id, false если ее уже не было
func (service *SessionService) Terminate(ctx context.Context, sessionID string) (bool, error) {
	deleted, err := service.sessions.Delete(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("не удалось удалить сессию: %w", err)
	}
	return deleted, nil
}

// Logout завершает сессию, на которую указывает refresh-токен. Ошибки разбора токена не возвращаются:
// выход должен удаваться всегда, а cookie очищаются обработчиком в любом случае
func (service *SessionService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	claims, err := service.issuer.ParseRefreshIgnoringExpiry(refreshToken)
	if err != nil {
		service.log.WithError(err).Debug("выход с невалидным refresh токеном")
		return nil
	}

	session, err := service.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("не удалось найти сессию: %w", err)
	}

	// устаревший токен той же сессии не должен завершать ее у текущего владельца
	if session.TokenHash != security.HashToken(refreshToken) {
		return nil
	}

	if _, err := service.sessions.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("не удалось удалить сессию: %w", err)
	}
	return nil
}

func (service *SessionService) TerminateAllForAccount(ctx context.Context, accountID string) (int64, error) {
	count, err := service.sessions.DeleteByAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("не удалось удалить сессии аккаунта: %w", err)
	}
	return count, nil
}

func (service *SessionService) TerminateInactiveForAccount(ctx context.Context, accountID string) (int64, error) {
	count, err := service.sessions.DeleteExpiredByAccount(ctx, accountID, service.issuer.Now())
	if err != nil {
		return 0, fmt.Errorf("не удалось удалить истекшие сессии аккаунта: %w", err)
	}
	return count, nil
}

func (service *SessionService) TerminateAllInactive(ctx context.Context) (int64, error) {
	count, err := service.sessions.DeleteExpired(ctx, service.issuer.Now())
	if err != nil {
		return 0, fmt.Errorf("не удалось удалить истекшие сессии: %w", err)
	}
	return count, nil
}

func (service *SessionService) List(ctx context.Context, filter model.SessionFilter) (model.Page[model.SessionView], error) {
	page, limit := model.NormalizePaging(filter.Page, filter.Limit, defaultSessionLimit)
	filter.Page, filter.Limit = page, limit

	sessions, total, err := service.sessions.List(ctx, filter)
	if err != nil {
		return model.Page[model.SessionView]{}, fmt.Errorf("не удалось получить список сессий: %w", err)
	}
	return model.NewPage(sessions, total, page, limit), nil
}

// SweepResult количество записей, удаленных за один проход очистки
type SweepResult struct {
	Sessions      int64
	Verifications int64
}

// Sweep удаляет истекшие сессии и токены подтверждения
func (service *SessionService) Sweep(ctx context.Context) (SweepResult, error) {
	now := service.issuer.Now()

	sessions, err := service.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("не удалось удалить истекшие сессии: %w", err)
	}

	verifications, err := service.verifications.DeleteExpired(ctx, now)
	if err != nil {
		return SweepResult{Sessions: sessions}, fmt.Errorf("не удалось удалить истекшие токены подтверждения: %w", err)
	}

	return SweepResult{Sessions: sessions, Verifications: verifications}, nil
}

// RunSweeper периодически вызывает Sweep, пока не отменен ctx
func (service *SessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := service.Sweep(ctx)
			if err != nil {
				service.log.WithError(err).Error("ошибка очистки истекших записей")
				continue
			}
			if result.Sessions > 0 || result.Verifications > 0 {
				service.log.WithFields(logrus.Fields{
					"sessions":      result.Sessions,
					"verifications": result.Verifications,
				}).Info("удалены истекшие записи")
			}
		}
	}
}
