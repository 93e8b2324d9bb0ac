package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"modulon/internal/common"
	"modulon/internal/model"
	"modulon/internal/ports"
	"modulon/internal/security"
)

const (
	invalidAccessTokenMessage  = "Invalid or expired access token"
	invalidRefreshTokenMessage = "Invalid or expired token"
	sessionExpiredMessage      = "Session expired or not found"
	alertTimeout               = 10 * time.Second
)

// TokenService выпускает пары токенов, привязанные к сессии, и обновляет их по refresh-токену
type TokenService struct {
	accounts ports.AccountRepositoryInterface
	sessions ports.SessionRepositoryInterface
	issuer   *security.TokenIssuer
	alerts   ports.AlertNotifierInterface
	log      logrus.FieldLogger
}

func NewTokenService(accounts ports.AccountRepositoryInterface, sessions ports.SessionRepositoryInterface, issuer *security.TokenIssuer, log logrus.FieldLogger) *TokenService {
	return &TokenService{
		accounts: accounts,
		sessions: sessions,
		issuer:   issuer,
		log:      log,
	}
}

// WithAlerts включает уведомление о смене ip между входом и обновлением токенов
func (service *TokenService) WithAlerts(alerts ports.AlertNotifierInterface) *TokenService {
	service.alerts = alerts
	return service
}

// IssuePair создает новую сессию и выпускает для нее пару токенов
func (service *TokenService) IssuePair(ctx context.Context, account *model.Account, client model.ClientContext) (*model.AuthResult, error) {
	sessionID := uuid.NewString()
	now := service.issuer.Now()

	tokens, err := service.signPair(account.Summary(), sessionID, now)
	if err != nil {
		return nil, err
	}

	session := &model.Session{
		ID:         sessionID,
		AccountID:  account.ID,
		TokenHash:  security.HashToken(tokens.RefreshToken),
		ExpiresAt:  tokens.RefreshExpiresAt,
		IP:         client.IP,
		DeviceInfo: client.DeviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := service.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("не удалось сохранить сессию: %w", err)
	}

	return &model.AuthResult{
		Account:   account.Summary(),
		SessionID: sessionID,
		Tokens:    *tokens,
	}, nil
}

// VerifyAccess проверяет только подпись и срок действия, хранилище не используется
func (service *TokenService) VerifyAccess(accessToken string) (*security.Claims, error) {
	claims, err := service.issuer.ParseAccess(accessToken)
	if err != nil {
		return nil, common.Unauthorized(invalidAccessTokenMessage)
	}
	return claims, nil
}

// Rotate обменивает действующий refresh-токен на новую пару и сдвигает срок жизни сессии.
// После успешной ротации предъявленный токен больше не принимается
func (service *TokenService) Rotate(ctx context.Context, refreshToken string, client model.ClientContext) (*model.AuthResult, error) {
	if refreshToken == "" {
		return nil, common.Unauthorized("No refresh token")
	}

	claims, err := service.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, common.Unauthorized(invalidRefreshTokenMessage)
	}

	session, err := service.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Unauthorized(sessionExpiredMessage)
		}
		return nil, fmt.Errorf("не удалось найти сессию: %w", err)
	}

	now := service.issuer.Now()
	if session.ExpiredAt(now) {
		if _, err := service.sessions.Delete(ctx, session.ID); err != nil {
			service.log.WithError(err).WithField("session_id", session.ID).Warn("не удалось удалить истекшую сессию")
		}
		return nil, common.Unauthorized(sessionExpiredMessage)
	}

	presentedHash := security.HashToken(refreshToken)
	if session.AccountID != claims.AccountID() || session.TokenHash != presentedHash {
		service.log.WithField("session_id", session.ID).Warn("предъявлен устаревший refresh токен")
		return nil, common.Unauthorized(sessionExpiredMessage)
	}

	account, err := service.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Unauthorized(sessionExpiredMessage)
		}
		return nil, fmt.Errorf("не удалось найти аккаунт: %w", err)
	}
	if !account.IsActive || account.IsBlocked {
		return nil, common.Unauthorized(sessionExpiredMessage)
	}

	tokens, err := service.signPair(account.Summary(), session.ID, now)
	if err != nil {
		return nil, err
	}

	rotated, err := service.sessions.Rotate(ctx, session.ID, presentedHash, security.HashToken(tokens.RefreshToken), tokens.RefreshExpiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("не удалось обновить сессию: %w", err)
	}
	if !rotated {
		return nil, common.Unauthorized(sessionExpiredMessage)
	}

	service.checkAddress(session, client)

	return &model.AuthResult{
		Account:   account.Summary(),
		SessionID: session.ID,
		Tokens:    *tokens,
	}, nil
}

func (service *TokenService) signPair(account model.AccountSummary, sessionID string, now time.Time) (*model.TokensPair, error) {
	accessToken, accessExpiresAt, err := service.issuer.SignAccess(account, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации токенов: %w", err)
	}

	refreshExpiresAt := now.Add(service.issuer.RefreshTTL())
	refreshToken, err := service.issuer.SignRefresh(account.ID, sessionID, refreshExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации токенов: %w", err)
	}

	return &model.TokensPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func (service *TokenService) checkAddress(session *model.Session, client model.ClientContext) {
	if client.IP == "" || session.IP == "" || client.IP == session.IP {
		return
	}

	change := ports.AddressChange{
		AccountID:  session.AccountID,
		SessionID:  session.ID,
		PreviousIP: session.IP,
		CurrentIP:  client.IP,
	}
	service.log.WithFields(logrus.Fields{
		"session_id":  change.SessionID,
		"previous_ip": change.PreviousIP,
		"current_ip":  change.CurrentIP,
	}).Info("обнаружено обновление токенов с нового ip")

	if service.alerts == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if err := service.alerts.NotifyAddressChange(ctx, change); err != nil {
			service.log.WithError(err).Warn("ошибка отправки webhook")
		}
	}()
}
