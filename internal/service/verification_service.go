package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"modulon/internal/common"
	"modulon/internal/model"
	"modulon/internal/ports"
	"modulon/internal/security"
)

const invalidVerificationTokenMessage = "Invalid or expired token"

type VerificationService struct {
	accounts      ports.AccountRepositoryInterface
	verifications ports.VerificationRepositoryInterface
	mailer        ports.MailerInterface
	ttl           time.Duration
	linkBase      string
	now           func() time.Time
	log           logrus.FieldLogger
}

// NewVerificationService linkBase адрес страницы подтверждения на клиенте, например http://localhost:3000/verify-email-link
func NewVerificationService(accounts ports.AccountRepositoryInterface, verifications ports.VerificationRepositoryInterface, mailer ports.MailerInterface, ttl time.Duration, linkBase string, log logrus.FieldLogger) *VerificationService {
	return &VerificationService{
		accounts:      accounts,
		verifications: verifications,
		mailer:        mailer,
		ttl:           ttl,
		linkBase:      linkBase,
		now:           time.Now,
		log:           log,
	}
}

func (service *VerificationService) WithClock(now func() time.Time) *VerificationService {
	service.now = now
	return service
}

// SendVerificationCode выпускает новый код подтверждения. Ранее выданные коды остаются действительными
func (service *VerificationService) SendVerificationCode(ctx context.Context, email string) error {
	account, err := service.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	token, tokenHash, err := security.NewVerificationToken()
	if err != nil {
		return fmt.Errorf("ошибка генерации кода подтверждения: %w", err)
	}

	now := service.now()
	record := &model.VerificationToken{
		AccountID: account.ID,
		TokenHash: tokenHash,
		Type:      model.VerificationEmailConfirmation,
		ExpiresAt: now.Add(service.ttl),
		CreatedAt: now,
	}
	if err := service.verifications.Create(ctx, record); err != nil {
		return fmt.Errorf("не удалось сохранить код подтверждения: %w", err)
	}

	message := ports.VerificationMessage{
		AccountID: account.ID,
		Email:     account.Email,
		Token:     token,
		Link:      service.link(token),
		ExpiresAt: record.ExpiresAt,
	}
	if err := service.mailer.SendVerification(ctx, message); err != nil {
		return fmt.Errorf("не удалось отправить код подтверждения: %w", err)
	}

	service.log.WithField("account_id", account.ID).Debug("код подтверждения отправлен")
	return nil
}

// VerifyToken подтверждает email. Код удаляется условным DELETE, поэтому из двух одновременных
// попыток с одним кодом успешной будет только одна
func (service *VerificationService) VerifyToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return common.BadRequest(invalidVerificationTokenMessage)
	}

	now := service.now()
	record, err := service.verifications.FindValid(ctx, security.HashToken(token), model.VerificationEmailConfirmation, now)
	if err != nil {
		if errors.Is(err, common.ErrBadRequest) {
			return common.BadRequest(invalidVerificationTokenMessage)
		}
		return fmt.Errorf("не удалось найти код подтверждения: %w", err)
	}

	consumed, err := service.verifications.Consume(ctx, record.ID, record.AccountID, now)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.BadRequest(invalidVerificationTokenMessage)
		}
		return fmt.Errorf("не удалось использовать код подтверждения: %w", err)
	}
	if !consumed {
		return common.BadRequest(invalidVerificationTokenMessage)
	}

	return nil
}

func (service *VerificationService) link(token string) string {
	if service.linkBase == "" {
		return ""
	}
	return service.linkBase + "?token=" + url.QueryEscape(token)
}
