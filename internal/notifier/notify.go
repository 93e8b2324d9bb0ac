package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"modulon/internal/ports"
)

const (
	EventEmailVerification = "email_verification"
	EventAddressChange     = "refresh_token_from_new_ip"
)

// WebhookNotify тело запроса к webhook. Набор заполненных полей зависит от Event
type WebhookNotify struct {
	Event     string     `json:"event"`
	UserUUID  string     `json:"userUUID"`
	Email     string     `json:"email,omitempty"`
	Token     string     `json:"token,omitempty"`
	Link      string     `json:"link,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	NewIP     string     `json:"newIP,omitempty"`
	OldIP     string     `json:"oldIP,omitempty"`
	TimeStamp string     `json:"timestamp"`
}

// WebhookNotifier отправляет письма с кодом подтверждения и уведомления о смене ip внешнему сервису доставки
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
	log    logrus.FieldLogger
}

func NewWebhookNotifier(webhookURL string, timeout time.Duration, log logrus.FieldLogger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    webhookURL,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
		log:    log,
	}
}

func (notifier *WebhookNotifier) SendVerification(ctx context.Context, message ports.VerificationMessage) error {
	return notifier.notify(ctx, &WebhookNotify{
		Event:     EventEmailVerification,
		UserUUID:  message.AccountID,
		Email:     message.Email,
		Token:     message.Token,
		Link:      message.Link,
		ExpiresAt: &message.ExpiresAt,
	})
}

func (notifier *WebhookNotifier) NotifyAddressChange(ctx context.Context, change ports.AddressChange) error {
	return notifier.notify(ctx, &WebhookNotify{
		Event:     EventAddressChange,
		UserUUID:  change.AccountID,
		SessionID: change.SessionID,
		NewIP:     change.CurrentIP,
		OldIP:     change.PreviousIP,
	})
}

func (notifier *WebhookNotifier) notify(ctx context.Context, payload *WebhookNotify) error {
	payload.TimeStamp = notifier.now().Format(time.RFC3339)

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка преобразования в json: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, notifier.url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса webhook: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := notifier.client.Do(request)
	if err != nil {
		return fmt.Errorf("ошибка отправки webhook: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook ответил статусом %d", response.StatusCode)
	}

	notifier.log.WithField("event", payload.Event).Debug("webhook успешно отправлен")
	return nil
}

// LogNotifier пишет письма и уведомления в лог, используется без настроенного webhook
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (notifier *LogNotifier) SendVerification(ctx context.Context, message ports.VerificationMessage) error {
	notifier.log.WithFields(logrus.Fields{
		"email":      message.Email,
		"token":      message.Token,
		"link":       message.Link,
		"expires_at": message.ExpiresAt.Format(time.RFC3339),
	}).Info("код подтверждения email")
	return nil
}

func (notifier *LogNotifier) NotifyAddressChange(ctx context.Context, change ports.AddressChange) error {
	notifier.log.WithFields(logrus.Fields{
		"account_id":  change.AccountID,
		"session_id":  change.SessionID,
		"previous_ip": change.PreviousIP,
		"current_ip":  change.CurrentIP,
	}).Warn("refresh токен предъявлен с нового ip")
	return nil
}
