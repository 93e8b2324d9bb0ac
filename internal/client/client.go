// Package client http-клиент сервиса авторизации. Токены хранятся только в cookie jar
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"modulon/internal/model"
)

const defaultTimeout = 10 * time.Second

// ErrSessionEnded сессия не может быть продлена, нужен повторный вход
var ErrSessionEnded = errors.New("сессия завершена, требуется повторный вход")

// APIError ответ сервера с кодом 4xx или 5xx
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Kind       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Kind, e.Message)
}

// IsUnauthorized проверяет, что ошибка означает ответ 401
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// SessionInfo утверждения текущего access-токена
type SessionInfo struct {
	ID        string
	Email     string
	Role      model.Role
	SessionID string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type sessionResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	SessionID string     `json:"sessionId"`
	Exp       int64      `json:"exp"`
	Iat       int64      `json:"iat"`
}

type authResponse struct {
	User model.AccountSummary `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New создает клиент. Если у httpClient нет cookie jar, он создается
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

func (c *Client) Register(ctx context.Context, email string, password string) (string, error) {
	var response messageResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{"email": email, "password": password}, &response)
	return response.Message, err
}

func (c *Client) SendVerificationCode(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/send-verification-code", map[string]string{"email": email}, nil)
}

func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/verify-email-code", map[string]string{"token": token}, nil)
}

func (c *Client) Login(ctx context.Context, email string, password string) (model.AccountSummary, error) {
	var response authResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &response)
	return response.User, err
}

// Session возвращает утверждения текущего access-токена, при необходимости обновив токены
func (c *Client) Session(ctx context.Context) (*SessionInfo, error) {
	var response sessionResponse
	if err := c.doAuthorized(ctx, http.MethodGet, "/auth/session", nil, &response); err != nil {
		return nil, err
	}
	return response.info(), nil
}

func (c *Client) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	var dashboard model.Dashboard
	if err := c.doAuthorized(ctx, http.MethodGet, "/user/dashboard", nil, &dashboard); err != nil {
		return nil, err
	}
	return &dashboard, nil
}

// Refresh обновляет пару токенов и возвращает новый срок действия access-токена.
// Неудачное обновление не повторяется и возвращает ErrSessionEnded
func (c *Client) Refresh(ctx context.Context) (time.Time, error) {
	if err := c.refresh(ctx); err != nil {
		return time.Time{}, err
	}

	var response sessionResponse
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, &response); err != nil {
		return time.Time{}, fmt.Errorf("не удалось получить сессию после обновления: %w", err)
	}
	return response.info().ExpiresAt, nil
}

// Logout завершает сессию на сервере. Cookie очищаются ответом сервера
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) refresh(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, nil)
	if err == nil {
		return nil
	}
	if IsUnauthorized(err) {
		return fmt.Errorf("%w: %v", ErrSessionEnded, err)
	}
	return err
}

// doAuthorized при ответе 401 один раз обновляет токены и повторяет запрос
func (c *Client) doAuthorized(ctx context.Context, method string, path string, body any, out any) error {
	err := c.do(ctx, method, path, body, out)
	if !IsUnauthorized(err) {
		return err
	}

	if err := c.refresh(ctx); err != nil {
		return err
	}
	return c.do(ctx, method, path, body, out)
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка преобразования в json: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("ошибка запроса %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: response.StatusCode}
		if err := json.NewDecoder(response.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(response.StatusCode)
		}
		apiErr.StatusCode = response.StatusCode
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("ошибка разбора ответа: %w", err)
	}
	return nil
}

func (r sessionResponse) info() *SessionInfo {
	return &SessionInfo{
		ID:        r.ID,
		Email:     r.Email,
		Role:      r.Role,
		SessionID: r.SessionID,
		ExpiresAt: time.Unix(r.Exp, 0),
		IssuedAt:  time.Unix(r.Iat, 0),
	}
}
