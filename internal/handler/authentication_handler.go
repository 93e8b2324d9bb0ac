package handler

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"modulon/internal/common"
	"modulon/internal/model"
	"modulon/internal/security"
	"modulon/internal/service"
)

type AuthenticationHandler struct {
	auth         *service.AuthenticationService
	sessions     *service.SessionService
	verification *service.VerificationService
	cookies      CookieSettings
	log          logrus.FieldLogger
}

// CredentialsRequest email и пароль для регистрации
// swagger:model
type CredentialsRequest struct {
	// example: user@example.com
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest email и пароль для входа
// swagger:model
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// EmailRequest содержит email для повторной отправки кода
// swagger:model
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyEmailRequest содержит код подтверждения из письма
// swagger:model
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// AuthResponse содержит краткие данные аккаунта. Токены передаются только в http-only cookie
// swagger:model
type AuthResponse struct {
	User model.AccountSummary `json:"user"`
}

// SessionResponse утверждения текущего access-токена
// swagger:model
type SessionResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	SessionID string     `json:"sessionId"`
	Exp       int64      `json:"exp"`
	Iat       int64      `json:"iat"`
}

func NewAuthenticationHandler(auth *service.AuthenticationService, sessions *service.SessionService, verification *service.VerificationService, cookies CookieSettings, log logrus.FieldLogger) *AuthenticationHandler {
	return &AuthenticationHandler{
		auth:         auth,
		sessions:     sessions,
		verification: verification,
		cookies:      cookies,
		log:          log,
	}
}

// Register godoc
// @Summary Регистрация
// @Description Создает неподтвержденный аккаунт и отправляет код подтверждения на email. Токены не выдаются
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "email и пароль"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "невалидный email или короткий пароль"
// @Failure 409 {object} ErrorResponse "email уже занят"
// @Router /auth/register [post]
func (handler *AuthenticationHandler) Register(writer http.ResponseWriter, request *http.Request) {
	var body CredentialsRequest
	if err := decode(writer, request, &body); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	message, err := handler.auth.Register(request.Context(), body.Email, body.Password)
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	writeMessage(writer, http.StatusCreated, message)
}

// Login godoc
// @Summary Вход
// @Description Проверяет пароль, создает сессию и устанавливает cookie access_token и refresh_token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "email и пароль"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} ErrorResponse "неверные данные или email не подтвержден"
// @Router /auth/login [post]
func (handler *AuthenticationHandler) Login(writer http.ResponseWriter, request *http.Request) {
	var body LoginRequest
	if err := decode(writer, request, &body); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	result, err := handler.auth.Login(request.Context(), body.Email, body.Password, clientContext(request))
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	handler.cookies.set(writer, result.Tokens)
	writeJSON(writer, http.StatusOK, &AuthResponse{User: result.Account})
}

// Session godoc
// @Summary Текущая сессия
// @Description Возвращает утверждения access-токена. Проверяется только подпись и срок действия
// @Tags Authentication
// @Produce json
// @Success 200 {object} SessionResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/session [get]
func (handler *AuthenticationHandler) Session(writer http.ResponseWriter, request *http.Request) {
	claims, ok := security.ClaimsFromContext(request.Context())
	if !ok {
		writeError(writer, request, handler.log, common.Unauthorized("Unauthorized"))
		return
	}

	response := &SessionResponse{
		ID:        claims.AccountID(),
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		response.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		response.Iat = claims.IssuedAt.Unix()
	}

	writeJSON(writer, http.StatusOK, response)
}

// Refresh godoc
// @Summary Обновление токенов
// @Description Обменивает refresh_token из cookie на новую пару и продлевает сессию
// @Tags Authentication
// @Produce json
// @Success 200 {object} AuthResponse
// @Failure 401 {object} ErrorResponse "нет токена, токен устарел или сессия не найдена"
// @Router /auth/refresh [post]
func (handler *AuthenticationHandler) Refresh(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.auth.Refresh(request.Context(), refreshTokenFromRequest(request), clientContext(request))
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			handler.cookies.clear(writer)
		}
		writeError(writer, request, handler.log, err)
		return
	}

	handler.cookies.set(writer, result.Tokens)
	writeJSON(writer, http.StatusOK, &AuthResponse{User: result.Account})
}

// Logout godoc
// @Summary Выход из аккаунта
// @Description Удаляет сессию, на которую указывает refresh_token, и очищает cookie. Отвечает 200 даже без сессии
// @Tags Authentication
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /auth/logout [post]
func (handler *AuthenticationHandler) Logout(writer http.ResponseWriter, request *http.Request) {
	if err := handler.sessions.Logout(request.Context(), refreshTokenFromRequest(request)); err != nil {
		handler.log.WithError(err).Warn("не удалось удалить сессию при выходе")
	}

	handler.cookies.clear(writer)
	writeMessage(writer, http.StatusOK, "Logged out")
}

// SendVerificationCode godoc
// @Summary Повторная отправка кода подтверждения
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body EmailRequest true "email аккаунта"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse "аккаунт не найден"
// @Router /auth/send-verification-code [post]
func (handler *AuthenticationHandler) SendVerificationCode(writer http.ResponseWriter, request *http.Request) {
	var body EmailRequest
	if err := decode(writer, request, &body); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	if err := handler.verification.SendVerificationCode(request.Context(), body.Email); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	writeMessage(writer, http.StatusOK, "Verification code sent")
}

// VerifyEmailCode godoc
// @Summary Подтверждение email
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body VerifyEmailRequest true "код из письма"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "код не найден, истек или уже использован"
// @Router /auth/verify-email-code [post]
func (handler *AuthenticationHandler) VerifyEmailCode(writer http.ResponseWriter, request *http.Request) {
	var body VerifyEmailRequest
	if err := decode(writer, request, &body); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	if err := handler.verification.VerifyToken(request.Context(), body.Token); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	writeMessage(writer, http.StatusOK, "Email verified")
}
