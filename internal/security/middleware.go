package security

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

type contextKey string

const claimsContextKey contextKey = "modulon.auth.claims"

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// JWTMiddleware проверяет access-токен из cookie (или заголовка Authorization) и кладет утверждения в контекст.
// Проверка только по подписи и сроку, хранилище не используется
func JWTMiddleware(issuer *TokenIssuer, log logrus.FieldLogger) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(handleAuthentication(issuer, log, next))
	}
}

func handleAuthentication(issuer *TokenIssuer, log logrus.FieldLogger, next http.Handler) func(writer http.ResponseWriter, request *http.Request) {
	return func(writer http.ResponseWriter, request *http.Request) {
		jwtTokenStr := AccessTokenFromRequest(request)
		if jwtTokenStr == "" {
			writeAuthError(writer, http.StatusUnauthorized, "Unauthorized", "missing access token")
			return
		}

		claims, err := issuer.ParseAccess(jwtTokenStr)
		if err != nil {
			log.WithError(err).Debug("невалидный access токен")
			writeAuthError(writer, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}

		next.ServeHTTP(writer, request.WithContext(WithClaims(request.Context(), claims)))
	}
}

// AccessTokenFromRequest достает access-токен из cookie, при ее отсутствии из заголовка "Authorization: Bearer"
func AccessTokenFromRequest(request *http.Request) string {
	if cookie, err := request.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authorizationHeader := request.Header.Get("Authorization")
	if strings.HasPrefix(authorizationHeader, "Bearer ") {
		return strings.TrimPrefix(authorizationHeader, "Bearer ")
	}
	return ""
}

func writeAuthError(writer http.ResponseWriter, status int, code string, message string) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(map[string]any{
		"statusCode": status,
		"error":      code,
		"message":    message,
	})
}
