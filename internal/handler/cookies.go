package handler

import (
	"net/http"
	"time"

	"modulon/internal/model"
	"modulon/internal/security"
)

// CookieSettings атрибуты cookie с токенами
type CookieSettings struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (settings CookieSettings) set(writer http.ResponseWriter, tokens model.TokensPair) {
	http.SetCookie(writer, settings.cookie(security.AccessTokenCookie, tokens.AccessToken, settings.AccessTTL))
	http.SetCookie(writer, settings.cookie(security.RefreshTokenCookie, tokens.RefreshToken, settings.RefreshTTL))
}

func (settings CookieSettings) clear(writer http.ResponseWriter) {
	for _, name := range []string{security.AccessTokenCookie, security.RefreshTokenCookie} {
		cookie := settings.cookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(writer, cookie)
	}
}

func (settings CookieSettings) cookie(name string, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func refreshTokenFromRequest(request *http.Request) string {
	cookie, err := request.Cookie(security.RefreshTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}
