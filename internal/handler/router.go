package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"modulon/internal/logger"
	"modulon/internal/model"
	"modulon/internal/security"
)

// Router собирает обработчики и middleware в один chi.Router
type Router struct {
	Issuer         *security.TokenIssuer
	Authentication *AuthenticationHandler
	Users          *AdminUserHandler
	Sessions       *AdminSessionHandler
	Dashboard      *DashboardHandler
	RequestTimeout time.Duration
	Log            logrus.FieldLogger
}

func (r Router) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.RequestLogger(r.Log))
	router.Use(middleware.Recoverer)
	if r.RequestTimeout > 0 {
		router.Use(middleware.Timeout(r.RequestTimeout))
	}

	router.Get("/healthz", func(writer http.ResponseWriter, request *http.Request) {
		writeMessage(writer, http.StatusOK, "ok")
	})

	authenticated := security.JWTMiddleware(r.Issuer, r.Log)

	router.Route("/auth", func(auth chi.Router) {
		auth.Post("/register", r.Authentication.Register)
		auth.Post("/login", r.Authentication.Login)
		auth.Post("/refresh", r.Authentication.Refresh)
		auth.Post("/logout", r.Authentication.Logout)
		auth.Post("/send-verification-code", r.Authentication.SendVerificationCode)
		auth.Post("/verify-email-code", r.Authentication.VerifyEmailCode)

		auth.Group(func(protected chi.Router) {
			protected.Use(authenticated)
			protected.Get("/session", r.Authentication.Session)
			protected.Get("/me", r.Authentication.Session)
		})
	})

	router.Route("/admin", func(admin chi.Router) {
		admin.Use(authenticated)
		admin.Use(security.RequireRole(model.RoleAdmin))

		admin.Route("/users", func(users chi.Router) {
			users.Get("/", r.Users.List)
			users.Post("/", r.Users.Create)
			users.Get("/{id}", r.Users.Get)
			users.Patch("/{id}", r.Users.Update)
			users.Post("/{id}/block", r.Users.Block)
			users.Delete("/{id}", r.Users.Delete)
		})

		admin.Route("/sessions", func(sessions chi.Router) {
			sessions.Get("/", r.Sessions.List)
			sessions.Delete("/inactive/all", r.Sessions.TerminateAllInactive)
			sessions.Delete("/user/{userId}", r.Sessions.TerminateAllForUser)
			sessions.Delete("/user/{userId}/inactive", r.Sessions.TerminateInactiveForUser)
			sessions.Delete("/{id}", r.Sessions.Terminate)
		})
	})

	router.Route("/user", func(user chi.Router) {
		user.Use(authenticated)
		user.Use(security.RequireRole(model.RoleUser))

		user.Get("/dashboard", r.Dashboard.Get)
		user.Patch("/dashboard", r.Dashboard.Update)
		user.Post("/dashboard/change-password", r.Dashboard.ChangePassword)
	})

	return router
}
