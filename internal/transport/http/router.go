package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/asaancar/identity-api/internal/application/auth"
	"github.com/asaancar/identity-api/internal/application/device"
	"github.com/asaancar/identity-api/internal/application/session"
	"github.com/asaancar/identity-api/internal/application/user"
	"github.com/asaancar/identity-api/internal/config"
	"github.com/asaancar/identity-api/internal/domain"
	"github.com/asaancar/identity-api/internal/transport/http/handler"
	appmiddleware "github.com/asaancar/identity-api/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to public auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	refreshDur := time.Duration(cfg.RefreshTokenExpiryDays) * 24 * time.Hour

	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:          deps.UserRepo,
		ChallengeRepo:     deps.ChallengeRepo,
		SignupStore:       deps.SignupStore,
		SessionRepo:       deps.SessionRepo,
		DeviceRepo:        deps.DeviceRepo,
		Mailer:            deps.Mailer,
		SMSSender:         deps.SMSSender,
		Verifier:          deps.Verifier,
		JWTProvider:       deps.JWTProvider,
		RefreshTokenDur:   refreshDur,
		OTPTTL:            cfg.OTPTTL,
		SignupVerifiedTTL: cfg.SignupVerifiedTTL,
		DemoPhone:         cfg.DemoPhoneNumber,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo:     deps.SessionRepo,
		UserRepo:        deps.UserRepo,
		DeviceRepo:      deps.DeviceRepo,
		JWTProvider:     deps.JWTProvider,
		RefreshTokenDur: refreshDur,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:    deps.UserRepo,
		SessionRepo: deps.SessionRepo,
		FileRepo:    deps.FileRepo,
		Objects:     deps.S3Store,
	})
	deviceSvc := device.NewService(deps.DeviceRepo, deps.SessionRepo)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc)
	deviceH := handler.NewDeviceHandler(deviceSvc)

	r.Route("/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)

			r.Post("/auth/send-login-otp", authH.SendLoginOTP)
			r.Post("/auth/verify-login-otp", authH.VerifyLoginOTP)
			r.Post("/auth/send-signup-otp", authH.SendSignupOTP)
			r.Post("/auth/verify-signup-otp", authH.VerifySignupOTP)
			r.Post("/auth/set-password", authH.SetPassword)
			r.Post("/auth/register", authH.Register)
			r.Post("/auth/login", sessionH.Login)
			r.Post("/sessions/refresh", sessionH.Refresh)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Post("/users/password", userH.ChangePassword)
			r.Post("/users/{id}/avatar", userH.UploadAvatar)
			r.Get("/users/{id}/avatar", userH.DownloadAvatar)

			r.Get("/devices", deviceH.List)
			r.Delete("/devices/{id}", deviceH.Delete)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users", userH.List)
				r.Delete("/users/{id}", userH.Delete)
			})
		})
	})

	return r
}
