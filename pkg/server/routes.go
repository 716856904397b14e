package server

import (
	"rapport/pkg/handlers"
	"rapport/pkg/hub"
	"rapport/pkg/logging"
	"rapport/pkg/middleware"
	"rapport/pkg/ratelimit"
	"rapport/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type Deps struct {
	Auth     services.AuthService
	Insights services.InsightService
	Hub      *hub.Hub
	Tokens   middleware.TokenValidator
	Gate     ratelimit.Gate
	Quotas   ratelimit.Quotas
	Cookie   handlers.CookieConfig
	Log      logging.Logger
}

// Register mounts the API. Every route below passes the rate gate before
// authentication.
func Register(app *fiber.App, d Deps) {
	app.Use(middleware.RateLimit(d.Gate, d.Quotas, d.Log))

	authH := handlers.NewAuth(d.Auth, d.Cookie)
	userH := handlers.NewUsers(d.Auth)
	insightH := handlers.NewInsights(d.Insights)
	rtH := handlers.NewRealtime(d.Hub)
	requireAuth := middleware.RequireAuth(d.Tokens)

	a := app.Group("/auth")
	a.Post("/register", authH.Register)
	a.Post("/login", authH.Login)
	a.Post("/refresh", authH.Refresh)
	a.Post("/logout", requireAuth, authH.Logout)
	a.Post("/logout-all", requireAuth, authH.LogoutAll)
	a.Get("/sessions", requireAuth, authH.Sessions)
	a.Put("/password", requireAuth, authH.ChangePassword)

	app.Get("/users/me", requireAuth, userH.Me)

	app.Post("/ai/insights/preview", requireAuth, insightH.Preview)

	app.Get("/ws", middleware.WebSocketAuth(d.Tokens), rtH.Socket())
	app.Get("/hub/status", requireAuth, rtH.Status)
}
