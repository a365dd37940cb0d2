package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"elkayan/internal/auth"
	"elkayan/internal/config"
	"elkayan/internal/handler"
	"elkayan/internal/middleware"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Password *handler.PasswordHandler
	Profile  *handler.ProfileHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	logger *zap.Logger,
	sessions auth.SessionStoreInterface,
	codec *auth.CookieCodec,
	h Handlers,
) {
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api",
		middleware.Session(middleware.SessionConfig{
			Store:      sessions,
			Codec:      codec,
			CookieName: cfg.SessionCookie,
			Lifetime:   cfg.SessionLifetime,
			Secure:     cfg.SessionSecureCookie,
			Logger:     logger,
			// Logout answers even when the session store is down.
			FailOpen: func(c echo.Context) bool {
				return c.Request().Method == http.MethodPost && c.Path() == "/api/logout"
			},
		}),
		middleware.CSRF(),
	)

	// Public routes
	api.GET("/csrf-token", h.Auth.CSRFToken)
	api.POST("/register", h.Auth.Register)
	api.POST("/login", h.Auth.Login)
	api.POST("/logout", h.Auth.Logout)
	api.POST("/forgot-password", h.Password.ForgotPassword)
	api.POST("/reset-password", h.Password.ResetPassword)
	api.GET("/reset-password/:token", h.Password.CheckResetLink)
	if cfg.EmailCheckEnabled {
		api.POST("/check-email", h.Auth.CheckEmail)
	}

	// Secured routes (require a signed-in session)
	secured := api.Group("", middleware.RequireAuth())
	secured.GET("/profile", h.Profile.GetProfile)
	secured.PUT("/profile", h.Profile.UpdateProfile)
	secured.POST("/profile/password", h.Profile.ChangePassword)
	secured.POST("/profile/check-password", h.Profile.CheckPassword)
	secured.DELETE("/profile/image", h.Profile.DeleteProfileImage)
}
