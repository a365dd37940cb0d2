// Package middleware binds server-side sessions to echo requests.
package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"elkayan/internal/auth"
	apperrors "elkayan/internal/errors"
)

// SessionContextKey is the echo context key of the request's *auth.Session.
const SessionContextKey = "session"

// SessionConfig configures the Session middleware.
type SessionConfig struct {
	Store      auth.SessionStoreInterface
	Codec      *auth.CookieCodec
	CookieName string
	Lifetime   time.Duration
	Secure     bool
	Logger     *zap.Logger
	// FailOpen selects requests that proceed on a detached guest session
	// when the store is unreachable instead of failing.
	FailOpen func(c echo.Context) bool
}

// Session resumes the session named by the signed cookie, or starts a guest
// session when the cookie is missing, forged, expired or unknown. The cookie
// is rewritten before the response so id rotations reach the client.
func Session(cfg SessionConfig) echo.MiddlewareFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	parse := echojwt.WithConfig(echojwt.Config{
		SigningKey:    cfg.Codec.SigningKey(),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		TokenLookup:   "cookie:" + cfg.CookieName,
		ContextKey:    auth.SessionTokenContextKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return cfg.Codec.NewClaims()
		},
		// A bad cookie means a new guest session, not an error.
		ContinueOnIgnoredError: true,
		ErrorHandler: func(echo.Context, error) error {
			return nil
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return parse(func(c echo.Context) error {
			ctx := c.Request().Context()

			var sess *auth.Session
			if token, ok := c.Get(auth.SessionTokenContextKey).(*jwt.Token); ok {
				if id, err := auth.SessionIDFromToken(token); err == nil {
					resumed, err := auth.ResumeSession(ctx, cfg.Store, id)
					switch {
					case err == nil:
						sess = resumed
					case !errors.Is(err, auth.ErrSessionNotFound):
						cfg.Logger.Warn("session load failed", zap.Error(err))
					}
				}
			}

			if sess == nil {
				started, err := auth.StartSession(ctx, cfg.Store)
				if err != nil {
					cfg.Logger.Error("session start failed", zap.Error(err))
					if cfg.FailOpen == nil || !cfg.FailOpen(c) {
						return internalError()
					}
					if started, err = auth.DetachedSession(cfg.Store); err != nil {
						return internalError()
					}
				}
				sess = started
			}

			c.Set(SessionContextKey, sess)
			c.Response().Before(func() {
				value, err := cfg.Codec.Encode(sess.ID())
				if err != nil {
					cfg.Logger.Error("session cookie encode failed", zap.Error(err))
					return
				}
				c.SetCookie(&http.Cookie{
					Name:     cfg.CookieName,
					Value:    value,
					Path:     "/",
					MaxAge:   int(cfg.Lifetime.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			})

			return next(c)
		})
	}
}

func internalError() error {
	return echo.NewHTTPError(http.StatusInternalServerError, apperrors.ErrorResponse{
		Error: "Something went wrong",
		Code:  "INTERNAL_ERROR",
	})
}

// SessionFrom returns the request's session.
func SessionFrom(c echo.Context) (*auth.Session, bool) {
	sess, ok := c.Get(SessionContextKey).(*auth.Session)
	return sess, ok && sess != nil
}
