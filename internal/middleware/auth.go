package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "elkayan/internal/errors"
)

// UserIDContextKey is the echo context key of the signed-in user's id.
const UserIDContextKey = "user_id"

// RequireAuth rejects requests without a signed-in principal.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, ok := SessionFrom(c)
			if !ok {
				return unauthenticated()
			}
			userID, ok := sess.UserID()
			if !ok {
				return unauthenticated()
			}
			c.Set(UserIDContextKey, userID)
			return next(c)
		}
	}
}

// UserIDFrom returns the signed-in user's id set by RequireAuth, or the
// principal of the session on routes without it.
func UserIDFrom(c echo.Context) (uuid.UUID, bool) {
	if id, ok := c.Get(UserIDContextKey).(uuid.UUID); ok {
		return id, true
	}
	if sess, ok := SessionFrom(c); ok {
		return sess.UserID()
	}
	return uuid.Nil, false
}

func unauthenticated() error {
	return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
		Error: "unauthenticated",
		Code:  "UNAUTHENTICATED",
	})
}
