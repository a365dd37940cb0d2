package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "elkayan/internal/errors"
)

const (
	// CSRFHeader carries the anti-forgery token on XHR requests.
	CSRFHeader = "X-CSRF-TOKEN"
	// CSRFFormField carries the anti-forgery token on form posts.
	CSRFFormField = "_token"

	// StatusPageExpired is returned when the anti-forgery token does not
	// match the session.
	StatusPageExpired = 419
)

// CSRF rejects unsafe requests whose token does not match the one bound to
// the session. Must run after Session. A detached session has no stored
// token to compare against and is let through; Session only hands those
// out to FailOpen requests.
func CSRF() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			sess, ok := SessionFrom(c)
			if !ok {
				return mismatch()
			}
			if sess.Detached() {
				return next(c)
			}

			token := c.Request().Header.Get(CSRFHeader)
			if token == "" {
				token = c.FormValue(CSRFFormField)
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(sess.CSRFToken())) != 1 {
				return mismatch()
			}
			return next(c)
		}
	}
}

func mismatch() error {
	return echo.NewHTTPError(StatusPageExpired, apperrors.ErrorResponse{
		Error: "CSRF token mismatch",
		Code:  "CSRF_TOKEN_MISMATCH",
	})
}
