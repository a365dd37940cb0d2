package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"elkayan/internal/auth"
	"elkayan/internal/errors"
	"elkayan/internal/middleware"
)

// MessageResponse is a plain success answer.
type MessageResponse struct {
	Message   string `json:"message"`
	Redirect  string `json:"redirect,omitempty"`
	CSRFToken string `json:"csrf_token,omitempty"`
}

// errorResponse converts a service error into an echo error carrying a
// generic ErrorResponse.
func errorResponse(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func badRequest() error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: "invalid request body",
		Code:  "INVALID_REQUEST",
	})
}

func requestSession(c echo.Context) (*auth.Session, error) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, errors.ErrorResponse{
			Error: "Something went wrong",
			Code:  "INTERNAL_ERROR",
		})
	}
	return sess, nil
}

func requestUser(c echo.Context) (*auth.Session, error) {
	sess, err := requestSession(c)
	if err != nil {
		return nil, err
	}
	if _, ok := middleware.UserIDFrom(c); !ok {
		return nil, errorResponse(errors.ErrUnauthenticated)
	}
	return sess, nil
}
