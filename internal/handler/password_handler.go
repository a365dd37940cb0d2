package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"elkayan/internal/errors"
	"elkayan/internal/service"
)

// PasswordHandler handles forgot-password and reset-password endpoints.
type PasswordHandler struct {
	passwordService service.PasswordService
}

// NewPasswordHandler creates a new password handler.
func NewPasswordHandler(passwordService service.PasswordService) *PasswordHandler {
	return &PasswordHandler{passwordService: passwordService}
}

// ForgotPasswordRequest represents a reset link request.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword godoc
// @Summary Request a password reset link
// @Description The answer is the same whether or not the email is registered.
// @Tags password
// @Accept json
// @Produce json
// @Param X-CSRF-TOKEN header string true "Anti-forgery token"
// @Param request body ForgotPasswordRequest true "Email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /forgot-password [post]
func (h *PasswordHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	if err := h.passwordService.RequestReset(c.Request().Context(), req.Email); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Message: "If that email is registered, a password reset link is on its way.",
	})
}

// ResetPassword godoc
// @Summary Reset a password with an emailed token
// @Tags password
// @Accept json
// @Produce json
// @Param X-CSRF-TOKEN header string true "Anti-forgery token"
// @Param request body service.ResetInput true "Token, email and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /reset-password [post]
func (h *PasswordHandler) ResetPassword(c echo.Context) error {
	var req service.ResetInput
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	if _, err := h.passwordService.RedeemReset(c.Request().Context(), req); err != nil {
		return withEmail(err, req.Email)
	}

	return c.JSON(http.StatusOK, MessageResponse{
		Message:  "Your password has been reset.",
		Redirect: "/login",
	})
}

// CheckResetLink godoc
// @Summary Check an emailed reset link before showing the reset form
// @Description The token stays usable; only POST /reset-password spends it.
// @Tags password
// @Produce json
// @Param token path string true "Reset token from the email"
// @Param email query string true "Email the link was sent to"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /reset-password/{token} [get]
func (h *PasswordHandler) CheckResetLink(c echo.Context) error {
	email := c.QueryParam("email")
	if err := h.passwordService.CheckResetLink(c.Request().Context(), c.Param("token"), email); err != nil {
		return withEmail(err, email)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "The reset link is valid."})
}

// withEmail maps err and echoes the submitted email so the form can refill it.
func withEmail(err error, email string) error {
	httpErr := errors.MapErrorToHTTP(err)
	resp := httpErr.ToErrorResponse()
	resp.Email = email
	return echo.NewHTTPError(httpErr.StatusCode, resp)
}
