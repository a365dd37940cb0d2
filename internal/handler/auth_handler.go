package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"elkayan/internal/middleware"
	"elkayan/internal/model"
	"elkayan/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// CheckEmailRequest represents an email existence check.
type CheckEmailRequest struct {
	Email string `json:"email"`
}

// CheckEmailResponse reports whether the email is taken.
type CheckEmailResponse struct {
	Exists bool `json:"exists"`
}

// AuthResponse is returned after a successful sign-up or sign-in.
type AuthResponse struct {
	Message   string             `json:"message"`
	Redirect  string             `json:"redirect"`
	CSRFToken string             `json:"csrf_token"`
	User      *model.UserAccount `json:"user"`
}

// Register godoc
// @Summary Register a new user
// @Description Creates the account and signs it in.
// @Tags auth
// @Accept json
// @Produce json
// @Param X-CSRF-TOKEN header string true "Anti-forgery token"
// @Param request body service.RegisterInput true "Registration data"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 419 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	sess, err := requestSession(c)
	if err != nil {
		return err
	}

	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	user, err := h.authService.Register(c.Request().Context(), req, sess)
	if err != nil {
		return errorResponse(err)
	}

	return c.JSON(http.StatusCreated, AuthResponse{
		Message:   "Registration successful",
		Redirect:  "/",
		CSRFToken: sess.CSRFToken(),
		User:      user,
	})
}

// Login godoc
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param X-CSRF-TOKEN header string true "Anti-forgery token"
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 419 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	sess, err := requestSession(c)
	if err != nil {
		return err
	}

	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	user, err := h.authService.Login(c.Request().Context(), req, sess)
	if err != nil {
		return errorResponse(err)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		Message:   "Login successful",
		Redirect:  "/",
		CSRFToken: sess.CSRFToken(),
		User:      user,
	})
}

// Logout godoc
// @Summary Logout user
// @Description Always succeeds; the session is dropped and a fresh anti-forgery token issued.
// @Tags auth
// @Produce json
// @Param X-CSRF-TOKEN header string true "Anti-forgery token"
// @Success 200 {object} MessageResponse
// @Failure 419 {object} errors.ErrorResponse
// @Router /logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	sess, err := requestSession(c)
	if err != nil {
		return err
	}

	h.authService.Logout(c.Request().Context(), sess)

	return c.JSON(http.StatusOK, MessageResponse{
		Message:   "Logged out",
		Redirect:  "/login",
		CSRFToken: sess.CSRFToken(),
	})
}

// CheckEmail godoc
// @Summary Check whether an email is registered
// @Tags auth
// @Accept json
// @Produce json
// @Param X-CSRF-TOKEN header string true "Anti-forgery token"
// @Param request body CheckEmailRequest true "Email"
// @Success 200 {object} CheckEmailResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /check-email [post]
func (h *AuthHandler) CheckEmail(c echo.Context) error {
	var req CheckEmailRequest
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	var requester *uuid.UUID
	if id, ok := middleware.UserIDFrom(c); ok {
		requester = &id
	}

	exists, err := h.authService.CheckEmailExists(c.Request().Context(), req.Email, requester)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, CheckEmailResponse{Exists: exists})
}

// CSRFToken godoc
// @Summary Get the session's anti-forgery token
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /csrf-token [get]
func (h *AuthHandler) CSRFToken(c echo.Context) error {
	sess, err := requestSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "ok", CSRFToken: sess.CSRFToken()})
}
