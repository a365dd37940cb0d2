package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"elkayan/internal/middleware"
	"elkayan/internal/model"
	"elkayan/internal/service"
)

// ProfileHandler handles the signed-in user's account endpoints.
type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// ProfileResponse wraps the account.
type ProfileResponse struct {
	Message string             `json:"message,omitempty"`
	User    *model.UserAccount `json:"user"`
}

// CheckPasswordRequest carries the password to check.
type CheckPasswordRequest struct {
	CurrentPassword string `json:"current_password"`
}

// CheckPasswordResponse reports whether the password matched.
type CheckPasswordResponse struct {
	Valid bool `json:"valid"`
}

// GetProfile godoc
// @Summary Get the signed-in user's profile
// @Tags profile
// @Produce json
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /profile [get]
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	userID, _ := middleware.UserIDFrom(c)

	user, err := h.profileService.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, ProfileResponse{User: user})
}

// UpdateProfile godoc
// @Summary Update the signed-in user's profile
// @Description A new password is applied only with the correct current password; otherwise nothing changes.
// @Tags profile
// @Accept json
// @Produce json
// @Param X-CSRF-TOKEN header string true "Anti-forgery token"
// @Param request body service.ProfileInput true "Profile"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /profile [put]
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	sess, err := requestUser(c)
	if err != nil {
		return err
	}
	userID, _ := middleware.UserIDFrom(c)

	var req service.ProfileInput
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	user, err := h.profileService.UpdateProfile(c.Request().Context(), userID, sess.ID(), req)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, ProfileResponse{Message: "Profile updated successfully.", User: user})
}

// ChangePassword godoc
// @Summary Change the signed-in user's password
// @Tags profile
// @Accept json
// @Produce json
// @Param X-CSRF-TOKEN header string true "Anti-forgery token"
// @Param request body service.ChangePasswordInput true "Current and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /profile/password [post]
func (h *ProfileHandler) ChangePassword(c echo.Context) error {
	sess, err := requestUser(c)
	if err != nil {
		return err
	}
	userID, _ := middleware.UserIDFrom(c)

	var req service.ChangePasswordInput
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	if err := h.profileService.ChangePassword(c.Request().Context(), userID, sess.ID(), req); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Password changed successfully."})
}

// CheckPassword godoc
// @Summary Check the signed-in user's current password
// @Tags profile
// @Accept json
// @Produce json
// @Param X-CSRF-TOKEN header string true "Anti-forgery token"
// @Param request body CheckPasswordRequest true "Current password"
// @Success 200 {object} CheckPasswordResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /profile/check-password [post]
func (h *ProfileHandler) CheckPassword(c echo.Context) error {
	userID, _ := middleware.UserIDFrom(c)

	var req CheckPasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	valid, err := h.profileService.CheckPassword(c.Request().Context(), userID, req.CurrentPassword)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, CheckPasswordResponse{Valid: valid})
}

// DeleteProfileImage godoc
// @Summary Remove the signed-in user's profile picture
// @Tags profile
// @Produce json
// @Param X-CSRF-TOKEN header string true "Anti-forgery token"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /profile/image [delete]
func (h *ProfileHandler) DeleteProfileImage(c echo.Context) error {
	userID, _ := middleware.UserIDFrom(c)

	if err := h.profileService.DeleteProfileImage(c.Request().Context(), userID); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Profile picture deleted."})
}
