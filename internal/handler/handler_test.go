package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"elkayan/internal/auth"
	apperrors "elkayan/internal/errors"
	"elkayan/internal/middleware"
	"elkayan/internal/model"
	"elkayan/internal/service"
)

// MockAuthService is a mock implementation of AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, in service.RegisterInput, sess service.Session) (*model.UserAccount, error) {
	args := m.Called(ctx, in, sess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserAccount), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, in service.LoginInput, sess service.Session) (*model.UserAccount, error) {
	args := m.Called(ctx, in, sess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserAccount), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, sess service.Session) {
	m.Called(ctx, sess)
}

func (m *MockAuthService) CheckEmailExists(ctx context.Context, email string, requester *uuid.UUID) (bool, error) {
	args := m.Called(ctx, email, requester)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthService) SeedAccounts(ctx context.Context, accounts []service.RegisterInput) (int, error) {
	args := m.Called(ctx, accounts)
	return args.Int(0), args.Error(1)
}

// MockPasswordService is a mock implementation of PasswordService.
type MockPasswordService struct {
	mock.Mock
}

func (m *MockPasswordService) RequestReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockPasswordService) RedeemReset(ctx context.Context, in service.ResetInput) (*model.UserAccount, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserAccount), args.Error(1)
}

func (m *MockPasswordService) CheckResetLink(ctx context.Context, token, email string) error {
	args := m.Called(ctx, token, email)
	return args.Error(0)
}

// MockProfileService is a mock implementation of ProfileService.
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.UserAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserAccount), args.Error(1)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, sessionID string, in service.ProfileInput) (*model.UserAccount, error) {
	args := m.Called(ctx, userID, sessionID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserAccount), args.Error(1)
}

func (m *MockProfileService) ChangePassword(ctx context.Context, userID uuid.UUID, sessionID string, in service.ChangePasswordInput) error {
	args := m.Called(ctx, userID, sessionID, in)
	return args.Error(0)
}

func (m *MockProfileService) CheckPassword(ctx context.Context, userID uuid.UUID, current string) (bool, error) {
	args := m.Called(ctx, userID, current)
	return args.Bool(0), args.Error(1)
}

func (m *MockProfileService) DeleteProfileImage(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newTestSession(t *testing.T) *auth.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sess, err := auth.StartSession(context.Background(), auth.NewSessionStore(client, time.Hour))
	require.NoError(t, err)
	return sess
}

func newContext(t *testing.T, method, path, body string, sess *auth.Session) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if sess != nil {
		c.Set(middleware.SessionContextKey, sess)
	}
	return c, rec
}

// httpError unpacks an error returned by a handler.
func httpError(t *testing.T, err error) (int, apperrors.ErrorResponse) {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected *echo.HTTPError, got %v", err)
	resp, ok := he.Message.(apperrors.ErrorResponse)
	require.True(t, ok, "unexpected message type %T", he.Message)
	return he.Code, resp
}

func TestAuthHandler_Register(t *testing.T) {
	sess := newTestSession(t)
	user := &model.UserAccount{ID: uuid.New(), Email: "a@x.com", PasswordHash: "$2a$10$secret"}

	tests := []struct {
		name       string
		body       string
		setupMock  func(m *MockAuthService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "success",
			body: `{"name":"A","email":"a@x.com","password":"longenough1","password_confirmation":"longenough1","role":"buyer"}`,
			setupMock: func(m *MockAuthService) {
				m.On("Register", mock.Anything, mock.MatchedBy(func(in service.RegisterInput) bool {
					return in.Email == "a@x.com" && in.Role == model.RoleBuyer
				}), sess).Return(user, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "validation",
			body: `{"email":"a@x.com"}`,
			setupMock: func(m *MockAuthService) {
				verr := apperrors.NewValidationError()
				verr.Add("email", "The email has already been taken.")
				m.On("Register", mock.Anything, mock.Anything, sess).Return(nil, verr)
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name: "persistence failure is generic",
			body: `{"email":"a@x.com"}`,
			setupMock: func(m *MockAuthService) {
				m.On("Register", mock.Anything, mock.Anything, sess).
					Return(nil, errors.Join(apperrors.ErrPersistence, errors.New("Error 1205: Lock wait timeout")))
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
		{
			name:       "malformed body",
			body:       `{"email":`,
			setupMock:  func(m *MockAuthService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAuthService)
			tt.setupMock(svc)
			h := NewAuthHandler(svc)
			c, rec := newContext(t, http.MethodPost, "/api/register", tt.body, sess)

			err := h.Register(c)

			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, rec.Code)
				assert.NotContains(t, rec.Body.String(), "$2a$10$secret")
				var resp AuthResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, sess.CSRFToken(), resp.CSRFToken)
				assert.Equal(t, user.ID, resp.User.ID)
			} else {
				status, resp := httpError(t, err)
				assert.Equal(t, tt.wantStatus, status)
				assert.Equal(t, tt.wantCode, resp.Code)
				assert.NotContains(t, resp.Error, "Lock wait")
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	sess := newTestSession(t)
	svc := new(MockAuthService)
	svc.On("Login", mock.Anything, service.LoginInput{Email: "z@x.com", Password: "longenough1"}, sess).
		Return(nil, apperrors.ErrInvalidCredentials)
	h := NewAuthHandler(svc)
	c, _ := newContext(t, http.MethodPost, "/api/login", `{"email":"z@x.com","password":"longenough1"}`, sess)

	status, resp := httpError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", resp.Error)
	svc.AssertExpectations(t)
}

func TestAuthHandler_Logout(t *testing.T) {
	sess := newTestSession(t)
	svc := new(MockAuthService)
	svc.On("Logout", mock.Anything, sess).Return()
	h := NewAuthHandler(svc)
	c, rec := newContext(t, http.MethodPost, "/api/logout", "", sess)

	require.NoError(t, h.Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/login", resp.Redirect)
	svc.AssertExpectations(t)
}

func TestAuthHandler_CheckEmail(t *testing.T) {
	sess := newTestSession(t)
	userID := uuid.New()
	require.NoError(t, sess.Establish(context.Background(), userID))

	svc := new(MockAuthService)
	svc.On("CheckEmailExists", mock.Anything, "a@x.com", &userID).Return(true, nil)
	h := NewAuthHandler(svc)
	c, rec := newContext(t, http.MethodPost, "/api/check-email", `{"email":"a@x.com"}`, sess)

	require.NoError(t, h.CheckEmail(c))

	assert.JSONEq(t, `{"exists":true}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestAuthHandler_MissingSession(t *testing.T) {
	h := NewAuthHandler(new(MockAuthService))
	c, _ := newContext(t, http.MethodPost, "/api/login", `{}`, nil)

	status, _ := httpError(t, h.Login(c))
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestPasswordHandler_ForgotPassword(t *testing.T) {
	svc := new(MockPasswordService)
	svc.On("RequestReset", mock.Anything, "a@x.com").Return(nil)
	h := NewPasswordHandler(svc)
	c, rec := newContext(t, http.MethodPost, "/api/forgot-password", `{"email":"a@x.com"}`, nil)

	require.NoError(t, h.ForgotPassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestPasswordHandler_ResetPassword(t *testing.T) {
	body := `{"token":"t","email":"a@x.com","password":"brandnew123","password_confirmation":"brandnew123"}`
	in := service.ResetInput{Token: "t", Email: "a@x.com", Password: "brandnew123", PasswordConfirmation: "brandnew123"}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantEmail  string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "token invalid keeps email", err: apperrors.ErrTokenInvalid, wantStatus: http.StatusBadRequest, wantCode: "TOKEN_INVALID", wantEmail: "a@x.com"},
		{name: "persistence keeps email", err: apperrors.ErrPersistence, wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR", wantEmail: "a@x.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPasswordService)
			if tt.err != nil {
				svc.On("RedeemReset", mock.Anything, in).Return(nil, tt.err)
			} else {
				svc.On("RedeemReset", mock.Anything, in).Return(&model.UserAccount{ID: uuid.New()}, nil)
			}
			h := NewPasswordHandler(svc)
			c, rec := newContext(t, http.MethodPost, "/api/reset-password", body, nil)

			err := h.ResetPassword(c)

			if tt.err == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, rec.Code)
				return
			}
			status, resp := httpError(t, err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantEmail, resp.Email)
		})
	}
}

func TestProfileHandler_UpdateProfile(t *testing.T) {
	sess := newTestSession(t)
	userID := uuid.New()
	require.NoError(t, sess.Establish(context.Background(), userID))

	svc := new(MockProfileService)
	svc.On("UpdateProfile", mock.Anything, userID, sess.ID(), mock.AnythingOfType("service.ProfileInput")).
		Return(nil, apperrors.ErrCurrentPasswordInvalid)
	h := NewProfileHandler(svc)
	c, _ := newContext(t, http.MethodPut, "/api/profile", `{"name":"A","email":"a@x.com","new_password":"brandnew123"}`, sess)

	status, resp := httpError(t, h.UpdateProfile(c))

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "CURRENT_PASSWORD_INVALID", resp.Code)
	assert.Contains(t, resp.Fields, "current_password")
	svc.AssertExpectations(t)
}

func TestProfileHandler_ChangePassword_Unauthenticated(t *testing.T) {
	h := NewProfileHandler(new(MockProfileService))
	c, _ := newContext(t, http.MethodPost, "/api/profile/password", `{}`, newTestSession(t))

	status, resp := httpError(t, h.ChangePassword(c))

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", resp.Code)
}

func TestProfileHandler_CheckPassword(t *testing.T) {
	sess := newTestSession(t)
	userID := uuid.New()
	require.NoError(t, sess.Establish(context.Background(), userID))

	svc := new(MockProfileService)
	svc.On("CheckPassword", mock.Anything, userID, "longenough1").Return(true, nil)
	h := NewProfileHandler(svc)
	c, rec := newContext(t, http.MethodPost, "/api/profile/check-password", `{"current_password":"longenough1"}`, sess)

	require.NoError(t, h.CheckPassword(c))

	assert.JSONEq(t, `{"valid":true}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestProfileHandler_GetProfile(t *testing.T) {
	sess := newTestSession(t)
	userID := uuid.New()
	require.NoError(t, sess.Establish(context.Background(), userID))

	svc := new(MockProfileService)
	svc.On("GetProfile", mock.Anything, userID).Return(&model.UserAccount{ID: userID, Email: "a@x.com", PasswordHash: "$2a$10$secret"}, nil)
	h := NewProfileHandler(svc)
	c, rec := newContext(t, http.MethodGet, "/api/profile", "", sess)

	require.NoError(t, h.GetProfile(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a@x.com")
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestPasswordHandler_CheckResetLink(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "valid", wantStatus: http.StatusOK},
		{name: "invalid", err: apperrors.ErrTokenInvalid, wantStatus: http.StatusBadRequest, wantCode: "TOKEN_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPasswordService)
			svc.On("CheckResetLink", mock.Anything, "tok", "a@x.com").Return(tt.err)
			h := NewPasswordHandler(svc)
			c, rec := newContext(t, http.MethodGet, "/api/reset-password/tok?email=a@x.com", "", nil)
			c.SetParamNames("token")
			c.SetParamValues("tok")

			err := h.CheckResetLink(c)

			svc.AssertExpectations(t)
			if tt.err == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, rec.Code)
				return
			}
			status, resp := httpError(t, err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, "a@x.com", resp.Email)
		})
	}
}

func TestProfileHandler_DeleteProfileImage(t *testing.T) {
	sess := newTestSession(t)
	userID := uuid.New()
	require.NoError(t, sess.Establish(context.Background(), userID))

	svc := new(MockProfileService)
	svc.On("DeleteProfileImage", mock.Anything, userID).Return(nil)
	h := NewProfileHandler(svc)
	c, rec := newContext(t, http.MethodDelete, "/api/profile/image", "", sess)

	require.NoError(t, h.DeleteProfileImage(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Profile picture deleted.")
	svc.AssertExpectations(t)
}
