package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"sentinela/internal/auth"
	"sentinela/internal/models"
	"sentinela/internal/testutil"
)

func loginRouter(tc *testutil.TestContext) *gin.Engine {
	router := gin.New()
	router.POST("/api/v1/auth/login", tc.AuthHandler.Login)
	return router
}

func doLogin(t *testing.T, router *gin.Engine, email, password string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(models.LoginRequest{Email: email, Password: password})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(*testutil.TestContext)
		email      string
		password   string
		wantStatus int
		wantErr    bool
		errMsg     string
	}{
		{
			name: "Success",
			setupFunc: func(tc *testutil.TestContext) {
				tc.CreateTestUser("nurse@example.com", "Test Nurse", "correct horse battery")
			},
			email:      "nurse@example.com",
			password:   "correct horse battery",
			wantStatus: http.StatusOK,
		},
		{
			name: "Error_WrongPassword",
			setupFunc: func(tc *testutil.TestContext) {
				tc.CreateTestUser("nurse@example.com", "Test Nurse", "correct horse battery")
			},
			email:      "nurse@example.com",
			password:   "wrong password",
			wantStatus: http.StatusUnauthorized,
			wantErr:    true,
			errMsg:     "invalid credentials",
		},
		{
			name:       "Error_UnknownEmail",
			setupFunc:  func(tc *testutil.TestContext) {},
			email:      "nobody@example.com",
			password:   "whatever password",
			wantStatus: http.StatusUnauthorized,
			wantErr:    true,
			errMsg:     "invalid credentials",
		},
		{
			name: "Error_DisabledAccount",
			setupFunc: func(tc *testutil.TestContext) {
				user := tc.CreateTestUser("nurse@example.com", "Test Nurse", "correct horse battery")
				require.NoError(tc.T, tc.UserRepo.SetActive(context.Background(), user.ID, false))
			},
			email:      "nurse@example.com",
			password:   "correct horse battery",
			wantStatus: http.StatusForbidden,
			wantErr:    true,
			errMsg:     "account is disabled",
		},
		{
			name: "Error_InvalidEmailFormat",
			setupFunc: func(tc *testutil.TestContext) {
			},
			email:      "not-an-email",
			password:   "whatever password",
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errMsg:     "Key: 'LoginRequest.Email' Error:Field validation for 'Email' failed on the 'email' tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			tt.setupFunc(tc)

			w := doLogin(t, loginRouter(tc), tt.email, tt.password)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantErr {
				var resp models.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				require.Equal(t, tt.errMsg, resp.Error)
				return
			}

			var resp models.LoginResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.NotEmpty(t, resp.AccessToken)
			require.Equal(t, tt.email, resp.User.Email)
			require.False(t, resp.PasswordExpired)

			claims, err := tc.AuthService.ValidateToken(resp.AccessToken)
			require.NoError(t, err)
			require.Equal(t, resp.User.ID, claims.UserID)
		})
	}
}

func TestAuthHandler_LoginLockout(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateTestUser("nurse@example.com", "Test Nurse", "correct horse battery")
	router := loginRouter(tc)

	for i := 0; i < tc.Config.Security.MaxFailedLogins; i++ {
		w := doLogin(t, router, "nurse@example.com", "wrong password")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	// The right password no longer works while the lock is live
	w := doLogin(t, router, "nurse@example.com", "correct horse battery")
	require.Equal(t, http.StatusForbidden, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Contains(t, resp.Error, "locked")

	locked, err := tc.UserRepo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, locked.IsLocked(time.Now()))
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	tests := []struct {
		name       string
		current    string
		newPass    string
		wantStatus int
		errMsg     string
	}{
		{
			name:       "Success",
			current:    "correct horse battery",
			newPass:    "an entirely new secret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Error_WrongCurrentPassword",
			current:    "not my password",
			newPass:    "an entirely new secret",
			wantStatus: http.StatusUnauthorized,
			errMsg:     "current password is incorrect",
		},
		{
			name:       "Error_SamePassword",
			current:    "correct horse battery",
			newPass:    "correct horse battery",
			wantStatus: http.StatusUnprocessableEntity,
			errMsg:     "new password must differ from the current password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			user := tc.CreateTestUser("nurse@example.com", "Test Nurse", "correct horse battery")
			token := tc.GetTestJWT(user.ID)

			router := gin.New()
			router.Use(tc.AuthMiddleware.AuthRequired())
			router.PUT("/api/v1/auth/password", tc.AuthHandler.ChangePassword)

			body, err := json.Marshal(models.ChangePasswordRequest{
				CurrentPassword: tt.current,
				NewPassword:     tt.newPass,
			})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPut, "/api/v1/auth/password", bytes.NewReader(body))
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)

			if tt.errMsg != "" {
				var resp models.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				require.Equal(t, tt.errMsg, resp.Error)
				return
			}

			// The old token is dead, the fresh one works
			var resp models.LoginResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.NotEmpty(t, resp.AccessToken)
			require.NotEqual(t, token, resp.AccessToken)

			updated, err := tc.UserRepo.GetByID(context.Background(), user.ID)
			require.NoError(t, err)
			require.False(t, tc.Sessions.Validate(updated, mustClaims(t, tc, token).SessionID))
			require.True(t, tc.Sessions.Validate(updated, mustClaims(t, tc, resp.AccessToken).SessionID))
		})
	}
}

func TestAuthHandler_LogoutRevokesToken(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateTestUser("nurse@example.com", "Test Nurse", "correct horse battery")
	token := tc.GetTestJWT(user.ID)

	router := gin.New()
	authed := router.Group("/api/v1", tc.AuthMiddleware.AuthRequired())
	authed.POST("/auth/logout", tc.AuthHandler.Logout)
	authed.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// The same token is refused afterwards
	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func mustClaims(t *testing.T, tc *testutil.TestContext, token string) *auth.Claims {
	t.Helper()
	claims, err := tc.AuthService.ValidateToken(token)
	require.NoError(t, err)
	return claims
}
