package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"sentinela/internal/models"
	"sentinela/internal/testutil"
)

func userRouter(tc *testutil.TestContext) *gin.Engine {
	router := gin.New()
	users := router.Group("/api/v1/users", tc.AuthMiddleware.AuthRequired(), tc.AuthMiddleware.RequirePermission("users.manage"))
	users.GET("", tc.UserHandler.ListUsers)
	users.POST("", tc.UserHandler.CreateUser)
	users.GET("/:id", tc.UserHandler.GetUser)
	users.DELETE("/:id", tc.UserHandler.DeleteUser)
	users.POST("/:id/approve", tc.UserHandler.ApproveUser)
	users.POST("/:id/unlock", tc.UserHandler.UnlockUser)
	users.POST("/:id/roles/:roleId", tc.UserHandler.GrantRole)
	users.DELETE("/:id/roles/:roleId", tc.UserHandler.RevokeRole)
	users.GET("/:id/permissions", tc.UserHandler.ListUserPermissions)
	return router
}

func authedRequest(t *testing.T, router *gin.Engine, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUserHandler_CreateUser(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(*testutil.TestContext) string
		input      models.CreateUserRequest
		wantStatus int
		wantErr    bool
		errMsg     string
	}{
		{
			name: "Success",
			setupFunc: func(tc *testutil.TestContext) string {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				return tc.GetTestJWT(admin.ID)
			},
			input: models.CreateUserRequest{
				Email:    "new@example.com",
				Name:     "New User",
				Password: "fresh password",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "Error_DuplicateEmail",
			setupFunc: func(tc *testutil.TestContext) string {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				tc.CreateTestUser("new@example.com", "Existing User", "password1234")
				return tc.GetTestJWT(admin.ID)
			},
			input: models.CreateUserRequest{
				Email:    "new@example.com",
				Name:     "New User",
				Password: "fresh password",
			},
			wantStatus: http.StatusConflict,
			wantErr:    true,
			errMsg:     "email already exists",
		},
		{
			name: "Error_ShortPassword",
			setupFunc: func(tc *testutil.TestContext) string {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				return tc.GetTestJWT(admin.ID)
			},
			input: models.CreateUserRequest{
				Email:    "new@example.com",
				Name:     "New User",
				Password: "short",
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errMsg:     "Key: 'CreateUserRequest.Password' Error:Field validation for 'Password' failed on the 'min' tag",
		},
		{
			name: "Error_NoPermission",
			setupFunc: func(tc *testutil.TestContext) string {
				user := tc.CreateTestUser("plain@example.com", "Plain User", "password1234")
				return tc.GetTestJWT(user.ID)
			},
			input: models.CreateUserRequest{
				Email:    "new@example.com",
				Name:     "New User",
				Password: "fresh password",
			},
			wantStatus: http.StatusForbidden,
			wantErr:    true,
			errMsg:     "permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			token := tt.setupFunc(tc)
			router := userRouter(tc)

			w := authedRequest(t, router, http.MethodPost, "/api/v1/users", token, tt.input)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantErr {
				var resp models.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				require.Equal(t, tt.errMsg, resp.Error)
				return
			}

			var resp models.User
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.Equal(t, tt.input.Email, resp.Email)
			require.True(t, resp.Active)
			require.Equal(t, models.ApprovalApproved, resp.ApprovalStatus)

			// The initial password is seeded into the history so it counts
			// against reuse checks from day one.
			history, err := tc.PasswordHistoryRepo.ListRecent(context.Background(), resp.ID, 10)
			require.NoError(t, err)
			require.Len(t, history, 1)
		})
	}
}

func TestUserHandler_PermissionDeniedNamesMissingSlug(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateTestUser("plain@example.com", "Plain User", "password1234")
	token := tc.GetTestJWT(user.ID)

	w := authedRequest(t, userRouter(tc), http.MethodGet, "/api/v1/users", token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	// The body spells out which permission was missing.
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "permission denied", resp.Error)
	require.Equal(t, "users.manage", resp.Permission)
}

func TestUserHandler_CreateUserPendingWhenApprovalRequired(t *testing.T) {
	tc := testutil.NewTestContext(t)
	tc.Config.Auth.RequireApproval = true

	admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
	tc.MakeAdmin(admin.ID)
	token := tc.GetTestJWT(admin.ID)

	w := authedRequest(t, userRouter(tc), http.MethodPost, "/api/v1/users", token, models.CreateUserRequest{
		Email:    "new@example.com",
		Name:     "New User",
		Password: "fresh password",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.User
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.Equal(t, models.ApprovalPending, created.ApprovalStatus)

	// Approve and verify the status flips
	w = authedRequest(t, userRouter(tc), http.MethodPost,
		fmt.Sprintf("/api/v1/users/%s/approve", created.ID), token, models.ApprovalRequest{Notes: "verified by phone"})
	require.Equal(t, http.StatusOK, w.Code)

	approved, err := tc.UserRepo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, approved.ApprovalStatus)
}

func TestUserHandler_DeleteUser(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(*testutil.TestContext) (uuid.UUID, string)
		wantStatus int
		errMsg     string
	}{
		{
			name: "Success",
			setupFunc: func(tc *testutil.TestContext) (uuid.UUID, string) {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				victim := tc.CreateTestUser("victim@example.com", "Victim User", "password1234")
				return victim.ID, tc.GetTestJWT(admin.ID)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "Error_SelfDelete",
			setupFunc: func(tc *testutil.TestContext) (uuid.UUID, string) {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				return admin.ID, tc.GetTestJWT(admin.ID)
			},
			wantStatus: http.StatusForbidden,
			errMsg:     "cannot delete your own account",
		},
		{
			name: "Error_AdminTarget",
			setupFunc: func(tc *testutil.TestContext) (uuid.UUID, string) {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				other := tc.CreateTestUser("other@example.com", "Other Admin", "password1234")
				tc.MakeAdmin(other.ID)
				return other.ID, tc.GetTestJWT(admin.ID)
			},
			wantStatus: http.StatusForbidden,
			errMsg:     "cannot delete admin user",
		},
		{
			name: "Error_NotFound",
			setupFunc: func(tc *testutil.TestContext) (uuid.UUID, string) {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				return uuid.New(), tc.GetTestJWT(admin.ID)
			},
			wantStatus: http.StatusNotFound,
			errMsg:     "user not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			targetID, token := tt.setupFunc(tc)

			w := authedRequest(t, userRouter(tc), http.MethodDelete,
				fmt.Sprintf("/api/v1/users/%s", targetID), token, nil)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.errMsg != "" {
				var resp models.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				require.Equal(t, tt.errMsg, resp.Error)
				return
			}

			_, err := tc.UserRepo.GetByID(context.Background(), targetID)
			require.Error(t, err)
		})
	}
}

func TestUserHandler_UnlockUser(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
	tc.MakeAdmin(admin.ID)
	locked := tc.CreateTestUser("locked@example.com", "Locked User", "password1234")

	ctx := context.Background()
	for i := 0; i < tc.Config.Security.MaxFailedLogins; i++ {
		_, err := tc.Authenticator.Login(ctx, "locked@example.com", "wrong password", "10.0.0.9", "test")
		require.Error(t, err)
	}

	w := authedRequest(t, userRouter(tc), http.MethodPost,
		fmt.Sprintf("/api/v1/users/%s/unlock", locked.ID), tc.GetTestJWT(admin.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Lock lifted, login works again
	_, err := tc.Authenticator.Login(ctx, "locked@example.com", "password1234", "10.0.0.9", "test")
	require.NoError(t, err)

	// The unlock shows up under its own event type
	var unlockEvents int
	for _, log := range tc.AuditRepo.Logs() {
		if log.EventType == models.EventAccountUnlocked {
			unlockEvents++
		}
	}
	require.Equal(t, 1, unlockEvents)
}

func TestUserHandler_RoleGrantAffectsPermissions(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
	tc.MakeAdmin(admin.ID)
	token := tc.GetTestJWT(admin.ID)

	user := tc.CreateTestUser("clerk@example.com", "Clerk User", "password1234")
	role := tc.CreateTestRole("records-clerk", "Records Clerk")
	perm := tc.CreateTestPermission("patients.records.view", "View patient records")
	require.NoError(t, tc.RoleRepo.AddPermission(context.Background(), role.ID, perm.ID))

	router := userRouter(tc)

	permsOf := func() []string {
		w := authedRequest(t, router, http.MethodGet,
			fmt.Sprintf("/api/v1/users/%s/permissions", user.ID), token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var slugs []string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&slugs))
		return slugs
	}

	require.Empty(t, permsOf())

	w := authedRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/users/%s/roles/%s", user.ID, role.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"patients.records.view"}, permsOf())

	// Granting again is idempotent
	w = authedRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/users/%s/roles/%s", user.ID, role.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = authedRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/api/v1/users/%s/roles/%s", user.ID, role.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, permsOf())
}
