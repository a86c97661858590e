package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"sentinela/internal/models"
	"sentinela/internal/testutil"
)

func roleRouter(tc *testutil.TestContext) *gin.Engine {
	router := gin.New()
	roles := router.Group("/api/v1/roles", tc.AuthMiddleware.AuthRequired(), tc.AuthMiddleware.RequirePermission("roles.manage"))
	roles.GET("", tc.RoleHandler.ListRoles)
	roles.POST("", tc.RoleHandler.CreateRole)
	roles.GET("/:id", tc.RoleHandler.GetRole)
	roles.PUT("/:id", tc.RoleHandler.UpdateRole)
	roles.DELETE("/:id", tc.RoleHandler.DeleteRole)
	roles.POST("/:id/permissions/:permissionId", tc.RoleHandler.AddPermission)
	roles.DELETE("/:id/permissions/:permissionId", tc.RoleHandler.RemovePermission)
	return router
}

func TestRoleHandler_CreateRole(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(*testutil.TestContext) string
		input      models.CreateRoleRequest
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
			input: models.CreateRoleRequest{
				Slug: "ward-nurse",
				Name: "Ward Nurse",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "Error_InvalidSlug",
			setupFunc: func(tc *testutil.TestContext) string {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				return tc.GetTestJWT(admin.ID)
			},
			input: models.CreateRoleRequest{
				Slug: "Ward Nurse",
				Name: "Ward Nurse",
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errMsg:     "Key: 'CreateRoleRequest.Slug' Error:Field validation for 'Slug' failed on the 'slug' tag",
		},
		{
			name: "Error_DuplicateSlug",
			setupFunc: func(tc *testutil.TestContext) string {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				tc.CreateTestRole("ward-nurse", "Ward Nurse")
				return tc.GetTestJWT(admin.ID)
			},
			input: models.CreateRoleRequest{
				Slug: "ward-nurse",
				Name: "Ward Nurse",
			},
			wantStatus: http.StatusConflict,
			wantErr:    true,
			errMsg:     "role already exists",
		},
		{
			name: "Error_NoPermission",
			setupFunc: func(tc *testutil.TestContext) string {
				user := tc.CreateTestUser("plain@example.com", "Plain User", "password1234")
				return tc.GetTestJWT(user.ID)
			},
			input: models.CreateRoleRequest{
				Slug: "ward-nurse",
				Name: "Ward Nurse",
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

			w := authedRequest(t, roleRouter(tc), http.MethodPost, "/api/v1/roles", token, tt.input)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantErr {
				var resp models.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				require.Equal(t, tt.errMsg, resp.Error)
				return
			}

			var resp models.Role
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.Equal(t, tt.input.Slug, resp.Slug)
			require.False(t, resp.IsProtected)
		})
	}
}

func TestRoleHandler_DeleteRole(t *testing.T) {
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
				role := tc.CreateTestRole("ward-nurse", "Ward Nurse")
				return role.ID, tc.GetTestJWT(admin.ID)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "Error_ProtectedRole",
			setupFunc: func(tc *testutil.TestContext) (uuid.UUID, string) {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				role, err := tc.RoleRepo.GetBySlug(context.Background(), models.AdminRoleSlug)
				require.NoError(tc.T, err)
				return role.ID, tc.GetTestJWT(admin.ID)
			},
			wantStatus: http.StatusForbidden,
			errMsg:     "cannot modify protected role",
		},
		{
			name: "Error_RoleInUse",
			setupFunc: func(tc *testutil.TestContext) (uuid.UUID, string) {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				role := tc.CreateTestRole("ward-nurse", "Ward Nurse")
				holder := tc.CreateTestUser("holder@example.com", "Role Holder", "password1234")
				require.NoError(tc.T, tc.RoleRepo.GrantToUser(context.Background(), role.ID, holder.ID))
				return role.ID, tc.GetTestJWT(admin.ID)
			},
			wantStatus: http.StatusConflict,
			errMsg:     "role is in use",
		},
		{
			name: "Error_NotFound",
			setupFunc: func(tc *testutil.TestContext) (uuid.UUID, string) {
				admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
				tc.MakeAdmin(admin.ID)
				return uuid.New(), tc.GetTestJWT(admin.ID)
			},
			wantStatus: http.StatusNotFound,
			errMsg:     "role not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			roleID, token := tt.setupFunc(tc)

			w := authedRequest(t, roleRouter(tc), http.MethodDelete,
				fmt.Sprintf("/api/v1/roles/%s", roleID), token, nil)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.errMsg != "" {
				var resp models.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				require.Equal(t, tt.errMsg, resp.Error)
				return
			}

			_, err := tc.RoleRepo.GetByID(context.Background(), roleID)
			require.Error(t, err)
		})
	}
}

func TestRoleHandler_PermissionAttachCascades(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
	tc.MakeAdmin(admin.ID)
	token := tc.GetTestJWT(admin.ID)

	role := tc.CreateTestRole("records-clerk", "Records Clerk")
	perm := tc.CreateTestPermission("patients.records.view", "View patient records")

	holder := tc.CreateTestUser("clerk@example.com", "Clerk User", "password1234")
	ctx := context.Background()
	require.NoError(t, tc.RoleRepo.GrantToUser(ctx, role.ID, holder.ID))

	// Warm the holder's cache before the role changes
	has, err := tc.Resolver.HasPermission(ctx, holder.ID, "patients.records.view")
	require.NoError(t, err)
	require.False(t, has)

	router := roleRouter(tc)
	w := authedRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/roles/%s/permissions/%s", role.ID, perm.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The attach invalidated every member's snapshot
	has, err = tc.Resolver.HasPermission(ctx, holder.ID, "patients.records.view")
	require.NoError(t, err)
	require.True(t, has)

	w = authedRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/api/v1/roles/%s/permissions/%s", role.ID, perm.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	has, err = tc.Resolver.HasPermission(ctx, holder.ID, "patients.records.view")
	require.NoError(t, err)
	require.False(t, has)
}

func TestRoleHandler_GetRoleIncludesPermissions(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
	tc.MakeAdmin(admin.ID)

	role := tc.CreateTestRole("records-clerk", "Records Clerk")
	perm := tc.CreateTestPermission("patients.records.view", "View patient records")
	require.NoError(t, tc.RoleRepo.AddPermission(context.Background(), role.ID, perm.ID))

	w := authedRequest(t, roleRouter(tc), http.MethodGet,
		fmt.Sprintf("/api/v1/roles/%s", role.ID), tc.GetTestJWT(admin.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.Role
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Permissions, 1)
	require.Equal(t, "patients.records.view", resp.Permissions[0].Slug)
}
