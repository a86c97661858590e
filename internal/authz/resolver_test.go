package authz_test

import (
	"context"
	"testing"

	"sentinela/internal/authz"
	"sentinela/internal/logger"
	"sentinela/internal/models"
	"sentinela/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type resolverFixture struct {
	permRepo *testutil.FakePermissionRepo
	roleRepo *testutil.FakeRoleRepo
	resolver *authz.Resolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	permRepo := testutil.NewFakePermissionRepo()
	roleRepo := testutil.NewFakeRoleRepo(permRepo)
	return &resolverFixture{
		permRepo: permRepo,
		roleRepo: roleRepo,
		resolver: authz.NewResolver(roleRepo, permRepo, authz.NewMemoryCache(), logger.NewNop()),
	}
}

func (f *resolverFixture) createPermission(t *testing.T, slug string) *models.Permission {
	t.Helper()
	p := &models.Permission{Slug: slug, Name: slug}
	require.NoError(t, f.permRepo.Create(context.Background(), p))
	return p
}

func (f *resolverFixture) createRole(t *testing.T, slug string) *models.Role {
	t.Helper()
	role := &models.Role{Slug: slug, Name: slug}
	require.NoError(t, f.roleRepo.Create(context.Background(), role))
	return role
}

func TestHasPermissionViaRole(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	perm := f.createPermission(t, "patients.view")
	role := f.createRole(t, "nurse")
	require.NoError(t, f.roleRepo.AddPermission(ctx, role.ID, perm.ID))

	userID := uuid.New()
	require.NoError(t, f.roleRepo.GrantToUser(ctx, role.ID, userID))

	has, err := f.resolver.HasPermission(ctx, userID, "patients.view")
	require.NoError(t, err)
	require.True(t, has)

	has, err = f.resolver.HasPermission(ctx, userID, "patients.delete")
	require.NoError(t, err)
	require.False(t, has)
}

func TestHasPermissionViaDirectGrant(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	perm := f.createPermission(t, "reports.export")
	userID := uuid.New()
	require.NoError(t, f.permRepo.GrantToUser(ctx, perm.ID, userID))

	has, err := f.resolver.HasPermission(ctx, userID, "reports.export")
	require.NoError(t, err)
	require.True(t, has)
}

func TestAdminBypassesPermissionChecks(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	admin := f.createRole(t, models.AdminRoleSlug)
	userID := uuid.New()
	require.NoError(t, f.roleRepo.GrantToUser(ctx, admin.ID, userID))

	// No explicit grant anywhere, including slugs that exist nowhere.
	has, err := f.resolver.HasPermission(ctx, userID, "anything.at.all")
	require.NoError(t, err)
	require.True(t, has)

	isAdmin, err := f.resolver.IsAdmin(ctx, userID)
	require.NoError(t, err)
	require.True(t, isAdmin)
}

func TestHasRoleHasNoAdminBypass(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	admin := f.createRole(t, models.AdminRoleSlug)
	f.createRole(t, "nurse")
	userID := uuid.New()
	require.NoError(t, f.roleRepo.GrantToUser(ctx, admin.ID, userID))

	has, err := f.resolver.HasRole(ctx, userID, "nurse")
	require.NoError(t, err)
	require.False(t, has)

	has, err = f.resolver.HasRole(ctx, userID, models.AdminRoleSlug)
	require.NoError(t, err)
	require.True(t, has)
}

func TestHasRoleMatchesSlugOrDisplayName(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	role := &models.Role{Slug: "ward-nurse", Name: "Ward Nurse"}
	require.NoError(t, f.roleRepo.Create(ctx, role))

	userID := uuid.New()
	require.NoError(t, f.roleRepo.GrantToUser(ctx, role.ID, userID))

	has, err := f.resolver.HasRole(ctx, userID, "ward-nurse")
	require.NoError(t, err)
	require.True(t, has)

	has, err = f.resolver.HasRole(ctx, userID, "Ward Nurse")
	require.NoError(t, err)
	require.True(t, has)

	has, err = f.resolver.HasRole(ctx, userID, "Head Nurse")
	require.NoError(t, err)
	require.False(t, has)
}

func TestCacheServesStaleUntilInvalidated(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	perm := f.createPermission(t, "patients.view")
	role := f.createRole(t, "nurse")
	require.NoError(t, f.roleRepo.AddPermission(ctx, role.ID, perm.ID))

	userID := uuid.New()
	require.NoError(t, f.roleRepo.GrantToUser(ctx, role.ID, userID))

	has, err := f.resolver.HasPermission(ctx, userID, "patients.view")
	require.NoError(t, err)
	require.True(t, has)

	// Revoke without invalidating: the cached snapshot still answers true.
	require.NoError(t, f.roleRepo.RevokeFromUser(ctx, role.ID, userID))
	has, err = f.resolver.HasPermission(ctx, userID, "patients.view")
	require.NoError(t, err)
	require.True(t, has)

	f.resolver.InvalidateUser(userID)
	has, err = f.resolver.HasPermission(ctx, userID, "patients.view")
	require.NoError(t, err)
	require.False(t, has)
}

func TestInvalidateRoleCascadesToMembers(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	perm := f.createPermission(t, "patients.view")
	role := f.createRole(t, "nurse")

	member := uuid.New()
	bystander := uuid.New()
	require.NoError(t, f.roleRepo.GrantToUser(ctx, role.ID, member))

	// Prime both snapshots.
	has, err := f.resolver.HasPermission(ctx, member, "patients.view")
	require.NoError(t, err)
	require.False(t, has)
	_, err = f.resolver.HasPermission(ctx, bystander, "patients.view")
	require.NoError(t, err)

	require.NoError(t, f.roleRepo.AddPermission(ctx, role.ID, perm.ID))
	f.resolver.InvalidateRole(ctx, role.ID)

	has, err = f.resolver.HasPermission(ctx, member, "patients.view")
	require.NoError(t, err)
	require.True(t, has)

	has, err = f.resolver.HasPermission(ctx, bystander, "patients.view")
	require.NoError(t, err)
	require.False(t, has)
}

func TestListPermissionsUnionsRolesAndDirectGrants(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	viewPerm := f.createPermission(t, "patients.view")
	exportPerm := f.createPermission(t, "reports.export")
	role := f.createRole(t, "nurse")
	require.NoError(t, f.roleRepo.AddPermission(ctx, role.ID, viewPerm.ID))

	userID := uuid.New()
	require.NoError(t, f.roleRepo.GrantToUser(ctx, role.ID, userID))
	require.NoError(t, f.permRepo.GrantToUser(ctx, exportPerm.ID, userID))

	slugs, err := f.resolver.ListPermissions(ctx, userID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"patients.view", "reports.export"}, slugs)
}

func TestListPermissionsForAdminReturnsCatalog(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	f.createPermission(t, "patients.view")
	f.createPermission(t, "reports.export")
	admin := f.createRole(t, models.AdminRoleSlug)

	userID := uuid.New()
	require.NoError(t, f.roleRepo.GrantToUser(ctx, admin.ID, userID))

	slugs, err := f.resolver.ListPermissions(ctx, userID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"patients.view", "reports.export"}, slugs)
}

func TestUserWithNoGrantsHasNothing(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	userID := uuid.New()

	has, err := f.resolver.HasPermission(ctx, userID, "patients.view")
	require.NoError(t, err)
	require.False(t, has)

	slugs, err := f.resolver.ListPermissions(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, slugs)

	roles, err := f.resolver.ListRoles(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, roles)
}
