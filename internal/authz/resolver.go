package authz

import (
	"context"

	"sentinela/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver answers permission and role questions about users. Snapshots are
// cached per user; writers must call the Invalidate* methods after changing
// grants or the cache serves stale answers until restart.
type Resolver struct {
	roleRepo repository.RoleRepository
	permRepo repository.PermissionRepository
	cache    Cache
	log      *zap.SugaredLogger
}

// NewResolver creates a resolver backed by the given repositories and cache.
func NewResolver(roleRepo repository.RoleRepository, permRepo repository.PermissionRepository, cache Cache, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		roleRepo: roleRepo,
		permRepo: permRepo,
		cache:    cache,
		log:      log,
	}
}

// resolve returns the cached snapshot for the user, building one on miss.
// Effective permissions are the union of every role's permissions plus
// direct grants.
func (r *Resolver) resolve(ctx context.Context, userID uuid.UUID) (*Entry, error) {
	if entry, ok := r.cache.Get(userID); ok {
		return entry, nil
	}

	roles, err := r.roleRepo.GetRolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		Permissions: make(map[string]struct{}),
		Roles:       make(map[string]struct{}),
		RoleNames:   make(map[string]struct{}),
	}

	for _, role := range roles {
		entry.Roles[role.Slug] = struct{}{}
		entry.RoleNames[role.Name] = struct{}{}
		if role.IsAdmin() {
			entry.IsAdmin = true
		}

		perms, err := r.roleRepo.GetPermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			entry.Permissions[p.Slug] = struct{}{}
		}
	}

	direct, err := r.permRepo.GetDirectForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, p := range direct {
		entry.Permissions[p.Slug] = struct{}{}
	}

	r.cache.Set(userID, entry)
	return entry, nil
}

// HasPermission reports whether the user holds the permission. Members of the
// admin role pass every check regardless of explicit grants.
func (r *Resolver) HasPermission(ctx context.Context, userID uuid.UUID, slug string) (bool, error) {
	entry, err := r.resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	if entry.IsAdmin {
		return true, nil
	}
	return entry.HasPermission(slug), nil
}

// HasRole reports whether the user holds the role, matched by slug or display
// name. No admin bypass here: role checks are about membership, not
// capability.
func (r *Resolver) HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	entry, err := r.resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return entry.HasRole(role), nil
}

// IsAdmin reports whether the user belongs to the admin role.
func (r *Resolver) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	entry, err := r.resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return entry.IsAdmin, nil
}

// ListPermissions returns the user's effective permission slugs. Admins get
// the full catalog since every check passes for them anyway.
func (r *Resolver) ListPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	entry, err := r.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	if entry.IsAdmin {
		catalog, err := r.permRepo.List(ctx)
		if err != nil {
			return nil, err
		}
		slugs := make([]string, 0, len(catalog))
		for _, p := range catalog {
			slugs = append(slugs, p.Slug)
		}
		return slugs, nil
	}

	slugs := make([]string, 0, len(entry.Permissions))
	for slug := range entry.Permissions {
		slugs = append(slugs, slug)
	}
	return slugs, nil
}

// ListRoles returns the user's role slugs.
func (r *Resolver) ListRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	entry, err := r.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(entry.Roles))
	for slug := range entry.Roles {
		slugs = append(slugs, slug)
	}
	return slugs, nil
}

// InvalidateUser drops the cached snapshot for one user. Call after granting
// or revoking a role or a direct permission.
func (r *Resolver) InvalidateUser(userID uuid.UUID) {
	r.cache.Invalidate(userID)
}

// InvalidateRole drops the snapshots of every user holding the role. Call
// after changing the role's permission set. Falls back to flushing the whole
// cache when the membership list cannot be loaded.
func (r *Resolver) InvalidateRole(ctx context.Context, roleID uuid.UUID) {
	userIDs, err := r.roleRepo.ListUserIDsWithRole(ctx, roleID)
	if err != nil {
		r.log.Warnw("failed to list role members for cache invalidation, flushing all",
			"role_id", roleID, "error", err)
		r.cache.InvalidateAll()
		return
	}
	for _, id := range userIDs {
		r.cache.Invalidate(id)
	}
}

// InvalidateAll flushes the whole cache.
func (r *Resolver) InvalidateAll() {
	r.cache.InvalidateAll()
}
