package testutil

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/google/uuid"
)

// fakeBase satisfies the Repository interface for in-memory fakes. There is
// no real transaction; fn runs directly against the fake's maps.
type fakeBase struct{}

func (fakeBase) DB() *sql.DB { return nil }

func (fakeBase) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// FakeUserRepo is an in-memory UserRepository. The mutex gives the same
// atomicity guarantee for RecordLoginFailure that the SQL statement gives in
// production.
type FakeUserRepo struct {
	fakeBase
	mu    sync.Mutex
	users map[uuid.UUID]*models.User

	historyRepo *FakePasswordHistoryRepo
}

// NewFakeUserRepo creates a user fake. The password history fake is wired in
// so UpdatePassword mirrors the production transaction.
func NewFakeUserRepo(historyRepo *FakePasswordHistoryRepo) *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[uuid.UUID]*models.User),
		historyRepo: historyRepo,
	}
}

func copyUser(u *models.User) *models.User {
	cp := *u
	return &cp
}

func (r *FakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.DeletedAt == nil && strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrEmailExists
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *FakeUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok || existing.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *FakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	now := time.Now()
	user.DeletedAt = &now
	return nil
}

func (r *FakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return nil, repository.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (r *FakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.DeletedAt == nil && strings.EqualFold(user.Email, email) {
			return copyUser(user), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *FakeUserRepo) List(ctx context.Context, filter repository.UserFilter) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []models.User
	for _, user := range r.users {
		if user.DeletedAt != nil {
			continue
		}
		if filter.Search != nil {
			term := strings.ToLower(*filter.Search)
			if !strings.Contains(strings.ToLower(user.Email), term) &&
				!strings.Contains(strings.ToLower(user.Name), term) {
				continue
			}
		}
		if filter.ApprovalStatus != nil && user.ApprovalStatus != *filter.ApprovalStatus {
			continue
		}
		if filter.Active != nil && user.Active != *filter.Active {
			continue
		}
		users = append(users, *copyUser(user))
	}

	sort.Slice(users, func(i, j int) bool {
		if filter.OrderDesc {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	if filter.Offset != nil && *filter.Offset < len(users) {
		users = users[*filter.Offset:]
	}
	if filter.Limit != nil && *filter.Limit < len(users) {
		users = users[:*filter.Limit]
	}
	return users, nil
}

func (r *FakeUserRepo) RecordLoginFailure(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return nil, repository.ErrUserNotFound
	}

	if user.FailedLoginAttempts+1 >= threshold {
		user.FailedLoginAttempts = 0
		lock := lockUntil
		user.AccountLockedUntil = &lock
	} else {
		user.FailedLoginAttempts++
	}
	user.UpdatedAt = time.Now()

	if user.AccountLockedUntil == nil {
		return nil, nil
	}
	lock := *user.AccountLockedUntil
	return &lock, nil
}

func (r *FakeUserRepo) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	user.FailedLoginAttempts = 0
	user.AccountLockedUntil = nil
	user.LastLoginAt = &at
	user.LastLoginIP = &ip
	user.UpdatedAt = time.Now()
	return nil
}

func (r *FakeUserRepo) ClearLock(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	user.FailedLoginAttempts = 0
	user.AccountLockedUntil = nil
	user.UpdatedAt = time.Now()
	return nil
}

func (r *FakeUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string, expiresAt *time.Time, historyLimit int) error {
	r.mu.Lock()
	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		r.mu.Unlock()
		return repository.ErrUserNotFound
	}
	now := time.Now()
	user.Password = hashedPassword
	user.PasswordChangedAt = &now
	user.PasswordExpiresAt = expiresAt
	user.UpdatedAt = now
	r.mu.Unlock()

	if r.historyRepo != nil {
		if err := r.historyRepo.Add(ctx, id, hashedPassword); err != nil {
			return err
		}
		if historyLimit > 0 {
			return r.historyRepo.Prune(ctx, id, historyLimit)
		}
	}
	return nil
}

func (r *FakeUserRepo) UpdateSessionID(ctx context.Context, id uuid.UUID, sessionID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	user.CurrentSessionID = sessionID
	user.UpdatedAt = time.Now()
	return nil
}

func (r *FakeUserRepo) SetApprovalStatus(ctx context.Context, id uuid.UUID, status models.ApprovalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	user.ApprovalStatus = status
	user.UpdatedAt = time.Now()
	return nil
}

func (r *FakeUserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	user.Active = active
	user.UpdatedAt = time.Now()
	return nil
}

func (r *FakeUserRepo) DeactivateInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, user := range r.users {
		if user.DeletedAt != nil || !user.Active {
			continue
		}
		if user.LastLoginAt != nil && user.LastLoginAt.Before(cutoff) {
			user.Active = false
			user.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (r *FakeUserRepo) CountLocked(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, user := range r.users {
		if user.DeletedAt == nil && user.IsLocked(now) {
			count++
		}
	}
	return count, nil
}

func (r *FakeUserRepo) CountPendingApproval(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, user := range r.users {
		if user.DeletedAt == nil && user.ApprovalStatus == models.ApprovalPending {
			count++
		}
	}
	return count, nil
}

// FakeRoleRepo is an in-memory RoleRepository.
type FakeRoleRepo struct {
	fakeBase
	mu        sync.Mutex
	roles     map[uuid.UUID]*models.Role
	userRoles map[uuid.UUID]map[uuid.UUID]struct{} // userID -> roleIDs
	rolePerms map[uuid.UUID]map[uuid.UUID]struct{} // roleID -> permissionIDs

	permRepo *FakePermissionRepo
}

// NewFakeRoleRepo creates a role fake. The permission fake is needed to
// materialize role permission lists.
func NewFakeRoleRepo(permRepo *FakePermissionRepo) *FakeRoleRepo {
	return &FakeRoleRepo{
		roles:     make(map[uuid.UUID]*models.Role),
		userRoles: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		rolePerms: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		permRepo:  permRepo,
	}
}

func copyRole(role *models.Role) *models.Role {
	cp := *role
	return &cp
}

func (r *FakeRoleRepo) Create(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.roles {
		if existing.DeletedAt == nil && existing.Slug == role.Slug {
			return repository.ErrRoleExists
		}
	}
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now
	r.roles[role.ID] = copyRole(role)
	return nil
}

func (r *FakeRoleRepo) Update(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.roles[role.ID]
	if !ok || existing.DeletedAt != nil {
		return repository.ErrRoleNotFound
	}
	existing.Name = role.Name
	existing.UpdatedAt = time.Now()
	return nil
}

func (r *FakeRoleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[id]
	if !ok || role.DeletedAt != nil {
		return repository.ErrRoleNotFound
	}
	if role.IsProtected {
		return repository.ErrProtectedRole
	}
	for _, roleIDs := range r.userRoles {
		if _, held := roleIDs[id]; held {
			return repository.ErrRoleInUse
		}
	}
	now := time.Now()
	role.DeletedAt = &now
	return nil
}

func (r *FakeRoleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[id]
	if !ok || role.DeletedAt != nil {
		return nil, repository.ErrRoleNotFound
	}
	return copyRole(role), nil
}

func (r *FakeRoleRepo) GetBySlug(ctx context.Context, slug string) (*models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, role := range r.roles {
		if role.DeletedAt == nil && role.Slug == slug {
			return copyRole(role), nil
		}
	}
	return nil, repository.ErrRoleNotFound
}

func (r *FakeRoleRepo) List(ctx context.Context, filter repository.RoleFilter) ([]models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var roles []models.Role
	for _, role := range r.roles {
		if role.DeletedAt != nil {
			continue
		}
		if filter.Search != nil {
			term := strings.ToLower(*filter.Search)
			if !strings.Contains(strings.ToLower(role.Slug), term) &&
				!strings.Contains(strings.ToLower(role.Name), term) {
				continue
			}
		}
		if filter.Protected != nil && role.IsProtected != *filter.Protected {
			continue
		}
		roles = append(roles, *copyRole(role))
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Slug < roles[j].Slug })
	return roles, nil
}

func (r *FakeRoleRepo) GetRolesForUser(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var roles []models.Role
	for roleID := range r.userRoles[userID] {
		if role, ok := r.roles[roleID]; ok && role.DeletedAt == nil {
			roles = append(roles, *copyRole(role))
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Slug < roles[j].Slug })
	return roles, nil
}

func (r *FakeRoleRepo) GrantToUser(ctx context.Context, roleID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[roleID]
	if !ok || role.DeletedAt != nil {
		return repository.ErrRoleNotFound
	}
	if r.userRoles[userID] == nil {
		r.userRoles[userID] = make(map[uuid.UUID]struct{})
	}
	r.userRoles[userID][roleID] = struct{}{}
	return nil
}

func (r *FakeRoleRepo) RevokeFromUser(ctx context.Context, roleID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.userRoles[userID], roleID)
	return nil
}

func (r *FakeRoleRepo) GetPermissions(ctx context.Context, roleID uuid.UUID) ([]models.Permission, error) {
	r.mu.Lock()
	permIDs := make([]uuid.UUID, 0, len(r.rolePerms[roleID]))
	for id := range r.rolePerms[roleID] {
		permIDs = append(permIDs, id)
	}
	r.mu.Unlock()

	var perms []models.Permission
	for _, id := range permIDs {
		if p, err := r.permRepo.GetByID(ctx, id); err == nil {
			perms = append(perms, *p)
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Slug < perms[j].Slug })
	return perms, nil
}

func (r *FakeRoleRepo) AddPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[roleID]
	if !ok || role.DeletedAt != nil {
		return repository.ErrRoleNotFound
	}
	if r.rolePerms[roleID] == nil {
		r.rolePerms[roleID] = make(map[uuid.UUID]struct{})
	}
	r.rolePerms[roleID][permissionID] = struct{}{}
	return nil
}

func (r *FakeRoleRepo) RemovePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rolePerms[roleID], permissionID)
	return nil
}

func (r *FakeRoleRepo) ListUserIDsWithRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var userIDs []uuid.UUID
	for userID, roleIDs := range r.userRoles {
		if _, held := roleIDs[roleID]; held {
			userIDs = append(userIDs, userID)
		}
	}
	return userIDs, nil
}

// FakePermissionRepo is an in-memory PermissionRepository.
type FakePermissionRepo struct {
	fakeBase
	mu          sync.Mutex
	permissions map[uuid.UUID]*models.Permission
	userPerms   map[uuid.UUID]map[uuid.UUID]struct{} // userID -> permissionIDs
}

// NewFakePermissionRepo creates a permission fake.
func NewFakePermissionRepo() *FakePermissionRepo {
	return &FakePermissionRepo{
		permissions: make(map[uuid.UUID]*models.Permission),
		userPerms:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func copyPermission(p *models.Permission) *models.Permission {
	cp := *p
	return &cp
}

func (r *FakePermissionRepo) Create(ctx context.Context, permission *models.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.permissions {
		if existing.DeletedAt == nil && existing.Slug == permission.Slug {
			return repository.ErrPermissionExists
		}
	}
	if permission.ID == uuid.Nil {
		permission.ID = uuid.New()
	}
	now := time.Now()
	permission.CreatedAt = now
	permission.UpdatedAt = now
	r.permissions[permission.ID] = copyPermission(permission)
	return nil
}

func (r *FakePermissionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.permissions[id]
	if !ok || p.DeletedAt != nil {
		return repository.ErrPermissionNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (r *FakePermissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.permissions[id]
	if !ok || p.DeletedAt != nil {
		return nil, repository.ErrPermissionNotFound
	}
	return copyPermission(p), nil
}

func (r *FakePermissionRepo) GetBySlug(ctx context.Context, slug string) (*models.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.permissions {
		if p.DeletedAt == nil && p.Slug == slug {
			return copyPermission(p), nil
		}
	}
	return nil, repository.ErrPermissionNotFound
}

func (r *FakePermissionRepo) List(ctx context.Context) ([]models.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var perms []models.Permission
	for _, p := range r.permissions {
		if p.DeletedAt == nil {
			perms = append(perms, *copyPermission(p))
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Slug < perms[j].Slug })
	return perms, nil
}

func (r *FakePermissionRepo) GetDirectForUser(ctx context.Context, userID uuid.UUID) ([]models.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var perms []models.Permission
	for permID := range r.userPerms[userID] {
		if p, ok := r.permissions[permID]; ok && p.DeletedAt == nil {
			perms = append(perms, *copyPermission(p))
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Slug < perms[j].Slug })
	return perms, nil
}

func (r *FakePermissionRepo) GrantToUser(ctx context.Context, permissionID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.permissions[permissionID]
	if !ok || p.DeletedAt != nil {
		return repository.ErrPermissionNotFound
	}
	if r.userPerms[userID] == nil {
		r.userPerms[userID] = make(map[uuid.UUID]struct{})
	}
	r.userPerms[userID][permissionID] = struct{}{}
	return nil
}

func (r *FakePermissionRepo) RevokeFromUser(ctx context.Context, permissionID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.userPerms[userID], permissionID)
	return nil
}

// FakeLoginAttemptRepo is an in-memory LoginAttemptRepository.
type FakeLoginAttemptRepo struct {
	fakeBase
	mu       sync.Mutex
	attempts []models.LoginAttempt
}

// NewFakeLoginAttemptRepo creates a login attempt fake.
func NewFakeLoginAttemptRepo() *FakeLoginAttemptRepo {
	return &FakeLoginAttemptRepo{}
}

func (r *FakeLoginAttemptRepo) Create(ctx context.Context, attempt *models.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	r.attempts = append(r.attempts, *attempt)
	return nil
}

// Attempts returns a copy of everything recorded so far.
func (r *FakeLoginAttemptRepo) Attempts() []models.LoginAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.LoginAttempt(nil), r.attempts...)
}

func (r *FakeLoginAttemptRepo) CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.attempts {
		if !a.Success && strings.EqualFold(a.Email, email) && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *FakeLoginAttemptRepo) CountFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.attempts {
		if !a.Success && a.IPAddress == ip && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *FakeLoginAttemptRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.attempts {
		if !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *FakeLoginAttemptRepo) CountFailuresSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.attempts {
		if !a.Success && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *FakeLoginAttemptRepo) CountDistinctFailedIPs(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ips := make(map[string]struct{})
	for _, a := range r.attempts {
		if !a.Success && !a.CreatedAt.Before(since) {
			ips[a.IPAddress] = struct{}{}
		}
	}
	return len(ips), nil
}

func (r *FakeLoginAttemptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.attempts[:0]
	var removed int64
	for _, a := range r.attempts {
		if a.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	r.attempts = kept
	return removed, nil
}

// FakePasswordHistoryRepo is an in-memory PasswordHistoryRepository.
type FakePasswordHistoryRepo struct {
	fakeBase
	mu      sync.Mutex
	entries map[uuid.UUID][]models.PasswordHistory
}

// NewFakePasswordHistoryRepo creates a password history fake.
func NewFakePasswordHistoryRepo() *FakePasswordHistoryRepo {
	return &FakePasswordHistoryRepo{entries: make(map[uuid.UUID][]models.PasswordHistory)}
}

func (r *FakePasswordHistoryRepo) Add(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[userID] = append(r.entries[userID], models.PasswordHistory{
		ID:           uuid.New(),
		UserID:       userID,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	})
	return nil
}

func (r *FakePasswordHistoryRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]models.PasswordHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := append([]models.PasswordHistory(nil), r.entries[userID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *FakePasswordHistoryRepo) Prune(ctx context.Context, userID uuid.UUID, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.entries[userID]
	if len(entries) <= keep {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	r.entries[userID] = entries[:keep]
	return nil
}

// FakeAuditLogRepo is an in-memory AuditLogRepository.
type FakeAuditLogRepo struct {
	fakeBase
	mu   sync.Mutex
	logs []models.AuditLog

	// FailNext makes the next Create return this error, then clears it.
	// Used to verify that audit failures never propagate to callers.
	FailNext error
}

// NewFakeAuditLogRepo creates an audit log fake.
func NewFakeAuditLogRepo() *FakeAuditLogRepo {
	return &FakeAuditLogRepo{}
}

func (r *FakeAuditLogRepo) Create(ctx context.Context, req *models.CreateAuditLogRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailNext != nil {
		err := r.FailNext
		r.FailNext = nil
		return err
	}

	severity := req.Severity
	if severity == "" {
		severity = models.SeverityInfo
	}
	r.logs = append(r.logs, models.AuditLog{
		ID:              uuid.New(),
		ActorID:         req.ActorID,
		EventType:       req.EventType,
		Category:        req.Category,
		Severity:        severity,
		Description:     req.Description,
		SubjectType:     req.SubjectType,
		SubjectID:       req.SubjectID,
		OldValues:       req.OldValues,
		NewValues:       req.NewValues,
		Metadata:        req.Metadata,
		IPAddress:       req.IPAddress,
		UserAgent:       req.UserAgent,
		IsSecurityAlert: req.IsSecurityAlert,
		CreatedAt:       time.Now(),
	})
	return nil
}

// Logs returns a copy of everything recorded so far.
func (r *FakeAuditLogRepo) Logs() []models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AuditLog(nil), r.logs...)
}

func (r *FakeAuditLogRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.logs {
		if r.logs[i].ID == id {
			cp := r.logs[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *FakeAuditLogRepo) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matchAny := func(val string, set []string) bool {
		if len(set) == 0 {
			return true
		}
		for _, s := range set {
			if s == val {
				return true
			}
		}
		return false
	}

	var out []models.AuditLog
	for _, log := range r.logs {
		if filter.ActorID != nil && (log.ActorID == nil || *log.ActorID != *filter.ActorID) {
			continue
		}
		if !matchAny(log.EventType, filter.EventTypes) {
			continue
		}
		if !matchAny(string(log.Category), filter.Categories) {
			continue
		}
		if !matchAny(string(log.Severity), filter.Severities) {
			continue
		}
		if filter.SecurityAlertsOnly && !log.IsSecurityAlert {
			continue
		}
		if filter.IPAddress != nil && log.IPAddress != *filter.IPAddress {
			continue
		}
		if filter.CreatedBefore != nil && !log.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		if filter.CreatedAfter != nil && !log.CreatedAt.After(*filter.CreatedAfter) {
			continue
		}
		if filter.SearchTerm != nil {
			term := strings.ToLower(*filter.SearchTerm)
			if !strings.Contains(strings.ToLower(log.Description), term) &&
				!strings.Contains(strings.ToLower(log.Metadata), term) {
				continue
			}
		}
		out = append(out, log)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset != nil && *filter.Offset < len(out) {
		out = out[*filter.Offset:]
	}
	if filter.Limit != nil && *filter.Limit < len(out) {
		out = out[:*filter.Limit]
	}
	return out, nil
}

func (r *FakeAuditLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time, categories []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inCategories := func(cat models.AuditCategory) bool {
		if len(categories) == 0 {
			return true
		}
		for _, c := range categories {
			if c == string(cat) {
				return true
			}
		}
		return false
	}

	kept := r.logs[:0]
	var removed int64
	for _, log := range r.logs {
		if log.CreatedAt.Before(cutoff) && inCategories(log.Category) {
			removed++
			continue
		}
		kept = append(kept, log)
	}
	r.logs = kept
	return removed, nil
}

// FakeSecurityAlertRepo is an in-memory SecurityAlertRepository.
type FakeSecurityAlertRepo struct {
	fakeBase
	mu     sync.Mutex
	alerts []*models.SecurityAlert
}

// NewFakeSecurityAlertRepo creates a security alert fake.
func NewFakeSecurityAlertRepo() *FakeSecurityAlertRepo {
	return &FakeSecurityAlertRepo{}
}

func (r *FakeSecurityAlertRepo) Create(ctx context.Context, alert *models.SecurityAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert.ID = uuid.New()
	if alert.Severity == "" {
		alert.Severity = models.SeverityWarning
	}
	alert.CreatedAt = time.Now()
	cp := *alert
	r.alerts = append(r.alerts, &cp)
	return nil
}

func (r *FakeSecurityAlertRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.alerts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrAlertNotFound
}

func (r *FakeSecurityAlertRepo) List(ctx context.Context, filter repository.AlertFilter) ([]models.SecurityAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.SecurityAlert
	for _, a := range r.alerts {
		if filter.OnlyUnresolved && a.Resolved {
			continue
		}
		if len(filter.AlertTypes) > 0 {
			found := false
			for _, t := range filter.AlertTypes {
				if t == a.AlertType {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, *a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset != nil && *filter.Offset < len(out) {
		out = out[*filter.Offset:]
	}
	if filter.Limit != nil && *filter.Limit < len(out) {
		out = out[:*filter.Limit]
	}
	return out, nil
}

func (r *FakeSecurityAlertRepo) Resolve(ctx context.Context, id uuid.UUID, resolvedBy uuid.UUID, notes string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.alerts {
		if a.ID != id {
			continue
		}
		if a.Resolved {
			return nil
		}
		a.Resolved = true
		a.ResolvedBy = &resolvedBy
		a.ResolutionNotes = &notes
		resolvedAt := at
		a.ResolvedAt = &resolvedAt
		return nil
	}
	return repository.ErrAlertNotFound
}

func (r *FakeSecurityAlertRepo) HasRecentOpen(ctx context.Context, alertType, identifier string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.alerts {
		if !a.Resolved && a.AlertType == alertType && a.Identifier == identifier && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *FakeSecurityAlertRepo) CountOpen(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.alerts {
		if !a.Resolved {
			count++
		}
	}
	return count, nil
}

func (r *FakeSecurityAlertRepo) CountResolvedSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.alerts {
		if a.Resolved && a.ResolvedAt != nil && !a.ResolvedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *FakeSecurityAlertRepo) DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.alerts[:0]
	var removed int64
	for _, a := range r.alerts {
		if a.Resolved && a.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	r.alerts = kept
	return removed, nil
}
