// Package authz resolves effective permissions for users, backed by a
// per-user cache that is invalidated when grants change.
package authz

import (
	"sync"

	"github.com/google/uuid"
)

// Entry is a resolved snapshot of a user's roles and effective permissions.
// Roles holds slugs, RoleNames holds display names; both are accepted by
// HasRole.
type Entry struct {
	Permissions map[string]struct{}
	Roles       map[string]struct{}
	RoleNames   map[string]struct{}
	IsAdmin     bool
}

// HasPermission reports whether the snapshot contains the permission slug.
func (e *Entry) HasPermission(slug string) bool {
	_, ok := e.Permissions[slug]
	return ok
}

// HasRole reports whether the snapshot contains the role, matched by slug or
// by display name.
func (e *Entry) HasRole(role string) bool {
	if _, ok := e.Roles[role]; ok {
		return true
	}
	_, ok := e.RoleNames[role]
	return ok
}

// Cache stores resolved permission snapshots keyed by user ID.
type Cache interface {
	Get(userID uuid.UUID) (*Entry, bool)
	Set(userID uuid.UUID, entry *Entry)
	Invalidate(userID uuid.UUID)
	InvalidateAll()
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
}

// NewMemoryCache creates an in-process cache safe for concurrent use.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[uuid.UUID]*Entry)}
}

func (c *memoryCache) Get(userID uuid.UUID) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[userID]
	return entry, ok
}

func (c *memoryCache) Set(userID uuid.UUID, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = entry
}

func (c *memoryCache) Invalidate(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *memoryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uuid.UUID]*Entry)
}
