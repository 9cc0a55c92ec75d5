package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/observability"
	"github.com/movian/movian-api/internal/repository"
)

const userListNamespace = "admin.users"

// UserListCache holds serialized admin listing pages grouped by namespace.
type UserListCache interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	InvalidateNamespace(ctx context.Context, namespace string) error
}

type NoopUserListCache struct{}

func (NoopUserListCache) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopUserListCache) Set(context.Context, string, string, []byte, time.Duration) error {
	return nil
}

func (NoopUserListCache) InvalidateNamespace(context.Context, string) error { return nil }

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

type MemoryUserListCache struct {
	mu    sync.RWMutex
	store map[string]map[string]cacheEntry
	now   func() time.Time
}

func NewMemoryUserListCache() *MemoryUserListCache {
	return &MemoryUserListCache{store: make(map[string]map[string]cacheEntry), now: time.Now}
}

func (c *MemoryUserListCache) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.store[namespace][key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if ns, ok := c.store[namespace]; ok {
			delete(ns, key)
			if len(ns) == 0 {
				delete(c.store, namespace)
			}
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), entry.payload...), true, nil
}

func (c *MemoryUserListCache) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ns, ok := c.store[namespace]
	if !ok {
		ns = make(map[string]cacheEntry)
		c.store[namespace] = ns
	}
	ns[key] = cacheEntry{payload: append([]byte(nil), value...), expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryUserListCache) InvalidateNamespace(_ context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, namespace)
	return nil
}

// CachedUserRepository serves admin listing pages from a cache and drops the
// whole listing namespace on every write. Cache failures fall through to the
// wrapped repository.
type CachedUserRepository struct {
	repository.UserRepository
	cache UserListCache
	ttl   time.Duration
	// gen counts local writes. A page read that overlapped one is not stored.
	gen atomic.Uint64
}

func NewCachedUserRepository(next repository.UserRepository, cache UserListCache, ttl time.Duration) *CachedUserRepository {
	if cache == nil {
		cache = NoopUserListCache{}
	}
	return &CachedUserRepository{UserRepository: next, cache: cache, ttl: ttl}
}

func (r *CachedUserRepository) ListPaged(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	req = req.Normalized()
	key := fmt.Sprintf("page=%d:size=%d", req.Page, req.PageSize)
	raw, ok, err := r.cache.Get(ctx, userListNamespace, key)
	switch {
	case err != nil:
		observability.RecordAdminListCacheEvent(ctx, "error")
	case ok:
		var page repository.PageResult[domain.User]
		if err := json.Unmarshal(raw, &page); err == nil {
			observability.RecordAdminListCacheEvent(ctx, "hit")
			return page, nil
		}
		observability.RecordAdminListCacheEvent(ctx, "corrupt")
	default:
		observability.RecordAdminListCacheEvent(ctx, "miss")
	}

	gen := r.gen.Load()
	page, err := r.UserRepository.ListPaged(ctx, req)
	if err != nil {
		return page, err
	}
	// Writes made by other instances can still race this store; the page then
	// lives at most one ttl.
	if r.gen.Load() != gen {
		observability.RecordAdminListCacheEvent(ctx, "skip_stale")
		return page, nil
	}
	// Password hashes are tagged json:"-" and never reach the cache.
	if raw, err := json.Marshal(page); err == nil {
		if err := r.cache.Set(ctx, userListNamespace, key, raw, r.ttl); err != nil {
			observability.RecordAdminListCacheEvent(ctx, "error")
		}
	}
	return page, nil
}

func (r *CachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.UserRepository.Create(ctx, user); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedUserRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := r.UserRepository.Update(ctx, id, fields); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedUserRepository) invalidate(ctx context.Context) {
	r.gen.Add(1)
	if err := r.cache.InvalidateNamespace(ctx, userListNamespace); err != nil {
		observability.RecordAdminListCacheEvent(ctx, "invalidate_error")
	}
}
