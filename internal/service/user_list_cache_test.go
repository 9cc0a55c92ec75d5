package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/repository"
)

type countingUserRepo struct {
	repository.UserRepository
	lists int
	users []domain.User
	// duringList runs after the page is read, before it is returned.
	duringList func()
}

func (r *countingUserRepo) ListPaged(_ context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	r.lists++
	page := repository.PageResult[domain.User]{Items: append([]domain.User(nil), r.users...), Page: req.Page, PageSize: req.PageSize, Total: int64(len(r.users)), TotalPages: 1}
	if hook := r.duringList; hook != nil {
		r.duringList = nil
		hook()
	}
	return page, nil
}

func (r *countingUserRepo) Update(_ context.Context, id string, fields map[string]any) error {
	for i := range r.users {
		if r.users[i].ID == id {
			if banned, ok := fields[repository.UserFieldIsBanned].(bool); ok {
				r.users[i].IsBanned = banned
			}
		}
	}
	return nil
}

func (r *countingUserRepo) Create(_ context.Context, u *domain.User) error {
	r.users = append(r.users, *u)
	return nil
}

func exerciseListCache(t *testing.T, cache UserListCache) {
	t.Helper()
	ctx := context.Background()
	inner := &countingUserRepo{users: []domain.User{{ID: "u1", Username: "alice", PasswordHash: "secret"}}}
	repo := NewCachedUserRepository(inner, cache, time.Minute)
	req := repository.PageRequest{Page: 1, PageSize: 20}

	first, err := repo.ListPaged(ctx, req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := repo.ListPaged(ctx, req)
	if err != nil {
		t.Fatalf("list again: %v", err)
	}
	if inner.lists != 1 {
		t.Fatalf("expected second page read from cache, repo hit %d times", inner.lists)
	}
	if second.Total != first.Total || second.Items[0].Username != "alice" {
		t.Fatalf("cached page differs: %+v", second)
	}
	if second.Items[0].PasswordHash != "" {
		t.Fatal("password hash must not be cached")
	}

	if err := repo.Update(ctx, "u1", map[string]any{repository.UserFieldIsBanned: true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	third, _ := repo.ListPaged(ctx, req)
	if inner.lists != 2 || !third.Items[0].IsBanned {
		t.Fatalf("expected fresh read after update, lists=%d page=%+v", inner.lists, third)
	}

	if err := repo.Create(ctx, &domain.User{ID: "u2", Username: "bob"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	fourth, _ := repo.ListPaged(ctx, req)
	if inner.lists != 3 || fourth.Total != 2 {
		t.Fatalf("expected fresh read after create, lists=%d total=%d", inner.lists, fourth.Total)
	}
}

func TestCachedUserRepositoryWithMemoryCache(t *testing.T) {
	exerciseListCache(t, NewMemoryUserListCache())
}

func TestCachedUserRepositoryWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	exerciseListCache(t, NewRedisUserListCache(client, "test_list"))
}

func TestCachedUserRepositoryFallsThroughOnCacheOutage(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	inner := &countingUserRepo{users: []domain.User{{ID: "u1"}}}
	repo := NewCachedUserRepository(inner, NewRedisUserListCache(client, ""), time.Minute)

	page, err := repo.ListPaged(context.Background(), repository.PageRequest{Page: 1, PageSize: 5})
	if err != nil {
		t.Fatalf("cache outage must not fail the listing: %v", err)
	}
	if page.Total != 1 || inner.lists != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestMemoryUserListCacheExpiry(t *testing.T) {
	cache := NewMemoryUserListCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()
	if err := cache.Set(ctx, "ns", "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "ns", "k"); !ok {
		t.Fatal("expected hit")
	}
	now = now.Add(time.Second)
	if _, ok, _ := cache.Get(ctx, "ns", "k"); ok {
		t.Fatal("expected expiry")
	}
	if err := cache.Set(ctx, "ns", "k", []byte("v"), 0); err != nil {
		t.Fatalf("zero ttl set: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "ns", "k"); ok {
		t.Fatal("zero ttl must not store")
	}
}

func TestCachedUserRepositoryDropsPageReadAcrossWrite(t *testing.T) {
	ctx := context.Background()
	inner := &countingUserRepo{users: []domain.User{{ID: "u1", Username: "alice"}}}
	repo := NewCachedUserRepository(inner, NewMemoryUserListCache(), time.Minute)
	req := repository.PageRequest{Page: 1, PageSize: 20}

	inner.duringList = func() {
		if err := repo.Update(ctx, "u1", map[string]any{repository.UserFieldIsBanned: true}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	stale, err := repo.ListPaged(ctx, req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if stale.Items[0].IsBanned {
		t.Fatal("first read was taken before the update")
	}

	fresh, err := repo.ListPaged(ctx, req)
	if err != nil {
		t.Fatalf("list again: %v", err)
	}
	if inner.lists != 2 || !fresh.Items[0].IsBanned {
		t.Fatalf("page read across a write must not be cached, lists=%d page=%+v", inner.lists, fresh)
	}
}
