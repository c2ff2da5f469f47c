package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestLock_OwnerID_Unique(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if lock1.OwnerID() == "" {
		t.Fatal("expected non-empty owner ID")
	}
	if lock1.OwnerID() == lock2.OwnerID() {
		t.Errorf("expected unique owner IDs, got same: %s", lock1.OwnerID())
	}
}

func TestLock_AcquireExclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	writer := NewLock(client)
	other := NewLock(client)

	acquired, err := writer.Acquire(ctx, "corpus-writer", 10*time.Second)
	if err != nil || !acquired {
		t.Fatalf("expected to acquire, got %v, %v", acquired, err)
	}

	acquired, err = other.Acquire(ctx, "corpus-writer", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected second owner to be refused")
	}

	holder, err := other.Holder(ctx, "corpus-writer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if holder != writer.OwnerID() {
		t.Errorf("expected holder %s, got %s", writer.OwnerID(), holder)
	}

	// Different names do not interfere
	acquired, _ = other.Acquire(ctx, "another", 10*time.Second)
	if !acquired {
		t.Error("expected independent lock names")
	}
}

func TestLock_ReleaseOnlyByOwner(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	writer := NewLock(client)
	other := NewLock(client)

	if _, err := writer.Acquire(ctx, "corpus-writer", 10*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := other.Release(ctx, "corpus-writer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists(lockPrefix + "corpus-writer") {
		t.Fatal("expected foreign release to leave the lock in place")
	}

	if err := writer.Release(ctx, "corpus-writer"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(lockPrefix + "corpus-writer") {
		t.Error("expected lock to be released")
	}

	holder, _ := writer.Holder(ctx, "corpus-writer")
	if holder != "" {
		t.Errorf("expected free lock, got holder %s", holder)
	}

	// Releasing again is harmless
	if err := writer.Release(ctx, "corpus-writer"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestLock_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	crashed := NewLock(client)
	next := NewLock(client)

	if _, err := crashed.Acquire(ctx, "corpus-writer", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	mr.FastForward(2 * time.Second)

	acquired, err := next.Acquire(ctx, "corpus-writer", time.Second)
	if err != nil || !acquired {
		t.Errorf("expected lock to be free after TTL, got %v, %v", acquired, err)
	}
}

func TestLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	writer := NewLock(client)
	other := NewLock(client)

	if err := writer.Extend(ctx, "corpus-writer", time.Minute); err == nil {
		t.Error("expected error extending an unheld lock")
	}

	if _, err := writer.Acquire(ctx, "corpus-writer", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := other.Extend(ctx, "corpus-writer", time.Minute); err == nil {
		t.Error("expected error extending a foreign lock")
	}
	if err := writer.Extend(ctx, "corpus-writer", time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}

	ttl := mr.TTL(lockPrefix + "corpus-writer")
	if ttl < 50*time.Second {
		t.Errorf("expected TTL near one minute, got %v", ttl)
	}
}

func TestLock_Ping(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewLock(client)

	if err := lock.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	mr.Close()
	if err := lock.Ping(context.Background()); err == nil {
		t.Error("expected error after server shutdown")
	}
}
