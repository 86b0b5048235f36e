package auth

import (
	"context"
	"testing"
	"time"

	"github.com/hms/hms/internal/platform/cache"
)

func TestCacheRevocationStore(t *testing.T) {
	store := cache.NewMemoryStore("test:")
	defer store.Close()
	revs := NewCacheRevocationStore(store)
	ctx := context.Background()

	revoked, err := revs.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected not revoked, got %v %v", revoked, err)
	}

	if err := revs.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = revs.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}
}

func TestCacheRevocationStore_ExpiredTokenIgnored(t *testing.T) {
	store := cache.NewMemoryStore("test:")
	defer store.Close()
	revs := NewCacheRevocationStore(store)
	ctx := context.Background()

	if err := revs.Revoke(ctx, "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := revs.IsRevoked(ctx, "old"); revoked {
		t.Error("already-expired token need not be tracked")
	}
}
