package auth

import (
	"context"
	"time"

	"github.com/hms/hms/internal/platform/cache"
)

// RevocationStore tracks JTIs revoked before their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// CacheRevocationStore keeps revoked JTIs in the shared cache until the
// token would have expired anyway.
type CacheRevocationStore struct {
	store cache.Store
	now   func() time.Time
}

func NewCacheRevocationStore(store cache.Store) *CacheRevocationStore {
	return &CacheRevocationStore{store: store, now: time.Now}
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}

func (s *CacheRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.store.Set(ctx, revokedKey(jti), true, ttl)
}

func (s *CacheRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	found, err := s.store.Get(ctx, revokedKey(jti), &revoked)
	if err != nil {
		return false, err
	}
	return found && revoked, nil
}
