package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryStore is an in-process Store. Values are JSON encoded so behaviour
// matches the Redis store.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]memoryItem
	prefix string
	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// NewMemoryStore starts a janitor that drops expired keys every minute.
func NewMemoryStore(prefix string) *MemoryStore {
	s := &MemoryStore{
		items:  make(map[string]memoryItem),
		prefix: prefix,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go s.janitor(time.Minute)
	return s
}

func (s *MemoryStore) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for k, it := range s.items {
				if it.expired(now) {
					delete(s.items, k)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) lookup(key string) (memoryItem, bool) {
	it, ok := s.items[s.prefix+key]
	if !ok {
		return memoryItem{}, false
	}
	if it.expired(s.now()) {
		delete(s.items, s.prefix+key)
		return memoryItem{}, false
	}
	return it, true
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *MemoryStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	it, ok := s.lookup(key)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(it.value, dest); err != nil {
		return false, fmt.Errorf("decode cached value %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	s.mu.Lock()
	s.items[s.prefix+key] = memoryItem{value: raw, expiresAt: s.expiry(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.items, s.prefix+k)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	it, ok := s.lookup(key)
	if ok {
		if err := json.Unmarshal(it.value, &n); err != nil {
			return 0, fmt.Errorf("value at %s is not a counter", key)
		}
	} else {
		it.expiresAt = s.expiry(ttl)
	}
	n++
	it.value, _ = json.Marshal(n)
	s.items[s.prefix+key] = it
	return n, nil
}

func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	now := s.now()
	for full, it := range s.items {
		if it.expired(now) || len(full) < len(s.prefix) {
			continue
		}
		k := full[len(s.prefix):]
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stopCh) })
	return nil
}
