package keyvalue

import (
	"context"
	"sync"
	"time"
)

// memoryStore is a map-backed Store for tests and local development. TTLs
// are checked lazily on Get.
type memoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryValue
	sets   map[string]map[string]struct{}
}

type memoryValue struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemory returns an empty in-memory Store.
func NewMemory() Store {
	return &memoryStore{
		values: make(map[string]memoryValue),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ErrNoSuchKey
	}
	if !v.expiresAt.IsZero() && time.Now().After(v.expiresAt) {
		return nil, ErrNoSuchKey
	}
	out := make([]byte, len(v.data))
	copy(out, v.data)
	return out, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := memoryValue{data: append([]byte(nil), value...)}
	if ttl > 0 {
		v.expiresAt = time.Now().Add(ttl)
	}
	s.values[key] = v
	return nil
}

func (s *memoryStore) SetAdd(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (s *memoryStore) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }
