package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory KV implementation. It honors TTLs lazily on
// read and keeps sorted-set semantics consistent with the Redis client.
type Memory struct {
	mu      sync.RWMutex
	scalars map[string]memScalar
	hashes  map[string]map[string]string
	zsets   map[string]map[string]float64
	lists   map[string][]string
	expiry  map[string]time.Time // key-level TTL for hashes/zsets/lists
	now     func() time.Time
}

type memScalar struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

var _ KV = (*Memory)(nil)

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		scalars: make(map[string]memScalar),
		hashes:  make(map[string]map[string]string),
		zsets:   make(map[string]map[string]float64),
		lists:   make(map[string][]string),
		expiry:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock replaces the time source, letting tests advance past TTLs.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) expired(key string) bool {
	if exp, ok := m.expiry[key]; ok && !exp.IsZero() && m.now().After(exp) {
		delete(m.hashes, key)
		delete(m.zsets, key)
		delete(m.lists, key)
		delete(m.expiry, key)
		return true
	}
	return false
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scalars[key]
	if !ok {
		return "", false, nil
	}
	if !s.expiresAt.IsZero() && m.now().After(s.expiresAt) {
		delete(m.scalars, key)
		return "", false, nil
	}
	return s.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memScalar{value: value}
	if ttl > 0 {
		s.expiresAt = m.now().Add(ttl)
	}
	m.scalars[key] = s
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scalars, key)
	delete(m.hashes, key)
	delete(m.zsets, key)
	delete(m.lists, key)
	delete(m.expiry, key)
	return nil
}

func (m *Memory) HGet(_ context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return "", false, nil
	}
	v, ok := m.hashes[key][field]
	return v, ok, nil
}

func (m *Memory) HSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired(key)
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string)
	}
	m.hashes[key][field] = value
	return nil
}

func (m *Memory) HSetAll(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired(key)
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string, len(fields))
	}
	for f, v := range fields {
		m.hashes[key][f] = v
	}
	return nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *Memory) ZIncrBy(_ context.Context, key, member string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired(key)
	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] += delta
	return m.zsets[key][member], nil
}

func (m *Memory) ZAdd(_ context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired(key)
	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] = score
	return nil
}

func (m *Memory) ZRangeByScoreAsc(_ context.Context, key string, max float64, limit int) ([]ZEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return nil, nil
	}
	var entries []ZEntry
	for member, score := range m.zsets[key] {
		if score <= max {
			entries = append(entries, ZEntry{Member: member, Score: score})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score < entries[j].Score
		}
		return entries[i].Member < entries[j].Member
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *Memory) ZTopN(_ context.Context, key string, n int) ([]ZEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return nil, nil
	}
	var entries []ZEntry
	for member, score := range m.zsets[key] {
		entries = append(entries, ZEntry{Member: member, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Member < entries[j].Member
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (m *Memory) RPush(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired(key)
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

func (m *Memory) LPop(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return "", false, nil
	}
	l := m.lists[key]
	if len(l) == 0 {
		return "", false, nil
	}
	v := l[0]
	m.lists[key] = l[1:]
	return v, true, nil
}

func (m *Memory) LLen(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return 0, nil
	}
	return int64(len(m.lists[key])), nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.scalars[key]; ok {
		s.expiresAt = m.now().Add(ttl)
		m.scalars[key] = s
		return nil
	}
	m.expiry[key] = m.now().Add(ttl)
	return nil
}
