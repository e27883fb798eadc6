package cache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	cacheaside "github.com/eugener/cacheaside/internal"
)

// errNoFields mirrors the Redis arity error for HSET without field pairs.
var errNoFields = errors.New("hset: at least one field is required")

type kind uint8

const (
	kindString kind = iota
	kindHash
	kindZSet
)

// entry is a single key of any type. expiresAt is zero for keys without expiry.
type entry struct {
	kind      kind
	str       string
	hash      map[string]string
	zset      map[string]float64
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process Store with an otter-backed keyspace. Expired keys
// are dropped lazily on access and in bulk by Sweep. A single mutex
// serializes commands so each call is atomic, like a Redis command.
//
// Strings and hashes count against the size bound and may be evicted.
// Sorted sets live outside it so leaderboards are never evicted.
type Memory struct {
	mu       sync.Mutex
	keys     *otter.Cache[string, *entry]
	zsets    map[string]*entry
	expiring map[string]struct{} // keys carrying an expiry, for Sweep
	now      func() time.Time
}

// NewMemory creates an in-memory store holding at most maxSize keys.
func NewMemory(maxSize int) (*Memory, error) {
	c, err := otter.New[string, *entry](&otter.Options[string, *entry]{
		MaximumSize: maxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory store: %w", err)
	}
	return &Memory{
		keys:     c,
		zsets:    make(map[string]*entry),
		expiring: make(map[string]struct{}),
		now:      time.Now,
	}, nil
}

func wrongType(key string) error {
	return fmt.Errorf("key %q: %w", key, cacheaside.ErrWrongType)
}

// lookup returns the live entry for key, evicting it if it has expired.
// Caller holds m.mu.
func (m *Memory) lookup(key string, now time.Time) *entry {
	e, ok := m.get(key)
	if !ok {
		return nil
	}
	if e.expired(now) {
		m.remove(key)
		return nil
	}
	return e
}

// get returns the entry for key ignoring expiry. Caller holds m.mu.
func (m *Memory) get(key string) (*entry, bool) {
	if e, ok := m.zsets[key]; ok {
		return e, true
	}
	return m.keys.GetIfPresent(key)
}

// put stores e under key, replacing any entry of another type.
// Caller holds m.mu.
func (m *Memory) put(key string, e *entry) {
	if e.kind == kindZSet {
		m.keys.Invalidate(key)
		m.zsets[key] = e
		return
	}
	delete(m.zsets, key)
	m.keys.Set(key, e)
}

func (m *Memory) remove(key string) {
	m.keys.Invalidate(key)
	delete(m.zsets, key)
	delete(m.expiring, key)
}

func (m *Memory) setExpiry(key string, e *entry, at time.Time) {
	e.expiresAt = at
	if at.IsZero() {
		delete(m.expiring, key)
		return
	}
	m.expiring[key] = struct{}{}
}

// Get returns the string at key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.lookup(key, m.now())
	if e == nil {
		return "", false, nil
	}
	if e.kind != kindString {
		return "", false, wrongType(key)
	}
	return e.str, true, nil
}

// Set stores a string, replacing any previous value and expiry.
func (m *Memory) Set(_ context.Context, key, val string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{kind: kindString, str: val}
	m.put(key, e)
	var at time.Time
	if ttl > 0 {
		at = m.now().Add(ttl)
	}
	m.setExpiry(key, e, at)
	return nil
}

// Delete removes key regardless of its type.
func (m *Memory) Delete(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lookup(key, m.now()) == nil {
		return 0, nil
	}
	m.remove(key)
	return 1, nil
}

// HSet merges fields into the hash at key.
func (m *Memory) HSet(_ context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return errNoFields
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.lookup(key, m.now())
	if e == nil {
		e = &entry{kind: kindHash, hash: make(map[string]string, len(fields))}
		m.put(key, e)
	} else if e.kind != kindHash {
		return wrongType(key)
	}
	for f, v := range fields {
		e.hash[f] = v
	}
	return nil
}

// HGetAll returns a copy of the hash at key.
func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.lookup(key, m.now())
	if e == nil {
		return map[string]string{}, nil
	}
	if e.kind != kindHash {
		return nil, wrongType(key)
	}
	out := make(map[string]string, len(e.hash))
	for f, v := range e.hash {
		out[f] = v
	}
	return out, nil
}

// Expire sets the expiry of an existing key. A non-positive ttl deletes
// the key, as in Redis.
func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := m.lookup(key, now)
	if e == nil {
		return false, nil
	}
	if ttl <= 0 {
		m.remove(key)
		return true, nil
	}
	m.setExpiry(key, e, now.Add(ttl))
	return true, nil
}

// TTL returns the remaining time to live of key.
func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := m.lookup(key, now)
	switch {
	case e == nil:
		return TTLMissing, nil
	case e.expiresAt.IsZero():
		return TTLNoExpiry, nil
	default:
		return e.expiresAt.Sub(now), nil
	}
}

// ZIncrBy adds delta to member's score.
func (m *Memory) ZIncrBy(_ context.Context, key, member string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.zincr(key, member, delta)
}

func (m *Memory) zincr(key, member string, delta float64) (float64, error) {
	e := m.lookup(key, m.now())
	if e != nil && e.kind != kindZSet {
		return 0, wrongType(key)
	}
	var score float64
	if e != nil {
		score = e.zset[member]
	}
	score += delta
	if math.IsInf(score, 0) || math.IsNaN(score) {
		return 0, fmt.Errorf("zincrby %q: %w", key, ErrScoreOverflow)
	}
	if e == nil {
		e = &entry{kind: kindZSet, zset: make(map[string]float64)}
		m.put(key, e)
	}
	e.zset[member] = score
	return score, nil
}

// ZRevRank returns member's zero-based rank by descending score.
func (m *Memory) ZRevRank(_ context.Context, key, member string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.zrevrank(key, member)
}

// zrevrank counts members ordered ahead of member: higher score first, and
// for equal scores the lexicographically greater member first, which is the
// Redis ZREVRANK order.
func (m *Memory) zrevrank(key, member string) (int64, bool, error) {
	e := m.lookup(key, m.now())
	if e == nil {
		return 0, false, nil
	}
	if e.kind != kindZSet {
		return 0, false, wrongType(key)
	}
	score, ok := e.zset[member]
	if !ok {
		return 0, false, nil
	}
	var rank int64
	for other, s := range e.zset {
		if s > score || (s == score && other > member) {
			rank++
		}
	}
	return rank, true, nil
}

// ZIncrByRank increments member and reads its rank under one lock.
func (m *Memory) ZIncrByRank(_ context.Context, key, member string, delta float64) (float64, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	score, err := m.zincr(key, member, delta)
	if err != nil {
		return 0, 0, false, err
	}
	rank, ok, err := m.zrevrank(key, member)
	return score, rank, ok, err
}

// ZRevRangeWithScores returns a slice of the sorted set by descending score.
func (m *Memory) ZRevRangeWithScores(_ context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.lookup(key, m.now())
	if e == nil {
		return []ScoredMember{}, nil
	}
	if e.kind != kindZSet {
		return nil, wrongType(key)
	}

	all := make([]ScoredMember, 0, len(e.zset))
	for member, score := range e.zset {
		all = append(all, ScoredMember{Member: member, Score: score})
	}
	slices.SortFunc(all, func(a, b ScoredMember) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(b.Member, a.Member)
	})

	n := int64(len(all))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	start = max(start, 0)
	stop = min(stop, n-1)
	if start > stop || start >= n {
		return []ScoredMember{}, nil
	}
	return all[start : stop+1], nil
}

// Sweep removes every expired key and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key := range m.expiring {
		e, ok := m.get(key)
		if !ok {
			delete(m.expiring, key) // evicted by size
			continue
		}
		if e.expired(now) {
			m.remove(key)
			removed++
		}
	}
	return removed
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close drops every key.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys.InvalidateAll()
	clear(m.zsets)
	clear(m.expiring)
	return nil
}
