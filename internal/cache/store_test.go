package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	cacheaside "github.com/eugener/cacheaside/internal"
)

// testStoreContract runs behavior shared by every Store implementation.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("strings", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		ctx := context.Background()

		if _, ok, err := s.Get(ctx, "movie:1"); err != nil || ok {
			t.Fatalf("Get missing = ok %v, err %v", ok, err)
		}
		if err := s.Set(ctx, "movie:1", `{"id":"1"}`, time.Minute); err != nil {
			t.Fatal(err)
		}
		val, ok, err := s.Get(ctx, "movie:1")
		if err != nil || !ok {
			t.Fatalf("Get = ok %v, err %v", ok, err)
		}
		if val != `{"id":"1"}` {
			t.Errorf("val = %q", val)
		}

		ttl, err := s.TTL(ctx, "movie:1")
		if err != nil {
			t.Fatal(err)
		}
		if ttl <= 0 || ttl > time.Minute {
			t.Errorf("ttl = %v, want (0, 1m]", ttl)
		}

		if n, err := s.Delete(ctx, "movie:1"); err != nil || n != 1 {
			t.Errorf("first Delete = %d, %v; want 1", n, err)
		}
		if n, err := s.Delete(ctx, "movie:1"); err != nil || n != 0 {
			t.Errorf("second Delete = %d, %v; want 0", n, err)
		}
	})

	t.Run("set without ttl", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		ctx := context.Background()

		if err := s.Set(ctx, "k", "v", 0); err != nil {
			t.Fatal(err)
		}
		ttl, err := s.TTL(ctx, "k")
		if err != nil {
			t.Fatal(err)
		}
		if ttl != TTLNoExpiry {
			t.Errorf("ttl = %v, want TTLNoExpiry", ttl)
		}
	})

	t.Run("missing key ttl and expire", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		ctx := context.Background()

		ttl, err := s.TTL(ctx, "nope")
		if err != nil {
			t.Fatal(err)
		}
		if ttl != TTLMissing {
			t.Errorf("ttl = %v, want TTLMissing", ttl)
		}
		ok, err := s.Expire(ctx, "nope", time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("Expire on missing key should report false")
		}
	})

	t.Run("hash merge", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		ctx := context.Background()

		got, err := s.HGetAll(ctx, "user:1")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Fatalf("HGetAll missing = %v, want empty", got)
		}

		if err := s.HSet(ctx, "user:1", map[string]string{"a": "1"}); err != nil {
			t.Fatal(err)
		}
		if err := s.HSet(ctx, "user:1", map[string]string{"b": "2", "a": "3"}); err != nil {
			t.Fatal(err)
		}
		got, err = s.HGetAll(ctx, "user:1")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got["a"] != "3" || got["b"] != "2" {
			t.Errorf("HGetAll = %v, want a=3 b=2", got)
		}

		if ttl, _ := s.TTL(ctx, "user:1"); ttl != TTLNoExpiry {
			t.Errorf("ttl before expire = %v, want TTLNoExpiry", ttl)
		}
		ok, err := s.Expire(ctx, "user:1", 10*time.Minute)
		if err != nil || !ok {
			t.Fatalf("Expire = %v, %v", ok, err)
		}
		ttl, err := s.TTL(ctx, "user:1")
		if err != nil {
			t.Fatal(err)
		}
		if ttl <= 0 || ttl > 10*time.Minute {
			t.Errorf("ttl = %v, want (0, 10m]", ttl)
		}
	})

	t.Run("hset without fields", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		if err := s.HSet(context.Background(), "user:1", nil); err == nil {
			t.Error("expected error for empty HSet")
		}
	})

	t.Run("sorted set", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		ctx := context.Background()
		const key = "lb:global"

		if score, err := s.ZIncrBy(ctx, key, "user:alice", 10); err != nil || score != 10 {
			t.Fatalf("ZIncrBy alice = %v, %v", score, err)
		}
		if score, err := s.ZIncrBy(ctx, key, "user:bob", 20); err != nil || score != 20 {
			t.Fatalf("ZIncrBy bob = %v, %v", score, err)
		}

		if rank, ok, err := s.ZRevRank(ctx, key, "user:bob"); err != nil || !ok || rank != 0 {
			t.Errorf("bob rank = %d, %v, %v; want 0", rank, ok, err)
		}
		if rank, ok, err := s.ZRevRank(ctx, key, "user:alice"); err != nil || !ok || rank != 1 {
			t.Errorf("alice rank = %d, %v, %v; want 1", rank, ok, err)
		}
		if _, ok, err := s.ZRevRank(ctx, key, "user:nobody"); err != nil || ok {
			t.Errorf("missing member rank ok = %v, err %v", ok, err)
		}

		if score, err := s.ZIncrBy(ctx, key, "user:alice", -4); err != nil || score != 6 {
			t.Errorf("negative delta score = %v, %v; want 6", score, err)
		}

		top, err := s.ZRevRangeWithScores(ctx, key, 0, 99)
		if err != nil {
			t.Fatal(err)
		}
		want := []ScoredMember{{Member: "user:bob", Score: 20}, {Member: "user:alice", Score: 6}}
		if len(top) != len(want) {
			t.Fatalf("range = %v, want %v", top, want)
		}
		for i := range want {
			if top[i] != want[i] {
				t.Errorf("range[%d] = %v, want %v", i, top[i], want[i])
			}
		}

		first, err := s.ZRevRangeWithScores(ctx, key, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(first) != 1 || first[0].Member != "user:bob" {
			t.Errorf("range 0..0 = %v", first)
		}

		empty, err := s.ZRevRangeWithScores(ctx, "lb:empty", 0, 9)
		if err != nil {
			t.Fatal(err)
		}
		if len(empty) != 0 {
			t.Errorf("range on missing key = %v", empty)
		}
	})

	t.Run("atomic increment and rank", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		sr, ok := s.(ScoreRanker)
		if !ok {
			t.Skip("store does not implement ScoreRanker")
		}
		ctx := context.Background()

		if _, _, _, err := sr.ZIncrByRank(ctx, "lb", "user:a", 5); err != nil {
			t.Fatal(err)
		}
		score, rank, ok, err := sr.ZIncrByRank(ctx, "lb", "user:b", 7)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || score != 7 || rank != 0 {
			t.Errorf("b = score %v rank %d ok %v; want 7, 0, true", score, rank, ok)
		}
		score, rank, ok, err = sr.ZIncrByRank(ctx, "lb", "user:a", 3)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || score != 8 || rank != 0 {
			t.Errorf("a = score %v rank %d ok %v; want 8, 0, true", score, rank, ok)
		}
	})

	t.Run("overflowing increment is refused", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		sr, ok := s.(ScoreRanker)
		if !ok {
			t.Skip("store does not implement ScoreRanker")
		}
		ctx := context.Background()

		if _, _, _, err := sr.ZIncrByRank(ctx, "lb", "user:x", 1e308); err != nil {
			t.Fatal(err)
		}
		if _, _, _, err := sr.ZIncrByRank(ctx, "lb", "user:x", 1e308); !errors.Is(err, ErrScoreOverflow) {
			t.Fatalf("err = %v, want ErrScoreOverflow", err)
		}
		if _, _, _, err := sr.ZIncrByRank(ctx, "lb", "user:y", -1e308); err != nil {
			t.Fatal(err)
		}
		if _, _, _, err := sr.ZIncrByRank(ctx, "lb", "user:y", -1e308); !errors.Is(err, ErrScoreOverflow) {
			t.Fatalf("negative err = %v, want ErrScoreOverflow", err)
		}

		got, err := s.ZRevRangeWithScores(ctx, "lb", 0, -1)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].Score != 1e308 || got[1].Score != -1e308 {
			t.Errorf("scores = %v, want unchanged", got)
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		ctx := context.Background()

		if err := s.Set(ctx, "movie:1", "x", 0); err != nil {
			t.Fatal(err)
		}
		if _, err := s.HGetAll(ctx, "movie:1"); !errors.Is(err, cacheaside.ErrWrongType) {
			t.Errorf("HGetAll on string err = %v, want ErrWrongType", err)
		}
		if _, err := s.ZIncrBy(ctx, "movie:1", "m", 1); !errors.Is(err, cacheaside.ErrWrongType) {
			t.Errorf("ZIncrBy on string err = %v, want ErrWrongType", err)
		}
		if err := s.HSet(ctx, "user:1", map[string]string{"a": "1"}); err != nil {
			t.Fatal(err)
		}
		if _, _, err := s.Get(ctx, "user:1"); !errors.Is(err, cacheaside.ErrWrongType) {
			t.Errorf("Get on hash err = %v, want ErrWrongType", err)
		}
		// Delete works on any type.
		if n, err := s.Delete(ctx, "user:1"); err != nil || n != 1 {
			t.Errorf("Delete hash = %d, %v", n, err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		if err := s.Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}
