package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/dnscache"

	cacheaside "github.com/eugener/cacheaside/internal"
)

// Redis is a Store backed by a Redis server.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at url (redis://host:port/db).
// A non-nil resolver routes connection dials through a DNS cache.
func NewRedis(url string, resolver *dnscache.Resolver) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if resolver != nil {
		opts.Dialer = cachedDialer(resolver, opts.TLSConfig)
	}
	return NewRedisFromClient(redis.NewClient(opts)), nil
}

// NewRedisFromClient wraps an existing client. The Store owns the client
// and closes it on Close.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// cachedDialer resolves the host through resolver and dials the first address.
// A custom dialer replaces the client's TLS handshake, so it is redone here
// for rediss:// URLs.
func cachedDialer(resolver *dnscache.Resolver, tlsConfig *tls.Config) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("resolve %s: no addresses", host)
		}
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		if err != nil || tlsConfig == nil {
			return conn, err
		}
		return tls.Client(conn, tlsConfig), nil
	}
}

// classify maps client errors onto domain sentinels: connectivity failures
// become ErrStoreUnavailable and WRONGTYPE replies become ErrWrongType.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rerr redis.Error
	if errors.As(err, &rerr) && strings.Contains(rerr.Error(), "WRONGTYPE") {
		return fmt.Errorf("redis %s: %w: %w", op, cacheaside.ErrWrongType, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, io.EOF) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("redis %s: %w: %w", op, cacheaside.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}

// Get returns the string at key.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("get", err)
	}
	return val, true, nil
}

// Set stores a string with an optional expiry.
func (r *Redis) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	// go-redis reads a negative expiration as KEEPTTL.
	ttl = max(ttl, 0)
	return classify("set", r.client.Set(ctx, key, val, ttl).Err())
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Del(ctx, key).Result()
	return n, classify("del", err)
}

// HSet merges fields into the hash at key. Fields are sent in sorted order.
func (r *Redis) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return errNoFields
	}
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	slices.Sort(names)
	args := make([]string, 0, 2*len(names))
	for _, f := range names {
		args = append(args, f, fields[f])
	}
	return classify("hset", r.client.HSet(ctx, key, args).Err())
}

// HGetAll returns every field of the hash at key.
func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, classify("hgetall", err)
	}
	return m, nil
}

// Expire sets the expiry of an existing key.
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.Expire(ctx, key, ttl).Result()
	return ok, classify("expire", err)
}

// TTL returns the remaining time to live. go-redis passes the -1 and -2
// replies through unscaled, which lines up with TTLNoExpiry and TTLMissing.
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, classify("ttl", err)
	}
	return d, nil
}

// ZIncrBy adds delta to member's score.
func (r *Redis) ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error) {
	score, err := r.client.ZIncrBy(ctx, key, delta, member).Result()
	return score, classify("zincrby", err)
}

// ZRevRank returns member's zero-based rank by descending score.
func (r *Redis) ZRevRank(ctx context.Context, key, member string) (int64, bool, error) {
	rank, err := r.client.ZRevRank(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify("zrevrank", err)
	}
	return rank, true, nil
}

// zincrRankScript increments a member and returns {score, rank} in one
// server-side step. The increment is refused when the new score would not be
// a finite number, so an overflowing delta never reaches the set.
var zincrRankScript = redis.NewScript(`
local cur = tonumber(redis.call('ZSCORE', KEYS[1], ARGV[2]) or '0')
local total = cur + tonumber(ARGV[1])
if total ~= total or total > 1.7976931348623157e308 or total < -1.7976931348623157e308 then
  return redis.error_reply('ERR score overflow')
end
local score = redis.call('ZINCRBY', KEYS[1], ARGV[1], ARGV[2])
local rank = redis.call('ZREVRANK', KEYS[1], ARGV[2])
return {score, rank}
`)

// ZIncrByRank runs ZINCRBY and ZREVRANK atomically through a script.
func (r *Redis) ZIncrByRank(ctx context.Context, key, member string, delta float64) (float64, int64, bool, error) {
	arg := strconv.FormatFloat(delta, 'g', -1, 64)
	vals, err := zincrRankScript.Run(ctx, r.client, []string{key}, arg, member).Slice()
	if err != nil {
		if strings.Contains(err.Error(), "score overflow") {
			return 0, 0, false, fmt.Errorf("redis zincrby %q: %w", key, ErrScoreOverflow)
		}
		return 0, 0, false, classify("zincrby/zrevrank", err)
	}
	if len(vals) < 1 {
		return 0, 0, false, fmt.Errorf("redis zincrby %q: empty script reply", key)
	}
	raw, _ := vals[0].(string)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("redis zincrby %q: parse score %q: %w", key, raw, err)
	}
	if len(vals) < 2 {
		return score, 0, false, nil
	}
	pos, ok := vals[1].(int64)
	return score, pos, ok, nil
}

// ZRevRangeWithScores returns members by descending score.
func (r *Redis) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, classify("zrevrange", err)
	}
	out := make([]ScoredMember, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		out[i] = ScoredMember{Member: member, Score: z.Score}
	}
	return out, nil
}

// Ping verifies connectivity to the server.
func (r *Redis) Ping(ctx context.Context) error {
	return classify("ping", r.client.Ping(ctx).Err())
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
