package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seatwise/internal/config"
	"github.com/iliyamo/seatwise/internal/log"
)

// takeToken adds whole refill intervals since the last refill, capped at
// capacity, then takes one token if there is one.  The bucket is a hash
// {tokens, refilled_at} that expires after ttl_ms of inactivity.
//
// KEYS[1] bucket  ARGV: now_ms, capacity, refill, interval_ms, ttl_ms
// Returns {taken (0|1), tokens left, ms until next refill when not taken}.
var takeToken = redis.NewScript(`
local now, cap, refill, every, ttl =
	tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local b = redis.call('HMGET', KEYS[1], 'tokens', 'refilled_at')
local tokens, at = tonumber(b[1]) or cap, tonumber(b[2]) or now

local steps = math.floor(math.max(0, now - at) / every)
if steps > 0 then
	tokens = math.min(cap, tokens + steps * refill)
	at = at + steps * every
end

local taken, wait = 0, 0
if tokens >= 1 then
	taken, tokens = 1, tokens - 1
else
	wait = math.max(0, at + every - now)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'refilled_at', at)
redis.call('PEXPIRE', KEYS[1], ttl)
return {taken, tokens, wait}
`)

// bucketResult is the outcome of one takeToken call.
type bucketResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// parseBucketResult decodes the script reply.
func parseBucketResult(v interface{}) (bucketResult, error) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 3 {
		return bucketResult{}, fmt.Errorf("unexpected reply %#v", v)
	}
	var n [3]int64
	for i, x := range arr {
		switch t := x.(type) {
		case int64:
			n[i] = t
		case string:
			p, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return bucketResult{}, fmt.Errorf("reply field %d: %w", i, err)
			}
			n[i] = p
		default:
			return bucketResult{}, fmt.Errorf("reply field %d has type %T", i, x)
		}
	}
	return bucketResult{
		Allowed:    n[0] == 1,
		Remaining:  n[1],
		RetryAfter: time.Duration(n[2]) * time.Millisecond,
	}, nil
}

// retryAfterSeconds rounds up so clients never retry too early.
func (r bucketResult) retryAfterSeconds() int64 {
	return int64((r.RetryAfter + time.Second - 1) / time.Second)
}

func (r bucketResult) writeHeaders(h http.Header, capacity int) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(capacity))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(r.Remaining, 10))
	if !r.Allowed {
		h.Set("Retry-After", strconv.FormatInt(r.retryAfterSeconds(), 10))
	}
}

type tokenBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	now func() time.Time
}

func (b tokenBucket) take(ctx context.Context, key string) (bucketResult, error) {
	reply, err := takeToken.Run(ctx, b.rdb, []string{key},
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		b.cfg.TTL.Milliseconds(),
	).Result()
	if err != nil {
		return bucketResult{}, err
	}
	return parseBucketResult(reply)
}

// NewTokenBucket limits requests per key with a Redis token bucket.  When
// Redis cannot answer the request goes through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return tokenBucket{cfg: cfg, rdb: rdb, now: time.Now}.middleware()
}

func (b tokenBucket) middleware() echo.MiddlewareFunc {
	cfg := b.cfg

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			logger := log.FromContext(c.Request().Context()).WithField("key", key)

			res, err := b.take(c.Request().Context(), key)
			if err != nil {
				logger.WithError(err).Warn("Rate limiter unavailable")
				return next(c)
			}
			res.writeHeaders(c.Response().Header(), cfg.Capacity)
			if cfg.Debug {
				c.Response().Header().Set("X-RateLimit-Key", key)
			}
			if !res.Allowed {
				logger.WithField("retry_after", res.RetryAfter).Debug("Rate limited")
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			}
			return next(c)
		}
	}
}

// buildRateKey joins the prefix with the parts selected by the strategy.
// Without authentication the client address is the only caller identity.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "route":
		parts = append(parts, "route", route)
	default: // "ip_route"
		parts = append(parts, "ip", ip, "route", route)
	}
	return strings.Join(parts, ":")
}
