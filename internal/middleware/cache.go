package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seatwise/internal/config"
	"github.com/iliyamo/seatwise/internal/log"
)

// captureWriter tees the response body into buf, up to limit bytes.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 {
		cw.buf.Write(b)
	} else if remain := cw.limit - cw.size; remain > 0 {
		cw.buf.Write(b[:min(int64(len(b)), remain)])
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// cachedResponse is what a cache entry holds.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// ResponseCache stores successful responses in Redis, keyed by route.
// A nil client or a disabled config turns it into a pass-through.
//
// Each route has a generation counter.  Entries are written under the
// generation read before the handler ran, and Invalidate bumps it, so a
// response rendered from data older than the last invalidation is never
// served even if it is written after the invalidation.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
}

func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	return &ResponseCache{cfg: cfg, rdb: rdb}
}

func (rc *ResponseCache) enabled() bool {
	return rc != nil && rc.cfg.Enabled && rc.rdb != nil
}

// Key builds the cache key for a request at generation gen.  The route is
// the registered path (c.Path()), not the raw URL, so every request to
// /seats shares one entry unless the strategy includes the query string.
func (rc *ResponseCache) Key(method, route, query, gen string) string {
	var parts []string
	switch strings.ToLower(rc.cfg.KeyStrategy) {
	case "method_route":
		parts = []string{"method", method, "route", route}
	case "method_route_query":
		parts = []string{"method", method, "route", route, "q", query}
	case "route_query":
		parts = []string{"route", route, "q", query}
	default: // "route"
		parts = []string{"route", route}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%x:g%s", rc.cfg.Prefix, sum[:], gen)
}

// GenerationKey names the counter Invalidate bumps for route.
func (rc *ResponseCache) GenerationKey(route string) string {
	sum := sha1.Sum([]byte(route))
	return fmt.Sprintf("%s:gen:%x", rc.cfg.Prefix, sum[:])
}

// generation returns the current generation of route, "0" before the
// first invalidation.
func (rc *ResponseCache) generation(ctx context.Context, route string) (string, error) {
	gen, err := rc.rdb.Get(ctx, rc.GenerationKey(route)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

// Invalidate retires every cached response of each route, whatever its
// query string.  Retired entries are left to expire.
func (rc *ResponseCache) Invalidate(ctx context.Context, routes ...string) error {
	if !rc.enabled() {
		return nil
	}
	for _, r := range routes {
		if err := rc.rdb.Incr(ctx, rc.GenerationKey(r)).Err(); err != nil {
			return fmt.Errorf("invalidate %s: %w", r, err)
		}
	}
	return nil
}

func (rc *ResponseCache) serve(c echo.Context, entry cachedResponse) error {
	h := c.Response().Header()
	for k, vals := range entry.Header {
		if strings.EqualFold(k, echo.HeaderContentLength) {
			continue
		}
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	h.Set("X-Cache", "HIT")
	c.Response().WriteHeader(entry.Status)
	_, err := c.Response().Write(entry.Body)
	return err
}

// Middleware serves cached responses and stores 200 responses on a miss.
// Redis errors are logged and the request falls through to the handler
// without touching the cache.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	maxBody := int64(rc.cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			if !rc.cfg.Methods[strings.ToUpper(r.Method)] {
				return next(c)
			}
			ctx := r.Context()
			logger := log.FromContext(ctx)

			gen, err := rc.generation(ctx, c.Path())
			if err != nil {
				logger.WithError(err).Warn("Response cache read failed")
				return next(c)
			}
			key := rc.Key(r.Method, c.Path(), r.URL.RawQuery, gen)

			bs, err := rc.rdb.Get(ctx, key).Bytes()
			switch {
			case err == nil:
				var entry cachedResponse
				if json.Unmarshal(bs, &entry) == nil && entry.Status != 0 {
					return rc.serve(c, entry)
				}
			case !errors.Is(err, redis.Nil):
				logger.WithError(err).Warn("Response cache read failed")
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			hdr.Del(echo.HeaderXRequestID)
			hdr.Del(HeaderCorrelationID)
			payload, err := json.Marshal(cachedResponse{Status: cw.status, Header: hdr, Body: cw.buf.Bytes()})
			if err != nil {
				return nil
			}
			if err := rc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
				logger.WithError(err).Warn("Response cache write failed")
			}
			return nil
		}
	}
}
