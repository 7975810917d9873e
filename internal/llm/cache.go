package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ResponseCache stores raw completions keyed by a digest of the request.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// AcceptFunc reports whether a completion may be stored. Rejected replies
// are still returned to the caller.
type AcceptFunc func(opts CompletionOptions, reply string) bool

// CachingCompleter answers repeated identical requests from a ResponseCache.
// Cache errors are logged and never fail a completion.
type CachingCompleter struct {
	next   Completer
	cache  ResponseCache
	ttl    time.Duration
	accept AcceptFunc
}

// NewCachingCompleter stores every non-empty reply when accept is nil.
func NewCachingCompleter(next Completer, cache ResponseCache, ttl time.Duration, accept AcceptFunc) *CachingCompleter {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachingCompleter{next: next, cache: cache, ttl: ttl, accept: accept}
}

func (c *CachingCompleter) ModelName() string { return ModelName(c.next) }

func (c *CachingCompleter) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	key := CacheKey(ModelName(c.next), prompt, opts)
	if v, ok, err := c.cache.Get(ctx, key); err != nil {
		zap.L().Warn("llm cache_get_failed", zap.Error(err))
	} else if ok {
		cacheHit(ctx)
		return v, nil
	}
	out, err := c.next.Complete(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	if out != "" && (c.accept == nil || c.accept(opts, out)) {
		if err := c.cache.Set(ctx, key, out, c.ttl); err != nil {
			zap.L().Warn("llm cache_set_failed", zap.Error(err))
		}
	}
	return out, nil
}

type cacheHitKey struct{}

// WithCacheHitHook returns a context whose completions call fn each time a
// CachingCompleter answers from its cache instead of the model.
func WithCacheHitHook(ctx context.Context, fn func()) context.Context {
	return context.WithValue(ctx, cacheHitKey{}, fn)
}

func cacheHit(ctx context.Context) {
	if fn, ok := ctx.Value(cacheHitKey{}).(func()); ok && fn != nil {
		fn()
	}
}

// CacheKey is stable across processes for the same model, prompt and options.
func CacheKey(model, prompt string, opts CompletionOptions) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%.3f|%d|%t|", model, opts.Temperature, opts.MaxOutputTokens, opts.JSONMode)
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// RedisCache is a ResponseCache on a Redis server.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "redis: parse url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "redis: ping")
	}
	if prefix == "" {
		prefix = "legalbrief:llm:"
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "redis: get")
	}
	return v, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return eris.Wrap(err, "redis: set")
	}
	return nil
}

func (r *RedisCache) Close() error { return r.client.Close() }
