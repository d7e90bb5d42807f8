package httpcache

import (
	"net/http"
	"time"
)

// CacheConfig holds every tunable named in spec.md §6. Build one with
// NewCacheConfig and ConfigOption values, then pass it to NewCacheOrchestrator.
type CacheConfig struct {
	MaxObjectSizeBytes int64
	SharedCache        bool

	HeuristicCachingEnabled         bool
	HeuristicCoefficient            float64
	HeuristicDefaultLifetimeSeconds int64

	MaxUpdateRetries int

	AsynchronousWorkersMax               int
	AsynchronousWorkersCore              int
	AsynchronousWorkerIdleLifetimeSeconds int64
	RevalidationQueueSize                 int

	CachePseudonym string
	CacheProduct   string

	CacheKeyHeaders []string
	ShouldCache     func(*http.Response) bool

	Backend         Backend
	Store           CacheStore
	ResourceFactory ResourceFactory

	Resilience *ResilienceConfig
}

// ConfigOption configures a CacheConfig. Errors are reserved for options
// that validate external input (e.g. WithEncryptedStore); most options
// never fail.
type ConfigOption func(*CacheConfig) error

// NewCacheConfig builds a CacheConfig with spec.md §6's defaults
// (max_object_size_bytes = 8192, heuristic_coefficient = 0.1) and applies
// opts in order.
func NewCacheConfig(opts ...ConfigOption) (*CacheConfig, error) {
	cfg := &CacheConfig{
		MaxObjectSizeBytes:    8192,
		HeuristicCoefficient:  0.1,
		RevalidationQueueSize: 64,
		CachePseudonym:        defaultCachePseudonym,
		CacheProduct:          defaultCacheProduct,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WithMaxObjectSize bounds the body size a response may have to be stored.
func WithMaxObjectSize(bytes int64) ConfigOption {
	return func(c *CacheConfig) error {
		c.MaxObjectSizeBytes = bytes
		return nil
	}
}

// WithSharedCache enables shared-cache rules: s-maxage honored, private
// responses refused, Authorization requests require public/must-revalidate/
// s-maxage.
func WithSharedCache(shared bool) ConfigOption {
	return func(c *CacheConfig) error {
		c.SharedCache = shared
		return nil
	}
}

// WithHeuristicCaching enables RFC 2616 §13.2.4 heuristic freshness for
// responses without explicit freshness information, using coefficient
// (default 0.1) and defaultLifetime as the fallback when no Last-Modified
// is available to derive one.
func WithHeuristicCaching(coefficient float64, defaultLifetime time.Duration) ConfigOption {
	return func(c *CacheConfig) error {
		c.HeuristicCachingEnabled = true
		if coefficient > 0 {
			c.HeuristicCoefficient = coefficient
		}
		c.HeuristicDefaultLifetimeSeconds = int64(defaultLifetime.Seconds())
		return nil
	}
}

// WithMaxUpdateRetries records n in CacheConfig.MaxUpdateRetries. The
// orchestrator does not read this value: its clock-skew / missing-ETag
// retries in variant negotiation and revalidation always happen at most
// once.
func WithMaxUpdateRetries(n int) ConfigOption {
	return func(c *CacheConfig) error {
		c.MaxUpdateRetries = n
		return nil
	}
}

// WithAsyncWorkers sizes the stale-while-revalidate worker pool. max <= 0
// disables the asynchronous branch entirely (spec.md §6:
// "asynchronous_workers_max ... 0 disables the async branch").
func WithAsyncWorkers(core, max, queueSize int, idleLifetime time.Duration) ConfigOption {
	return func(c *CacheConfig) error {
		c.AsynchronousWorkersCore = core
		c.AsynchronousWorkersMax = max
		c.RevalidationQueueSize = queueSize
		c.AsynchronousWorkerIdleLifetimeSeconds = int64(idleLifetime.Seconds())
		return nil
	}
}

// WithCacheIdentity overrides the pseudonym/product tokens stamped into
// the Via header (spec.md §4.8 step 4).
func WithCacheIdentity(pseudonym, product string) ConfigOption {
	return func(c *CacheConfig) error {
		c.CachePseudonym = pseudonym
		c.CacheProduct = product
		return nil
	}
}

// WithCacheKeyHeaders includes the named request headers' values in the
// derived cache key, in addition to method and URL, so e.g. per-tenant
// Authorization values never collide in the store.
func WithCacheKeyHeaders(headers []string) ConfigOption {
	return func(c *CacheConfig) error {
		c.CacheKeyHeaders = headers
		return nil
	}
}

// WithShouldCache admits responses ResponsePolicy would otherwise refuse
// (e.g. non-heuristically-cacheable statuses) whenever fn returns true. It
// only ever widens cacheability; it cannot force storage of a response
// ResponsePolicy refuses for a hard reason (no-store, private under a
// shared cache, oversized body).
func WithShouldCache(fn func(*http.Response) bool) ConfigOption {
	return func(c *CacheConfig) error {
		c.ShouldCache = fn
		return nil
	}
}

// WithBackend sets the Backend the orchestrator dispatches to on miss.
func WithBackend(b Backend) ConfigOption {
	return func(c *CacheConfig) error {
		c.Backend = b
		return nil
	}
}

// WithRoundTripper is a convenience over WithBackend for the common case
// of decorating a plain http.RoundTripper.
func WithRoundTripper(rt http.RoundTripper) ConfigOption {
	return func(c *CacheConfig) error {
		c.Backend = RoundTripBackend{Transport: rt}
		return nil
	}
}

// WithStore sets the CacheStore. If unset, NewCacheOrchestrator builds a
// MemoryCacheStore.
func WithStore(store CacheStore) ConfigOption {
	return func(c *CacheConfig) error {
		c.Store = store
		return nil
	}
}

// WithResourceFactory sets the ResourceFactory a default MemoryCacheStore
// allocates bodies through. Ignored if WithStore is also supplied.
func WithResourceFactory(f ResourceFactory) ConfigOption {
	return func(c *CacheConfig) error {
		c.ResourceFactory = f
		return nil
	}
}

// WithResilience attaches failsafe-go retry/circuit-breaker policies around
// backend dispatch; see resilience.go.
func WithResilience(cfg *ResilienceConfig) ConfigOption {
	return func(c *CacheConfig) error {
		c.Resilience = cfg
		return nil
	}
}

// WithEncryptedStore wraps store with AES-256-GCM encryption keyed off
// passphrase via scrypt (see security.go), so entries at rest are opaque to
// whatever substrate the ByteStore persists to.
func WithEncryptedStore(store ByteStore, passphrase string) ConfigOption {
	return func(c *CacheConfig) error {
		enc, err := NewEncryptedByteStore(store, passphrase)
		if err != nil {
			return err
		}
		c.Store = NewMemoryCacheStore(enc, c.ResourceFactory)
		return nil
	}
}
