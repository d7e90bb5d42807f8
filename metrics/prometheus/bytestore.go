package prometheus

import (
	"context"
	"time"

	"github.com/arjunvale/httpcache"
	"github.com/arjunvale/httpcache/metrics"
)

// Metric result constants.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultSuccess = "success"
	resultError   = "error"
)

// InstrumentedByteStore wraps an httpcache.ByteStore with Prometheus metrics.
type InstrumentedByteStore struct {
	underlying httpcache.ByteStore
	collector  metrics.Collector
	backend    string // backend name: "memory", "redis", "leveldb", etc.
}

// NewInstrumentedByteStore creates a new instrumented ByteStore that records
// metrics for all cache operations.
//
// Parameters:
//   - store: the underlying ByteStore implementation to wrap
//   - backend: the name of the cache backend (e.g., "disk", "redis", "leveldb")
//   - collector: the metrics collector (if nil, uses metrics.DefaultCollector)
func NewInstrumentedByteStore(store httpcache.ByteStore, backend string, collector metrics.Collector) *InstrumentedByteStore {
	if collector == nil {
		collector = metrics.DefaultCollector
	}
	return &InstrumentedByteStore{underlying: store, collector: collector, backend: backend}
}

// Get retrieves a value from the store with metrics recording.
func (c *InstrumentedByteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.underlying.Get(ctx, key)
	duration := time.Since(start)

	result := resultMiss
	if err != nil {
		result = resultError
	} else if ok {
		result = resultHit
	}
	c.collector.RecordCacheOperation("get", c.backend, result, duration)

	return value, ok, err
}

// Set stores a value with metrics recording.
func (c *InstrumentedByteStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := c.underlying.Set(ctx, key, value)
	duration := time.Since(start)

	result := resultSuccess
	if err != nil {
		result = resultError
	}
	c.collector.RecordCacheOperation("set", c.backend, result, duration)

	return err
}

// Delete removes a value with metrics recording.
func (c *InstrumentedByteStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := c.underlying.Delete(ctx, key)
	duration := time.Since(start)

	result := resultSuccess
	if err != nil {
		result = resultError
	}
	c.collector.RecordCacheOperation("delete", c.backend, result, duration)

	return err
}

var _ httpcache.ByteStore = (*InstrumentedByteStore)(nil)
