package httpcache

import (
	"bytes"
	"context"
	"encoding/gob"
	"net/http"
	"sync"
	"time"
)

// Backend is the collaborator that performs the actual HTTP exchange this
// cache decorates. Any http.RoundTripper satisfies it via RoundTripBackend.
type Backend interface {
	Execute(req *http.Request) (*http.Response, error)
}

// RoundTripBackend adapts an http.RoundTripper to Backend.
type RoundTripBackend struct {
	Transport http.RoundTripper
}

func (b RoundTripBackend) Execute(req *http.Request) (*http.Response, error) {
	rt := b.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	return rt.RoundTrip(req)
}

// CacheStore is the storage adapter consumed by CacheOrchestrator: lookup,
// insert, update, variant map management, and invalidation. Implementations
// must make update/insert/invalidate atomic with respect to single-key
// lookups (spec.md §5 "Ordering guarantees").
type CacheStore interface {
	GetCacheEntry(ctx context.Context, key string) (*CacheEntry, error)
	GetVariantCacheEntriesWithETags(ctx context.Context, baseKey string) (map[string]*Variant, error)
	CacheAndReturnResponse(ctx context.Context, key string, resp *http.Response, req *http.Request, requestDate, responseDate time.Time) (*http.Response, error)
	UpdateCacheEntry(ctx context.Context, key string, old *CacheEntry, notModified *http.Response, requestDate, responseDate time.Time) (*CacheEntry, error)
	UpdateVariantCacheEntry(ctx context.Context, baseKey string, old *CacheEntry, notModified *http.Response, requestDate, responseDate time.Time, variantCacheKey string) (*CacheEntry, error)
	ReuseVariantEntryFor(ctx context.Context, baseKey string, variant *Variant) error
	FlushCacheEntriesFor(ctx context.Context, key string) error
	FlushInvalidatedCacheEntriesFor(ctx context.Context, key string) error
}

// ByteStore is the minimal byte-oriented substrate a CacheStore persists
// serialized entries onto. Storage backends (store/diskcache, store/redis,
// store/memcache, ...) implement this; MemoryCacheStore wraps one.
type ByteStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// persistedEntry is the gob-serializable projection of a CacheEntry: the
// BodyHandle is excluded (it is reconstituted through the ResourceFactory
// and stored separately under a body key) and http.Header is flattened to
// a plain map, since gob cannot encode it directly.
type persistedEntry struct {
	RequestDate      time.Time
	ResponseDate     time.Time
	StatusCode       int
	StatusReason     string
	ProtoMajor       int
	ProtoMinor       int
	Header           map[string][]string
	VariantMap       map[string]string
	RequestMethod    string
	SelectingHeaders map[string]string
	BodyKey          string
}

func encodeEntry(e *CacheEntry, bodyKey string) ([]byte, error) {
	p := persistedEntry{
		RequestDate:      e.RequestDate,
		ResponseDate:     e.ResponseDate,
		StatusCode:       e.StatusCode,
		StatusReason:     e.StatusReason,
		ProtoMajor:       e.ProtoMajor,
		ProtoMinor:       e.ProtoMinor,
		Header:           map[string][]string(e.Header),
		VariantMap:       e.VariantMap,
		RequestMethod:    e.RequestMethod,
		SelectingHeaders: e.SelectingHeaders,
		BodyKey:          bodyKey,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*CacheEntry, string, error) {
	var p persistedEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, "", err
	}
	e := &CacheEntry{
		RequestDate:      p.RequestDate,
		ResponseDate:     p.ResponseDate,
		StatusCode:       p.StatusCode,
		StatusReason:     p.StatusReason,
		ProtoMajor:       p.ProtoMajor,
		ProtoMinor:       p.ProtoMinor,
		Header:           http.Header(p.Header),
		VariantMap:       p.VariantMap,
		RequestMethod:    p.RequestMethod,
		SelectingHeaders: p.SelectingHeaders,
	}
	return e, p.BodyKey, nil
}

// MemoryCacheStore is the default CacheStore: a gob-encoded projection of
// each CacheEntry kept on a ByteStore (an in-process map by default), with
// bodies allocated through a ResourceFactory and retained alongside the
// entry for fast in-process reads. Production deployments substitute a
// ByteStore backed by store/diskcache, store/redis, store/memcache, etc.
type MemoryCacheStore struct {
	mu      sync.RWMutex
	bytes   ByteStore
	factory ResourceFactory
	bodies  map[string]BodyHandle
	seq     uint64
}

// NewMemoryCacheStore builds a CacheStore over bytes (an in-process map if
// nil) and factory (a MemoryResourceFactory if nil).
func NewMemoryCacheStore(bytes ByteStore, factory ResourceFactory) *MemoryCacheStore {
	if bytes == nil {
		bytes = newInMemoryByteStore()
	}
	if factory == nil {
		factory = &MemoryResourceFactory{}
	}
	return &MemoryCacheStore{bytes: bytes, factory: factory, bodies: map[string]BodyHandle{}}
}

func (s *MemoryCacheStore) GetCacheEntry(ctx context.Context, key string) (*CacheEntry, error) {
	data, ok, err := s.bytes.Get(ctx, key)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	if !ok {
		return nil, nil
	}
	entry, bodyKey, err := decodeEntry(data)
	if err != nil {
		return nil, &StorageError{Op: "decode", Err: err}
	}
	s.mu.RLock()
	handle := s.bodies[bodyKey]
	s.mu.RUnlock()
	entry.BodyHandle = handle
	return entry, nil
}

func (s *MemoryCacheStore) GetVariantCacheEntriesWithETags(ctx context.Context, baseKey string) (map[string]*Variant, error) {
	base, err := s.GetCacheEntry(ctx, baseKey)
	if err != nil || base == nil || len(base.VariantMap) == 0 {
		return nil, err
	}
	out := make(map[string]*Variant, len(base.VariantMap))
	for variantKey, underlyingKey := range base.VariantMap {
		entry, err := s.GetCacheEntry(ctx, underlyingKey)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		etag := entry.Header.Get(headerETag)
		out[etag] = &Variant{VariantKey: variantKey, CacheKey: underlyingKey, Entry: entry}
	}
	return out, nil
}

// CacheAndReturnResponse persists resp under key and returns a response
// whose body streams from the newly stored handle, per spec.md §6's
// CacheStore interface.
func (s *MemoryCacheStore) CacheAndReturnResponse(ctx context.Context, key string, resp *http.Response, req *http.Request, requestDate, responseDate time.Time) (*http.Response, error) {
	handle, err := s.factory.Store(ctx, resp.Body)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	bodyKey := s.nextBodyKey()
	s.mu.Lock()
	s.bodies[bodyKey] = handle
	s.mu.Unlock()

	entry := &CacheEntry{
		RequestDate:   requestDate,
		ResponseDate:  responseDate,
		StatusCode:    resp.StatusCode,
		StatusReason:  http.StatusText(resp.StatusCode),
		ProtoMajor:    resp.ProtoMajor,
		ProtoMinor:    resp.ProtoMinor,
		Header:        resp.Header.Clone(),
		RequestMethod: req.Method,
		BodyHandle:    handle,
	}
	if names := varyHeaderNames(resp.Header); len(names) > 0 {
		entry.SelectingHeaders = selectingHeaderValues(req, names)
	}

	data, err := encodeEntry(entry, bodyKey)
	if err != nil {
		return nil, &StorageError{Op: "encode", Err: err}
	}
	if err := s.bytes.Set(ctx, key, data); err != nil {
		return nil, &StorageError{Op: "set", Err: err}
	}

	body, err := handle.Reader()
	if err != nil {
		return nil, err
	}
	out := *resp
	out.Body = body
	return &out, nil
}

func (s *MemoryCacheStore) UpdateCacheEntry(ctx context.Context, key string, old *CacheEntry, notModified *http.Response, requestDate, responseDate time.Time) (*CacheEntry, error) {
	updated := old.Clone()
	updated.RequestDate = requestDate
	updated.ResponseDate = responseDate
	for name, values := range notModified.Header {
		updated.Header.Del(name)
		for _, v := range values {
			updated.Header.Add(name, v)
		}
	}

	s.mu.RLock()
	bodyKey := s.bodyKeyFor(updated.BodyHandle)
	s.mu.RUnlock()

	data, err := encodeEntry(updated, bodyKey)
	if err != nil {
		return nil, &StorageError{Op: "encode", Err: err}
	}
	if err := s.bytes.Set(ctx, key, data); err != nil {
		return nil, &StorageError{Op: "set", Err: err}
	}
	return updated, nil
}

func (s *MemoryCacheStore) UpdateVariantCacheEntry(ctx context.Context, baseKey string, old *CacheEntry, notModified *http.Response, requestDate, responseDate time.Time, variantCacheKey string) (*CacheEntry, error) {
	return s.UpdateCacheEntry(ctx, variantCacheKey, old, notModified, requestDate, responseDate)
}

// ReuseVariantEntryFor records variant in baseKey's variant map, creating the
// base record if it does not exist yet. This store keeps no recency order
// among variants.
func (s *MemoryCacheStore) ReuseVariantEntryFor(ctx context.Context, baseKey string, variant *Variant) error {
	base, err := s.GetCacheEntry(ctx, baseKey)
	if err != nil {
		return err
	}
	if base == nil {
		base = &CacheEntry{VariantMap: map[string]string{}}
	}
	if base.VariantMap == nil {
		base.VariantMap = map[string]string{}
	}
	base.VariantMap[variant.VariantKey] = variant.CacheKey

	s.mu.RLock()
	bodyKey := s.bodyKeyFor(base.BodyHandle)
	s.mu.RUnlock()
	data, err := encodeEntry(base, bodyKey)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	return s.bytes.Set(ctx, baseKey, data)
}

func (s *MemoryCacheStore) FlushCacheEntriesFor(ctx context.Context, key string) error {
	if err := s.bytes.Delete(ctx, key); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}

// FlushInvalidatedCacheEntriesFor is identical to FlushCacheEntriesFor for
// this in-process store; a store with a dedicated tombstone mechanism
// could distinguish "gone" from "known-stale-pending-replication".
func (s *MemoryCacheStore) FlushInvalidatedCacheEntriesFor(ctx context.Context, key string) error {
	return s.FlushCacheEntriesFor(ctx, key)
}

func (s *MemoryCacheStore) bodyKeyFor(handle BodyHandle) string {
	for k, h := range s.bodies {
		if h == handle {
			return k
		}
	}
	return ""
}

func (s *MemoryCacheStore) nextBodyKey() string {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()
	return "body:" + itoa(n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// inMemoryByteStore is the zero-dependency ByteStore MemoryCacheStore falls
// back to when no production substrate is configured.
type inMemoryByteStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func newInMemoryByteStore() *inMemoryByteStore {
	return &inMemoryByteStore{items: map[string][]byte{}}
}

// NewInMemoryByteStore returns the zero-dependency, process-local ByteStore
// used when NewMemoryCacheStore is given a nil bytes argument. Exported for
// callers that want the in-memory substrate standalone, e.g. in tests or as
// the innermost layer of a decorator chain (store/compresscache, security.go).
func NewInMemoryByteStore() ByteStore {
	return newInMemoryByteStore()
}

func (b *inMemoryByteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.items[key]
	return v, ok, nil
}

func (b *inMemoryByteStore) Set(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[key] = value
	return nil
}

func (b *inMemoryByteStore) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.items, key)
	return nil
}
