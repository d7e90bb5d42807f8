package httpcache

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
)

// BodyHandle is an opaque reference to a stored response body, owned by a
// ResourceFactory. It is valid for the entry's entire lifetime; concurrent
// observers may hold references to a replaced entry, so releasing a handle
// only frees the underlying bytes once every holder has released it.
type BodyHandle interface {
	// Reader opens a fresh, independent stream over the stored bytes.
	Reader() (io.ReadCloser, error)
	// Retain increments the handle's reference count. Called whenever a
	// CacheEntry referencing this handle is cloned.
	Retain()
	// Release decrements the handle's reference count, freeing the
	// underlying resource once it reaches zero.
	Release()
}

// ResourceFactory allocates and reclaims body storage for CacheEntry
// values. The core never inspects body bytes directly; it only ever moves
// a BodyHandle around. Storage backends provide their own ResourceFactory
// (e.g. store/blobcache persists to an object store; store/compresscache
// wraps another factory to compress on write).
type ResourceFactory interface {
	// Store copies body fully into a newly allocated BodyHandle. Returns
	// AllocationRejected-wrapped error if the factory refuses (e.g. over a
	// size limit).
	Store(ctx context.Context, body io.Reader) (BodyHandle, error)
}

// memoryBodyHandle is the default, in-process ResourceFactory
// implementation: a reference-counted byte slice.
type memoryBodyHandle struct {
	data []byte
	refs *int32
}

func (h *memoryBodyHandle) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(h.data)), nil
}

func (h *memoryBodyHandle) Retain() {
	atomic.AddInt32(h.refs, 1)
}

func (h *memoryBodyHandle) Release() {
	if atomic.AddInt32(h.refs, -1) <= 0 {
		h.data = nil
	}
}

// MemoryResourceFactory stores bodies as plain in-process byte slices. It is
// the default used by [NewMemoryCacheStore] and is suitable for tests and
// small deployments; production backends should prefer a ResourceFactory
// backed by the store subpackages (disk, blob storage, etc).
type MemoryResourceFactory struct {
	// MaxObjectSize bounds the number of bytes accepted per body. Zero means
	// unbounded (the CacheConfig-level limit is expected to gate this
	// earlier in the pipeline; this is a hard backstop).
	MaxObjectSize int64
}

func (f *MemoryResourceFactory) Store(ctx context.Context, body io.Reader) (BodyHandle, error) {
	var r io.Reader = body
	if f.MaxObjectSize > 0 {
		r = io.LimitReader(body, f.MaxObjectSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if f.MaxObjectSize > 0 && int64(len(data)) > f.MaxObjectSize {
		return nil, &AllocationRejectedError{Size: int64(len(data)), Limit: f.MaxObjectSize}
	}
	refs := int32(1)
	return &memoryBodyHandle{data: data, refs: &refs}, nil
}
