package httpcache

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// AsyncRevalidator is a bounded worker pool issuing background conditional
// revalidations for stale-while-revalidate hits. Submissions for a key
// already in flight are dropped, implementing the single-flight guarantee
// in spec.md §8 ("at most one background revalidation task exists at a
// time" per key).
type AsyncRevalidator struct {
	tasks chan func()

	mu      sync.Mutex
	inFlight map[string]bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncRevalidator starts workerCount goroutines draining a queue of
// size queueSize. workerCount <= 0 disables the async branch entirely:
// Submit then always reports !accepted and callers fall back to the
// synchronous revalidation path.
func NewAsyncRevalidator(workerCount, queueSize int) *AsyncRevalidator {
	if workerCount <= 0 {
		return nil
	}
	if queueSize <= 0 {
		queueSize = workerCount
	}
	r := &AsyncRevalidator{
		tasks:    make(chan func(), queueSize),
		inFlight: make(map[string]bool),
		done:     make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		go r.worker()
	}
	return r
}

func (r *AsyncRevalidator) worker() {
	for {
		select {
		case fn, ok := <-r.tasks:
			if !ok {
				return
			}
			fn()
		case <-r.done:
			return
		}
	}
}

// Submit enqueues a revalidation for key if none is already in flight.
// Returns false (without enqueuing) if a task for key is already running
// or queued, if the queue is full, or if Close has been called.
func (r *AsyncRevalidator) Submit(key string, fn func()) bool {
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
	}
	r.mu.Lock()
	if r.inFlight[key] {
		r.mu.Unlock()
		return false
	}
	r.inFlight[key] = true
	r.mu.Unlock()

	wrapped := func() {
		defer func() {
			r.mu.Lock()
			delete(r.inFlight, key)
			r.mu.Unlock()
		}()
		fn()
	}

	select {
	case r.tasks <- wrapped:
		return true
	default:
		r.mu.Lock()
		delete(r.inFlight, key)
		r.mu.Unlock()
		return false
	}
}

// Close stops accepting new background work; tasks already running run to
// completion, while queued tasks no worker has picked up yet may be dropped.
func (r *AsyncRevalidator) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() { close(r.done) })
}

// revalidationTask is the unit of work AsyncRevalidator.Submit schedules:
// re-issue a conditional request for key and fold the result back into
// store, independent of the original caller's context (which may have
// already been cancelled by the time this runs).
type revalidationTask struct {
	key        string
	target     *url.URL
	req        *http.Request
	entry      *CacheEntry
	store      CacheStore
	backend    Backend
	validity   *ValidityPolicy
	compliance ResponseCompliance
	timeout    time.Duration
}

func (t *revalidationTask) run() {
	ctx := context.Background()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	conditional := (ConditionalRequestBuilder{}).BuildConditionalRequest(t.req.WithContext(ctx), t.entry)
	requestDate := time.Now()
	resp, err := t.backend.Execute(conditional)
	if err != nil {
		GetLogger().Warn("background revalidation failed", "key", t.key, "error", err)
		return
	}
	responseDate := time.Now()
	defer resp.Body.Close()

	t.compliance.Normalize(resp, responseDate)

	if responseDate.Before(t.entry.ResponseDate) && resp.Header.Get(headerDate) != "" {
		if d, err := http.ParseTime(resp.Header.Get(headerDate)); err == nil && d.Before(entryDate(t.entry)) {
			GetLogger().Warn("clock skew detected during background revalidation, dropping", "key", t.key)
			return
		}
	}

	if resp.StatusCode == http.StatusNotModified {
		if _, err := t.store.UpdateCacheEntry(ctx, t.key, t.entry, resp, requestDate, responseDate); err != nil {
			GetLogger().Warn("failed to persist background revalidation", "key", t.key, "error", err)
		}
		return
	}

	if _, err := t.store.CacheAndReturnResponse(ctx, t.key, resp, t.req, requestDate, responseDate); err != nil {
		GetLogger().Warn("failed to persist background revalidation response", "key", t.key, "error", err)
	}
}
