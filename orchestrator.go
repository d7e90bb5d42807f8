package httpcache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"
)

// CacheOrchestrator is the state machine that composes ValidityPolicy,
// RequestPolicy, ResponsePolicy, SuitabilityChecker, ConditionalRequestBuilder,
// ResponseGenerator, RequestCompliance/ResponseCompliance, CacheStore, and
// AsyncRevalidator into the dispatch sequence of spec.md §4.8.
type CacheOrchestrator struct {
	config *CacheConfig

	validity       *ValidityPolicy
	requestPol     RequestPolicy
	responsePol    *ResponsePolicy
	suitability    *SuitabilityChecker
	conditional    ConditionalRequestBuilder
	generator      *ResponseGenerator
	reqCompliance  RequestCompliance
	respCompliance ResponseCompliance

	store   CacheStore
	backend Backend
	async   *AsyncRevalidator

	hits    int64
	misses  int64
	updates int64
}

// errNoBackend is wrapped in a TransportError when Execute needs to dispatch
// but no Backend was configured.
var errNoBackend = errors.New("httpcache: no backend configured")

// NewCacheOrchestrator builds an orchestrator from cfg. A nil cfg.Store
// gets a MemoryCacheStore.
func NewCacheOrchestrator(cfg *CacheConfig) *CacheOrchestrator {
	validity := &ValidityPolicy{
		SharedCache:              cfg.SharedCache,
		HeuristicEnabled:         cfg.HeuristicCachingEnabled,
		HeuristicCoefficient:     cfg.HeuristicCoefficient,
		HeuristicDefaultLifetime: time.Duration(cfg.HeuristicDefaultLifetimeSeconds) * time.Second,
	}

	store := cfg.Store
	if store == nil {
		store = NewMemoryCacheStore(nil, cfg.ResourceFactory)
	}

	backend := cfg.Backend
	if cfg.Resilience != nil && backend != nil {
		backend = ResilientBackend{Backend: backend, Config: cfg.Resilience}
	}

	o := &CacheOrchestrator{
		config:     cfg,
		validity:   validity,
		requestPol: RequestPolicy{},
		responsePol: &ResponsePolicy{
			MaxObjectSize:           cfg.MaxObjectSizeBytes,
			SharedCache:             cfg.SharedCache,
			HeuristicCachingEnabled: cfg.HeuristicCachingEnabled,
			ShouldCache:             cfg.ShouldCache,
		},
		suitability: &SuitabilityChecker{Validity: validity},
		generator:   &ResponseGenerator{Validity: validity},
		store:       store,
		backend:     backend,
	}
	if cfg.AsynchronousWorkersMax > 0 {
		o.async = NewAsyncRevalidator(cfg.AsynchronousWorkersMax, cfg.RevalidationQueueSize)
	}
	return o
}

// Close stops the background revalidation worker pool, if any.
func (o *CacheOrchestrator) Close() {
	o.async.Close()
}

// Stats returns the orchestrator's atomic hit/miss/update counters
// (spec.md §5: "observational only").
func (o *CacheOrchestrator) Stats() (hits, misses, updates int64) {
	return atomic.LoadInt64(&o.hits), atomic.LoadInt64(&o.misses), atomic.LoadInt64(&o.updates)
}

// Execute implements spec.md §4.8: the full dispatch state machine for one
// request. The outcome is tagged onto the request's context (a status box
// is added if req.Context() lacks one, see NewContext) and is readable via
// ResponseStatus on that context, e.g. resp.Request.Context(), after
// Execute returns.
func (o *CacheOrchestrator) Execute(target *url.URL, req *http.Request) (*http.Response, error) {
	ctx, _ := ensureStatusBox(req.Context())
	req = req.WithContext(ctx)
	setResponseStatus(ctx, CacheMiss) // step 1

	if o.reqCompliance.IsSelfDirectedOptions(req) { // step 2
		setResponseStatus(ctx, CacheModuleResponse)
		return o.reqCompliance.SelfDirectedOptionsResponse(req), nil
	}

	if _, resp, fatal := o.reqCompliance.FatalNoncompliance(req); fatal { // step 3
		setResponseStatus(ctx, CacheModuleResponse)
		return resp, nil
	}

	req = o.reqCompliance.Normalize(req) // step 4
	AppendVia(req.Header, o.config.CachePseudonym, o.config.CacheProduct, req.ProtoMajor, req.ProtoMinor, requestProtocolName(req))

	key := deriveCacheKey(req, o.config.CacheKeyHeaders)

	if isUnsafeMethod(req.Method) { // step 5
		resp, reqDate, respDate, err := o.callBackend(req)
		if err == nil {
			invalidateAfterUnsafeMethod(ctx, o.store, req, resp, o.config.CacheKeyHeaders)
		}
		return o.handleBackendResponse(ctx, key, req, resp, reqDate, respDate, err, CacheMiss)
	}

	if !o.requestPol.IsServableFromCache(req) { // step 6
		resp, reqDate, respDate, err := o.callBackend(req)
		return o.handleBackendResponse(ctx, key, req, resp, reqDate, respDate, err, CacheMiss)
	}

	entry, err := o.store.GetCacheEntry(ctx, key) // step 7
	if err != nil {
		GetLogger().Warn("cache store lookup failed, falling back to backend", "key", key, "error", err)
		resp, reqDate, respDate, derr := o.callBackend(req)
		return o.handleBackendResponse(ctx, key, req, resp, reqDate, respDate, derr, CacheMiss)
	}

	now := time.Now()
	onlyIfCached := parseCacheDirectives(req.Header).has(cacheControlOnlyIfCached)

	// An entry with no BodyHandle is a variant-map index record (see
	// handleBackendResponse's Vary branch): it names known variants but
	// carries no representation of its own, so it is treated as a miss.
	if entry == nil || entry.BodyHandle == nil {
		atomic.AddInt64(&o.misses, 1)
		if onlyIfCached {
			setResponseStatus(ctx, CacheModuleResponse)
			return gatewayTimeoutResponse(req), nil
		}
		variants, verr := o.store.GetVariantCacheEntriesWithETags(ctx, key)
		if verr == nil && len(variants) > 0 {
			return o.negotiateVariant(ctx, key, req, variants)
		}
		resp, reqDate, respDate, derr := o.callBackend(req)
		return o.handleBackendResponse(ctx, key, req, resp, reqDate, respDate, derr, CacheMiss)
	}

	atomic.AddInt64(&o.hits, 1)
	if o.suitability.CanCachedResponseBeUsed(target, req, entry, now) {
		setResponseStatus(ctx, CacheHit)
		return o.serveFromEntry(entry, req, now)
	}
	if onlyIfCached {
		setResponseStatus(ctx, CacheModuleResponse)
		return gatewayTimeoutResponse(req), nil
	}
	if entry.IsRevalidatable() {
		return o.revalidate(ctx, key, req, entry)
	}
	resp, reqDate, respDate, derr := o.callBackend(req)
	return o.handleBackendResponse(ctx, key, req, resp, reqDate, respDate, derr, CacheMiss)
}

// serveFromEntry returns ResponseGenerator's output for a suitable entry:
// a 304 if the caller's own conditionals are satisfied, else the full
// representation, stale-marked if applicable.
func (o *CacheOrchestrator) serveFromEntry(entry *CacheEntry, req *http.Request, now time.Time) (*http.Response, error) {
	if o.suitability.IsConditional(req) && o.suitability.AllConditionalsMatch(req, entry, now) {
		return o.generator.GenerateNotModifiedResponse(entry, req), nil
	}
	resp, err := o.generator.GenerateResponse(entry, req, now)
	if err != nil {
		return nil, err
	}
	if !o.validity.IsFresh(entry, now) {
		stampStaleWarning(resp)
	}
	return resp, nil
}

// callBackend dispatches req to the Backend, bracketing the call with the
// request_date/response_date readings ValidityPolicy's age arithmetic
// needs.
func (o *CacheOrchestrator) callBackend(req *http.Request) (resp *http.Response, reqDate, respDate time.Time, err error) {
	if o.backend == nil {
		return nil, time.Time{}, time.Time{}, &TransportError{Op: "execute", Err: errNoBackend}
	}
	reqDate = time.Now()
	resp, err = o.backend.Execute(req)
	respDate = time.Now()
	if err != nil {
		return nil, reqDate, respDate, &TransportError{Op: "execute", Err: err}
	}
	return resp, reqDate, respDate, nil
}

// handleBackendResponse implements spec.md §4.8.c. statusOnStore is the
// CacheResponseStatus tag to apply when the response ends up stored and
// returned normally (callers on the revalidation path pass Validated; the
// miss/forward paths pass CacheMiss, which is the context's default so the
// call is effectively a no-op there).
func (o *CacheOrchestrator) handleBackendResponse(ctx context.Context, key string, req *http.Request, resp *http.Response, reqDate, respDate time.Time, err error, statusOnStore CacheResponseStatus) (*http.Response, error) {
	if err != nil {
		return nil, err
	}

	o.respCompliance.Normalize(resp, respDate)
	AppendVia(resp.Header, o.config.CachePseudonym, o.config.CacheProduct, resp.ProtoMajor, resp.ProtoMinor, responseProtocolName(resp))

	if !o.responsePol.IsResponseCacheable(req, resp) {
		if ferr := o.store.FlushInvalidatedCacheEntriesFor(ctx, key); ferr != nil {
			GetLogger().Warn("failed to invalidate superseded entry", "key", key, "error", ferr)
		}
		return resp, nil
	}

	if names := varyHeaderNames(resp.Header); len(names) > 0 {
		return o.storeVariant(ctx, key, req, resp, reqDate, respDate, names, statusOnStore)
	}

	if existing, lerr := o.store.GetCacheEntry(ctx, key); lerr == nil && existing != nil {
		if existing.BodyHandle != nil && !entryDate(existing).Before(respDate) {
			// A stored entry at least as new already exists; don't clobber it.
			return resp, nil
		}
	}

	stored, serr := o.store.CacheAndReturnResponse(ctx, key, resp, req, reqDate, respDate)
	if serr != nil {
		GetLogger().Warn("failed to persist cache entry", "key", key, "error", serr)
		return resp, nil
	}
	if statusOnStore != CacheMiss {
		setResponseStatus(ctx, statusOnStore)
	}
	return stored, nil
}

// storeVariant persists a Vary'd response under a key derived from its
// selecting-header values and records it in the base key's variant map, so
// a later request with different selecting-header values finds a sibling
// representation instead of clobbering this one (spec.md §4.2, Variant).
func (o *CacheOrchestrator) storeVariant(ctx context.Context, baseKey string, req *http.Request, resp *http.Response, reqDate, respDate time.Time, names []string, statusOnStore CacheResponseStatus) (*http.Response, error) {
	vkey := variantKey(baseKey, names, req)

	stored, serr := o.store.CacheAndReturnResponse(ctx, vkey, resp, req, reqDate, respDate)
	if serr != nil {
		GetLogger().Warn("failed to persist variant cache entry", "key", vkey, "error", serr)
		return resp, nil
	}
	if rerr := o.store.ReuseVariantEntryFor(ctx, baseKey, &Variant{VariantKey: vkey, CacheKey: vkey, Entry: stored}); rerr != nil {
		GetLogger().Warn("failed to index variant", "baseKey", baseKey, "variantKey", vkey, "error", rerr)
	}
	if statusOnStore != CacheMiss {
		setResponseStatus(ctx, statusOnStore)
	}
	return stored, nil
}

// negotiateVariant implements spec.md §4.8.a.
func (o *CacheOrchestrator) negotiateVariant(ctx context.Context, key string, req *http.Request, variants map[string]*Variant) (*http.Response, error) {
	entries := make([]*CacheEntry, 0, len(variants))
	for _, v := range variants {
		entries = append(entries, v.Entry)
	}
	conditional := o.conditional.BuildConditionalRequestFromVariants(req, entries)

	resp, reqDate, respDate, err := o.callBackend(conditional)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusNotModified {
		return o.handleBackendResponse(ctx, key, req, resp, reqDate, respDate, nil, CacheMiss)
	}

	etag := resp.Header.Get(headerETag)
	if etag == "" {
		GetLogger().Warn("304 in variant negotiation without ETag, retrying unconditionally", "key", key)
		unconditional := o.conditional.BuildUnconditionalRequest(req)
		resp2, reqDate2, respDate2, err2 := o.callBackend(unconditional)
		if err2 != nil {
			return nil, err2
		}
		return o.handleBackendResponse(ctx, key, req, resp2, reqDate2, respDate2, nil, CacheMiss)
	}

	matched, ok := variants[etag]
	if !ok {
		GetLogger().Warn("304 in variant negotiation matched no known ETag, retrying unconditionally", "key", key, "etag", etag)
		unconditional := o.conditional.BuildUnconditionalRequest(req)
		resp2, reqDate2, respDate2, err2 := o.callBackend(unconditional)
		if err2 != nil {
			return nil, err2
		}
		return o.handleBackendResponse(ctx, key, req, resp2, reqDate2, respDate2, nil, CacheMiss)
	}

	if clockSkewed(resp, matched.Entry) {
		unconditional := o.conditional.BuildUnconditionalRequest(req)
		resp2, reqDate2, respDate2, err2 := o.callBackend(unconditional)
		if err2 != nil {
			return nil, err2
		}
		return o.handleBackendResponse(ctx, key, req, resp2, reqDate2, respDate2, nil, CacheMiss)
	}

	updated, uerr := o.store.UpdateVariantCacheEntry(ctx, key, matched.Entry, resp, reqDate, respDate, matched.CacheKey)
	if uerr != nil {
		GetLogger().Warn("failed to persist variant revalidation", "key", matched.CacheKey, "error", uerr)
		updated = matched.Entry
	}
	if rerr := o.store.ReuseVariantEntryFor(ctx, key, &Variant{VariantKey: matched.VariantKey, CacheKey: matched.CacheKey, Entry: updated}); rerr != nil {
		GetLogger().Warn("failed to promote variant", "key", matched.CacheKey, "error", rerr)
	}

	atomic.AddInt64(&o.updates, 1)
	setResponseStatus(ctx, Validated)
	return o.serveFromEntry(updated, req, time.Now())
}

// revalidate implements spec.md §4.8.b.
func (o *CacheOrchestrator) revalidate(ctx context.Context, key string, req *http.Request, entry *CacheEntry) (*http.Response, error) {
	reqCC := parseCacheDirectives(req.Header)
	staleForbidden := reqCC.has(cacheControlNoCache) || reqCC.has(cacheControlNoStore) || o.validity.MustRevalidate(entry)

	if o.async != nil && !staleForbidden && o.validity.MayReturnStaleWhileRevalidating(entry, time.Now()) {
		resp, err := o.serveFromEntry(entry, req, time.Now())
		if err != nil {
			return nil, err
		}
		o.async.Submit(key, func() {
			(&revalidationTask{
				key:        key,
				req:        req,
				entry:      entry,
				store:      o.store,
				backend:    o.backend,
				validity:   o.validity,
				compliance: o.respCompliance,
			}).run()
		})
		setResponseStatus(ctx, CacheHit)
		return resp, nil
	}

	conditional := o.conditional.BuildConditionalRequest(req, entry)
	resp, reqDate, respDate, err := o.callBackend(conditional)
	if err != nil {
		if staleForbidden {
			return gatewayTimeoutResponse(req), nil
		}
		stale, gerr := o.serveFromEntry(entry, req, time.Now())
		if gerr != nil {
			return nil, gerr
		}
		stampRevalidationFailedWarning(stale)
		return stale, nil
	}

	if clockSkewed(resp, entry) {
		unconditional := o.conditional.BuildUnconditionalRequest(req)
		resp2, reqDate2, respDate2, err2 := o.callBackend(unconditional)
		if err2 != nil {
			return nil, err2
		}
		return o.handleBackendResponse(ctx, key, req, resp2, reqDate2, respDate2, nil, CacheMiss)
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		updated, uerr := o.store.UpdateCacheEntry(ctx, key, entry, resp, reqDate, respDate)
		if uerr != nil {
			GetLogger().Warn("failed to persist revalidation", "key", key, "error", uerr)
			updated = entry
		}
		atomic.AddInt64(&o.updates, 1)
		setResponseStatus(ctx, Validated)
		return o.serveFromEntry(updated, req, time.Now())

	case resp.StatusCode >= 500 && resp.StatusCode <= 504 && isRetryableServerError(resp.StatusCode):
		if o.validity.MayReturnStaleIfError(req.Header, entry, time.Now()) && !staleForbidden {
			stale, gerr := o.serveFromEntry(entry, req, time.Now())
			if gerr != nil {
				return nil, gerr
			}
			return stale, nil
		}
		return o.handleBackendResponse(ctx, key, req, resp, reqDate, respDate, nil, Validated)

	default:
		return o.handleBackendResponse(ctx, key, req, resp, reqDate, respDate, nil, Validated)
	}
}

func isRetryableServerError(status int) bool {
	switch status {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// clockSkewed implements the clock-skew retry rule shared by variant
// negotiation and revalidation (spec.md §7, RFC 2616 §13.2.6): a backend
// Date earlier than the stored entry's Date means the backend's clock (or
// an intermediary's) is behind, and the validator match can't be trusted.
func clockSkewed(resp *http.Response, entry *CacheEntry) bool {
	raw := resp.Header.Get(headerDate)
	if raw == "" {
		return false
	}
	d, err := http.ParseTime(raw)
	if err != nil {
		return false
	}
	return d.Before(entryDate(entry))
}

func requestProtocolName(req *http.Request) string {
	if req.URL != nil && req.URL.Scheme != "" {
		return req.URL.Scheme
	}
	return "http"
}

func responseProtocolName(resp *http.Response) string {
	if resp.Request != nil {
		return requestProtocolName(resp.Request)
	}
	return "http"
}

func gatewayTimeoutResponse(req *http.Request) *http.Response {
	header := make(http.Header)
	header.Set(headerContentLength, "0")
	return &http.Response{
		Status:     "504 Gateway Timeout",
		StatusCode: http.StatusGatewayTimeout,
		Proto:      req.Proto,
		ProtoMajor: req.ProtoMajor,
		ProtoMinor: req.ProtoMinor,
		Header:     header,
		Body:       http.NoBody,
		Request:    req,
	}
}
