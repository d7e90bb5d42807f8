package httpcache

import (
	"context"
	"net/http"
	"net/url"
)

// invalidationTargets resolves the cache keys to flush for an unsafe
// method's request, per spec.md §4.8 step 5 / RFC 9111 §4.4: the effective
// request URI, plus any same-origin Location/Content-Location the response
// names. Cross-origin targets are never invalidated.
func invalidationTargets(req *http.Request, resp *http.Response, headers []string) []string {
	// The stored entries for the effective URI are keyed as GET requests.
	self := &http.Request{Method: methodGET, URL: req.URL, Header: req.Header}
	targets := []string{deriveCacheKey(self, headers)}

	if resp == nil {
		return targets
	}
	for _, h := range [...]string{headerLocation, headerContentLocation} {
		raw := resp.Header.Get(h)
		if raw == "" {
			continue
		}
		target, err := req.URL.Parse(raw)
		if err != nil || !isSameOrigin(req.URL, target) {
			continue
		}
		fake := &http.Request{Method: methodGET, URL: target, Header: http.Header{}}
		targets = append(targets, deriveCacheKey(fake, headers))
	}
	return targets
}

// invalidateAfterUnsafeMethod flushes every target a non-error response to
// an unsafe method implicates.
func invalidateAfterUnsafeMethod(ctx context.Context, store CacheStore, req *http.Request, resp *http.Response, headers []string) {
	if resp != nil && resp.StatusCode >= 400 {
		return
	}
	for _, key := range invalidationTargets(req, resp, headers) {
		if err := store.FlushCacheEntriesFor(ctx, key); err != nil {
			GetLogger().Warn("failed to invalidate cache entry", "key", key, "error", err)
		}
	}
}

func isSameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}
