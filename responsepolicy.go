package httpcache

import (
	"net/http"
	"strconv"
)

// ResponsePolicy decides whether a backend response is cacheable at all,
// independent of any existing entry.
type ResponsePolicy struct {
	// MaxObjectSize bounds Content-Length; responses larger are rejected.
	// Zero means unbounded.
	MaxObjectSize int64
	// SharedCache enables shared-cache rules: Cache-Control: private is
	// refused, and Authorization requests need public/must-revalidate/
	// s-maxage to be cached.
	SharedCache bool
	// HeuristicCachingEnabled is not consulted by IsResponseCacheable:
	// responses that lack explicit freshness information but have a
	// heuristically cacheable status are cacheable whatever its value (it
	// gates their freshness lifetime in ValidityPolicy instead).
	HeuristicCachingEnabled bool
	// ShouldCache, if set, is consulted when no other rule admits the
	// response; returning true opts a response into caching without
	// weakening the rules above (it is only ever additive).
	ShouldCache func(*http.Response) bool
}

// IsResponseCacheable implements spec.md §4.3.
func (p *ResponsePolicy) IsResponseCacheable(req *http.Request, resp *http.Response) bool {
	if isUnsafeMethod(req.Method) {
		return false
	}
	if !understoodStatusCodes[resp.StatusCode] {
		return false
	}
	if req.Header.Get(headerRange) != "" || resp.Header.Get(headerContentRange) != "" {
		return false
	}

	respCC := parseCacheDirectives(resp.Header)
	reqCC := parseCacheDirectives(req.Header)

	if respCC.has(cacheControlMustUnderstand) && !understoodStatusCodes[resp.StatusCode] {
		return false
	}
	if respCC.has(cacheControlNoStore) || reqCC.has(cacheControlNoStore) {
		return false
	}
	if p.SharedCache && respCC.has(cacheControlPrivate) {
		return false
	}
	if p.SharedCache && req.Header.Get(headerAuthorization) != "" {
		if !respCC.has(cacheControlPublic) && !respCC.has(cacheControlMustRevalidate) && !respCC.has(cacheControlSMaxAge) {
			return false
		}
	}
	if cl := resp.Header.Get(headerContentLength); cl != "" && p.MaxObjectSize > 0 {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > p.MaxObjectSize {
			return false
		}
	}

	if p.hasExplicitFreshness(respCC, resp.Header) {
		return true
	}
	if resp.Header.Get(headerETag) != "" || resp.Header.Get(headerLastModified) != "" {
		return true
	}
	if heuristicallyCacheableStatus[resp.StatusCode] {
		// No explicit freshness and no validator, but the status is one RFC
		// 2616 §13.4 allows caching by default. HeuristicCachingEnabled only
		// gates the freshness lifetime assigned to it (FreshnessLifetime),
		// not whether it may be stored at all.
		return true
	}

	if p.ShouldCache != nil {
		return p.ShouldCache(resp)
	}
	return false
}

func (p *ResponsePolicy) hasExplicitFreshness(respCC cacheDirectives, h http.Header) bool {
	if respCC.has(cacheControlMaxAge) || respCC.has(cacheControlSMaxAge) {
		return true
	}
	return h.Get(headerExpires) != ""
}

func isUnsafeMethod(method string) bool {
	return method == methodPOST || method == methodPUT || method == methodDELETE || method == methodPATCH
}
