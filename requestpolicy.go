package httpcache

import "net/http"

// RequestPolicy decides whether a request is even eligible to be served
// from cache, independent of what (if anything) is stored for it.
type RequestPolicy struct{}

// IsServableFromCache implements spec.md §4.2: only GET requests without
// Cache-Control: no-store/no-cache or Pragma: no-cache are candidates.
func (RequestPolicy) IsServableFromCache(req *http.Request) bool {
	if req.Method != methodGET {
		return false
	}
	cc := parseCacheDirectives(req.Header)
	if cc.has(cacheControlNoStore) || cc.has(cacheControlNoCache) {
		return false
	}
	if hasPragmaNoCache(req.Header) {
		return false
	}
	return true
}

func hasPragmaNoCache(h http.Header) bool {
	for _, v := range h.Values(headerPragma) {
		if v == pragmaNoCache {
			return true
		}
	}
	return false
}
