package httpcache

import (
	"net/http"
	"sort"
	"strings"
)

// deriveCacheKey returns the storage key for req: method-qualified for
// every method other than GET (so a non-GET request's key never collides
// with the GET entry for the same URL), with the configured
// CacheKeyHeaders' values appended so per-header-varying deployments (e.g.
// per-tenant Authorization) don't collide in the store.
func deriveCacheKey(req *http.Request, headers []string) string {
	key := req.URL.String()
	if req.Method != methodGET {
		key = req.Method + " " + key
	}

	if len(headers) == 0 {
		return key
	}
	var parts []string
	for _, h := range headers {
		name := http.CanonicalHeaderKey(h)
		if v := req.Header.Get(name); v != "" {
			parts = append(parts, name+":"+v)
		}
	}
	if len(parts) == 0 {
		return key
	}
	sort.Strings(parts)
	return key + "|" + strings.Join(parts, "|")
}
