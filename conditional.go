package httpcache

import "net/http"

// ConditionalRequestBuilder turns a stored, stale-but-revalidatable entry
// into a conditional backend request, per RFC 9111 §4.3.1.
type ConditionalRequestBuilder struct{}

// BuildConditionalRequest clones req and adds If-None-Match/If-Modified-Since
// validators drawn from entry, leaving req untouched.
func (ConditionalRequestBuilder) BuildConditionalRequest(req *http.Request, entry *CacheEntry) *http.Request {
	out := req.Clone(req.Context())
	if etag := entry.Header.Get(headerETag); etag != "" {
		out.Header.Set(headerIfNoneMatch, etag)
	}
	if lm := entry.Header.Get(headerLastModified); lm != "" {
		out.Header.Set(headerIfModifiedSince, lm)
	}
	return out
}

// BuildConditionalRequestFromVariants merges the validators of every
// candidate variant of a varying resource into a single conditional
// request, so one round trip can revalidate (or select among) all of them.
// If-None-Match becomes a comma-separated ETag list; If-Modified-Since uses
// the oldest Last-Modified among the candidates, since the backend must not
// return 304 unless every representation is unchanged.
func (ConditionalRequestBuilder) BuildConditionalRequestFromVariants(req *http.Request, variants []*CacheEntry) *http.Request {
	out := req.Clone(req.Context())

	var etags []string
	var oldest string
	var oldestTime int64 = 1<<63 - 1
	for _, entry := range variants {
		if entry == nil {
			continue
		}
		if etag := entry.Header.Get(headerETag); etag != "" {
			etags = append(etags, etag)
		}
		if lm := entry.Header.Get(headerLastModified); lm != "" {
			if t, err := http.ParseTime(lm); err == nil {
				if unix := t.Unix(); unix < oldestTime {
					oldestTime = unix
					oldest = lm
				}
			}
		}
	}
	if len(etags) > 0 {
		out.Header.Set(headerIfNoneMatch, joinComma(etags))
	}
	if oldest != "" {
		out.Header.Set(headerIfModifiedSince, oldest)
	}
	return out
}

// BuildUnconditionalRequest clones req with every If-* conditional header
// stripped and Cache-Control: no-cache, Pragma: no-cache added, forcing the
// backend to treat it as a fresh fetch (RFC 2616 §13.2.6 clock-skew retry,
// spec.md §4.5).
func (ConditionalRequestBuilder) BuildUnconditionalRequest(req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Del(headerIfNoneMatch)
	out.Header.Del(headerIfModifiedSince)
	out.Header.Del(headerIfMatch)
	out.Header.Del(headerIfUnmodSince)
	out.Header.Del(headerIfRange)
	out.Header.Set(headerCacheControl, cacheControlNoCache)
	out.Header.Set(headerPragma, pragmaNoCache)
	return out
}

func joinComma(values []string) string {
	if len(values) == 1 {
		return values[0]
	}
	out := values[0]
	for _, v := range values[1:] {
		out += ", " + v
	}
	return out
}
