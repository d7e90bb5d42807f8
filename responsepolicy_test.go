package httpcache

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newCacheableRequestResponse(status int, respHeader http.Header) (*http.Request, *http.Response) {
	req, _ := http.NewRequest(methodGET, "http://example.com/", nil)
	if respHeader == nil {
		respHeader = make(http.Header)
	}
	return req, &http.Response{StatusCode: status, Header: respHeader}
}

func TestIsResponseCacheableRejectsUnsafeMethod(t *testing.T) {
	p := &ResponsePolicy{}
	req, _ := http.NewRequest(methodPOST, "http://example.com/", nil)
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": []string{"max-age=60"}}}
	assert.False(t, p.IsResponseCacheable(req, resp))
}

func TestIsResponseCacheableRejectsUnunderstoodStatus(t *testing.T) {
	p := &ResponsePolicy{}
	req, resp := newCacheableRequestResponse(418, http.Header{"Cache-Control": []string{"max-age=60"}})
	assert.False(t, p.IsResponseCacheable(req, resp))
}

func TestIsResponseCacheableRejectsRangeResponses(t *testing.T) {
	p := &ResponsePolicy{}
	req, resp := newCacheableRequestResponse(http.StatusPartialContent, http.Header{
		"Cache-Control": []string{"max-age=60"},
		"Content-Range": []string{"bytes 0-99/200"},
	})
	assert.False(t, p.IsResponseCacheable(req, resp))
}

func TestIsResponseCacheableRejectsNoStoreEitherSide(t *testing.T) {
	p := &ResponsePolicy{}
	req, resp := newCacheableRequestResponse(http.StatusOK, http.Header{"Cache-Control": []string{"no-store, max-age=60"}})
	assert.False(t, p.IsResponseCacheable(req, resp))

	req2, resp2 := newCacheableRequestResponse(http.StatusOK, http.Header{"Cache-Control": []string{"max-age=60"}})
	req2.Header.Set("Cache-Control", "no-store")
	assert.False(t, p.IsResponseCacheable(req2, resp2))
}

func TestIsResponseCacheableSharedCacheRejectsPrivate(t *testing.T) {
	shared := &ResponsePolicy{SharedCache: true}
	req, resp := newCacheableRequestResponse(http.StatusOK, http.Header{"Cache-Control": []string{"private, max-age=60"}})
	assert.False(t, shared.IsResponseCacheable(req, resp))

	private := &ResponsePolicy{SharedCache: false}
	assert.True(t, private.IsResponseCacheable(req, resp))
}

func TestIsResponseCacheableSharedCacheGatesAuthorizedRequests(t *testing.T) {
	shared := &ResponsePolicy{SharedCache: true}
	req, resp := newCacheableRequestResponse(http.StatusOK, http.Header{"Cache-Control": []string{"max-age=60"}})
	req.Header.Set("Authorization", "Bearer token")
	assert.False(t, shared.IsResponseCacheable(req, resp))

	req2, resp2 := newCacheableRequestResponse(http.StatusOK, http.Header{"Cache-Control": []string{"public, max-age=60"}})
	req2.Header.Set("Authorization", "Bearer token")
	assert.True(t, shared.IsResponseCacheable(req2, resp2))
}

func TestIsResponseCacheableRejectsOversizedContentLength(t *testing.T) {
	p := &ResponsePolicy{MaxObjectSize: 10}
	req, resp := newCacheableRequestResponse(http.StatusOK, http.Header{
		"Cache-Control":  []string{"max-age=60"},
		"Content-Length": []string{"100"},
	})
	assert.False(t, p.IsResponseCacheable(req, resp))
}

func TestIsResponseCacheableValidatorWithoutFreshnessIsCacheable(t *testing.T) {
	p := &ResponsePolicy{}
	req, resp := newCacheableRequestResponse(http.StatusOK, http.Header{"Etag": []string{`"v1"`}})
	assert.True(t, p.IsResponseCacheable(req, resp))
}

func TestIsResponseCacheableHeuristicStatusCacheableRegardlessOfFlag(t *testing.T) {
	req, resp := newCacheableRequestResponse(http.StatusOK, nil)

	disabled := &ResponsePolicy{}
	assert.True(t, disabled.IsResponseCacheable(req, resp), "a bare 200 with no freshness/validator is still cacheable; HeuristicCachingEnabled only gates its freshness lifetime")

	enabled := &ResponsePolicy{HeuristicCachingEnabled: true}
	assert.True(t, enabled.IsResponseCacheable(req, resp))
}

func TestIsResponseCacheableShouldCacheHookIsAdditiveOnly(t *testing.T) {
	// 404 is understood but not in the heuristically cacheable set, so
	// ShouldCache is what has to admit it.
	req, resp := newCacheableRequestResponse(http.StatusNotFound, nil)
	rejected := &ResponsePolicy{}
	assert.False(t, rejected.IsResponseCacheable(req, resp))

	always := &ResponsePolicy{ShouldCache: func(*http.Response) bool { return true }}
	assert.True(t, always.IsResponseCacheable(req, resp))

	// ShouldCache cannot override an explicit no-store refusal.
	noStoreReq, noStoreResp := newCacheableRequestResponse(http.StatusOK, http.Header{"Cache-Control": []string{"no-store"}})
	forced := &ResponsePolicy{ShouldCache: func(*http.Response) bool { return true }}
	assert.False(t, forced.IsResponseCacheable(noStoreReq, noStoreResp))
}
