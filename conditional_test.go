package httpcache

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildConditionalRequestAddsValidators(t *testing.T) {
	b := ConditionalRequestBuilder{}
	req, _ := http.NewRequest(methodGET, "http://example.com/", nil)
	entry := &CacheEntry{Header: http.Header{
		"Etag":          []string{`"v1"`},
		"Last-Modified": []string{"Mon, 01 Jan 2024 00:00:00 GMT"},
	}}

	out := b.BuildConditionalRequest(req, entry)
	assert.Equal(t, `"v1"`, out.Header.Get(headerIfNoneMatch))
	assert.Equal(t, "Mon, 01 Jan 2024 00:00:00 GMT", out.Header.Get(headerIfModifiedSince))
	assert.Empty(t, req.Header.Get(headerIfNoneMatch), "original request must be left untouched")
}

func TestBuildConditionalRequestOmitsAbsentValidators(t *testing.T) {
	b := ConditionalRequestBuilder{}
	req, _ := http.NewRequest(methodGET, "http://example.com/", nil)
	entry := &CacheEntry{Header: http.Header{}}

	out := b.BuildConditionalRequest(req, entry)
	assert.Empty(t, out.Header.Get(headerIfNoneMatch))
	assert.Empty(t, out.Header.Get(headerIfModifiedSince))
}

func TestBuildConditionalRequestFromVariantsJoinsETagsAndPicksOldestLastModified(t *testing.T) {
	b := ConditionalRequestBuilder{}
	req, _ := http.NewRequest(methodGET, "http://example.com/", nil)

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	variants := []*CacheEntry{
		{Header: http.Header{"Etag": []string{`"en"`}, "Last-Modified": []string{newer.Format(http.TimeFormat)}}},
		{Header: http.Header{"Etag": []string{`"fr"`}, "Last-Modified": []string{older.Format(http.TimeFormat)}}},
		nil,
	}

	out := b.BuildConditionalRequestFromVariants(req, variants)
	assert.Equal(t, `"en", "fr"`, out.Header.Get(headerIfNoneMatch))
	assert.Equal(t, older.Format(http.TimeFormat), out.Header.Get(headerIfModifiedSince))
}

func TestBuildUnconditionalRequestStripsValidatorsAndForcesNoCache(t *testing.T) {
	b := ConditionalRequestBuilder{}
	req, _ := http.NewRequest(methodGET, "http://example.com/", nil)
	req.Header.Set(headerIfNoneMatch, `"v1"`)
	req.Header.Set(headerIfModifiedSince, "Mon, 01 Jan 2024 00:00:00 GMT")
	req.Header.Set(headerIfMatch, `"v1"`)
	req.Header.Set(headerIfUnmodSince, "Mon, 01 Jan 2024 00:00:00 GMT")
	req.Header.Set(headerIfRange, `"v1"`)

	out := b.BuildUnconditionalRequest(req)
	assert.Empty(t, out.Header.Get(headerIfNoneMatch))
	assert.Empty(t, out.Header.Get(headerIfModifiedSince))
	assert.Empty(t, out.Header.Get(headerIfMatch))
	assert.Empty(t, out.Header.Get(headerIfUnmodSince))
	assert.Empty(t, out.Header.Get(headerIfRange))
	assert.Equal(t, "no-cache", out.Header.Get(headerCacheControl))
	assert.Equal(t, "no-cache", out.Header.Get(headerPragma))
	assert.Equal(t, `"v1"`, req.Header.Get(headerIfMatch), "original request must be left untouched")
}
