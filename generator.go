package httpcache

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ResponseGenerator materializes a stored CacheEntry back into an
// *http.Response, stamping Age and Warning headers per RFC 9111 §4.2/§5.5.
type ResponseGenerator struct {
	Validity *ValidityPolicy
}

// notModifiedHeaders are the only header fields RFC 2616 §10.3.5 permits a
// 304 response to carry.
var notModifiedHeaders = [...]string{
	headerDate, headerETag, headerContentLocation, headerExpires,
	headerCacheControl, headerVary,
}

// GenerateResponse produces a full response from entry, with a fresh body
// stream opened over its BodyHandle.
func (g *ResponseGenerator) GenerateResponse(entry *CacheEntry, req *http.Request, now time.Time) (*http.Response, error) {
	header := entry.Header.Clone()

	age := g.Validity.CurrentAge(entry, now)
	header.Set(headerAge, strconv.FormatInt(int64(age.Round(time.Second).Seconds()), 10))

	if age >= heuristicExpirationThreshold && g.Validity.FreshnessLifetime(entry) > heuristicExpirationThreshold {
		header.Add(headerWarning, warningHeuristicExpiration)
	}

	body, err := entry.BodyHandle.Reader()
	if err != nil {
		return nil, &StorageError{Op: "open body", Err: err}
	}

	resp := &http.Response{
		Status:     fmt.Sprintf("%d %s", entry.StatusCode, entry.StatusReason),
		StatusCode: entry.StatusCode,
		Proto:      fmt.Sprintf("HTTP/%d.%d", entry.ProtoMajor, entry.ProtoMinor),
		ProtoMajor: entry.ProtoMajor,
		ProtoMinor: entry.ProtoMinor,
		Header:     header,
		Body:       body,
		Request:    req,
	}
	return resp, nil
}

// GenerateNotModifiedResponse produces a 304 carrying only the headers RFC
// 2616 §10.3.5 permits.
func (g *ResponseGenerator) GenerateNotModifiedResponse(entry *CacheEntry, req *http.Request) *http.Response {
	header := make(http.Header, len(notModifiedHeaders))
	for _, name := range notModifiedHeaders {
		if v := entry.Header.Values(name); len(v) > 0 {
			for _, val := range v {
				header.Add(name, val)
			}
		}
	}
	return &http.Response{
		Status:     "304 Not Modified",
		StatusCode: http.StatusNotModified,
		Proto:      fmt.Sprintf("HTTP/%d.%d", entry.ProtoMajor, entry.ProtoMinor),
		ProtoMajor: entry.ProtoMajor,
		ProtoMinor: entry.ProtoMinor,
		Header:     header,
		Body:       http.NoBody,
		Request:    req,
	}
}

// stampStaleWarning adds the "110 Response is Stale" warning used on both
// the synchronous and asynchronous stale-serving paths.
func stampStaleWarning(resp *http.Response) {
	resp.Header.Add(headerWarning, warningResponseIsStale)
}

// stampRevalidationFailedWarning adds "111 Revalidation Failed", used when
// a synchronous revalidation attempt hits a network failure and falls back
// to the stale entry.
func stampRevalidationFailedWarning(resp *http.Response) {
	resp.Header.Add(headerWarning, warningRevalidationFailed)
}
