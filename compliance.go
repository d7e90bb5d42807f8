package httpcache

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CachePseudonym and CacheProduct identify this cache in the Via header it
// stamps onto every response it emits (spec.md §4.8 step 4, §8 "Via
// stamping"). Overridable via CacheConfig for deployments that want their
// own identity in the chain.
const (
	defaultCachePseudonym = "httpcache"
	defaultCacheProduct   = "arjunvale-httpcache/1.0"
)

// RequestCompliance normalizes inbound requests before dispatch:
// canonicalizing OPTIONS edge cases, stripping duplicate/conflicting
// cache directives, and surfacing fatal noncompliance.
type RequestCompliance struct{}

// IsSelfDirectedOptions reports spec.md §4.8 step 2: OPTIONS * HTTP/1.1
// with Max-Forwards: 0, addressed at the cache itself rather than forwarded
// upstream. A missing Max-Forwards header is "not our request" (per the
// source behavior this spec intentionally preserves), not a zero value.
func (RequestCompliance) IsSelfDirectedOptions(req *http.Request) bool {
	if req.Method != http.MethodOptions || req.URL.Path != "*" && req.RequestURI != "*" {
		return false
	}
	mf := req.Header.Get(headerMaxForwards)
	if mf == "" {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(mf))
	return err == nil && n == 0
}

// SelfDirectedOptionsResponse builds the synthetic response for a
// self-directed OPTIONS request, identifying the cache.
func (RequestCompliance) SelfDirectedOptionsResponse(req *http.Request) *http.Response {
	header := make(http.Header)
	header.Set("Allow", "GET, HEAD, OPTIONS")
	header.Set(headerContentLength, "0")
	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Proto:      req.Proto,
		ProtoMajor: req.ProtoMajor,
		ProtoMinor: req.ProtoMinor,
		Header:     header,
		Body:       http.NoBody,
		Request:    req,
	}
}

// FatalNoncompliance inspects req for noncompliance this cache refuses to
// forward, returning the RequestProtocolError taxonomy entry and a
// synthesized 4xx response, or ok=false if req is acceptable.
func (RequestCompliance) FatalNoncompliance(req *http.Request) (reason RequestProtocolError, resp *http.Response, ok bool) {
	switch req.Method {
	case methodGET, methodHEAD, methodPOST, methodPUT, methodPATCH, methodDELETE,
		http.MethodOptions, http.MethodTrace, http.MethodConnect:
	default:
		return ErrUnknownMethod, newComplianceErrorResponse(req, http.StatusNotImplemented), true
	}

	if req.Header.Get(headerIfRange) != "" {
		if v := req.Header.Get(headerIfRange); len(v) >= 2 && v[0] == 'W' && v[1] == '/' {
			return ErrWeakETagOnRange, newComplianceErrorResponse(req, http.StatusBadRequest), true
		}
	}

	if expect := req.Header.Get("Expect"); expect != "" && !strings.EqualFold(expect, "100-continue") {
		return ErrInvalidExpectDirective, newComplianceErrorResponse(req, http.StatusExpectationFailed), true
	}

	if req.ProtoMajor == 0 {
		return ErrUnsupportedHTTPVersion, newComplianceErrorResponse(req, http.StatusHTTPVersionNotSupported), true
	}

	return 0, nil, false
}

func newComplianceErrorResponse(req *http.Request, status int) *http.Response {
	header := make(http.Header)
	header.Set(headerContentLength, "0")
	return &http.Response{
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode: status,
		Proto:      req.Proto,
		ProtoMajor: req.ProtoMajor,
		ProtoMinor: req.ProtoMinor,
		Header:     header,
		Body:       http.NoBody,
		Request:    req,
	}
}

// Normalize strips duplicate/conflicting Cache-Control directives (by
// re-serializing the parsed, deduplicated set back onto the request) and
// returns a clone; callers then append Via themselves.
func (RequestCompliance) Normalize(req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	if cc := out.Header.Values(headerCacheControl); len(cc) > 1 {
		parsed := parseCacheDirectives(out.Header)
		out.Header.Set(headerCacheControl, serializeCacheDirectives(parsed))
	}
	return out
}

func serializeCacheDirectives(cc cacheDirectives) string {
	var parts []string
	for name, value := range cc {
		if value == "" {
			parts = append(parts, name)
		} else {
			parts = append(parts, name+"="+value)
		}
	}
	return strings.Join(parts, ", ")
}

// ViaToken formats this cache's identity for the Via header per spec.md
// §4.8 step 4: "<proto>/<major>.<minor> <pseudonym> (<product> (cache))",
// with the protocol token omitted when it is "http" (preserving the
// source's http-only special case rather than generalizing to https).
func ViaToken(pseudonym, product string, major, minor int, proto string) string {
	if pseudonym == "" {
		pseudonym = defaultCachePseudonym
	}
	if product == "" {
		product = defaultCacheProduct
	}
	version := fmt.Sprintf("%d.%d", major, minor)
	protoToken := version
	if !strings.EqualFold(proto, "http") && proto != "" {
		protoToken = proto + "/" + version
	}
	return fmt.Sprintf("%s %s (%s (cache))", protoToken, pseudonym, product)
}

// AppendVia appends this cache's Via token to header, per the "exactly one
// Via entry added by this cache" testable property in spec.md §8.
func AppendVia(header http.Header, pseudonym, product string, major, minor int, proto string) {
	header.Add(headerVia, ViaToken(pseudonym, product, major, minor, proto))
}

// ResponseCompliance normalizes a backend response after receipt, so
// downstream age/freshness arithmetic and storage always see a well-formed
// message.
type ResponseCompliance struct{}

// Normalize implements spec.md §4.7: synthesize Date if absent, collapse
// duplicate Content-Length, clamp Age to >= 0.
func (ResponseCompliance) Normalize(resp *http.Response, now time.Time) {
	if resp.Header.Get(headerDate) == "" {
		resp.Header.Set(headerDate, now.UTC().Format(http.TimeFormat))
	}
	if cl := resp.Header.Values(headerContentLength); len(cl) > 1 {
		resp.Header.Set(headerContentLength, cl[0])
	}
	if age := resp.Header.Get(headerAge); age != "" {
		if n, err := strconv.ParseInt(age, 10, 64); err != nil || n < 0 {
			resp.Header.Set(headerAge, "0")
		}
	}
}
