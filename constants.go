package httpcache

import "time"

const (
	methodGET    = "GET"
	methodHEAD   = "HEAD"
	methodPOST   = "POST"
	methodPUT    = "PUT"
	methodPATCH  = "PATCH"
	methodDELETE = "DELETE"

	headerVary            = "Vary"
	headerETag            = "ETag"
	headerLastModified    = "Last-Modified"
	headerDate            = "Date"
	headerAge             = "Age"
	headerExpires         = "Expires"
	headerWarning         = "Warning"
	headerLocation        = "Location"
	headerContentLocation = "Content-Location"
	headerContentLength   = "Content-Length"
	headerIfNoneMatch     = "If-None-Match"
	headerIfModifiedSince = "If-Modified-Since"
	headerIfMatch         = "If-Match"
	headerIfUnmodSince    = "If-Unmodified-Since"
	headerIfRange         = "If-Range"
	headerRange           = "Range"
	headerContentRange    = "Content-Range"
	headerPragma          = "Pragma"
	headerVia             = "Via"
	headerMaxForwards     = "Max-Forwards"
	headerAuthorization   = "Authorization"
	headerCacheControl    = "Cache-Control"

	pragmaNoCache = "no-cache"

	cacheControlNoStore              = "no-store"
	cacheControlNoCache              = "no-cache"
	cacheControlPrivate              = "private"
	cacheControlPublic               = "public"
	cacheControlMaxAge               = "max-age"
	cacheControlSMaxAge              = "s-maxage"
	cacheControlMinFresh             = "min-fresh"
	cacheControlMaxStale             = "max-stale"
	cacheControlMustRevalidate       = "must-revalidate"
	cacheControlProxyRevalidate      = "proxy-revalidate"
	cacheControlMustUnderstand       = "must-understand"
	cacheControlOnlyIfCached         = "only-if-cached"
	cacheControlStaleWhileRevalidate = "stale-while-revalidate"
	cacheControlStaleIfError        = "stale-if-error"

	// RFC 7234 §5.5 Warning codes. RFC 9111 obsoletes Warning, but the
	// header is kept for compatibility the same way the teacher keeps it.
	warningResponseIsStale     = `110 - "Response is Stale"`
	warningRevalidationFailed  = `111 - "Revalidation Failed"`
	warningHeuristicExpiration = `113 - "Heuristic Expiration"`

	heuristicExpirationThreshold = 24 * time.Hour
)

// understoodStatusCodes are the status codes RFC 9111 §5.2.2.3 considers
// "understood" for the purposes of the must-understand directive.
var understoodStatusCodes = map[int]bool{
	200: true,
	203: true,
	204: true,
	206: true,
	300: true,
	301: true,
	404: true,
	405: true,
	410: true,
	414: true,
	501: true,
}

// heuristicallyCacheableStatus is the set of status codes RFC 2616 §14.9.3 /
// RFC 9111 §4.2.2 allow a cache to assign a heuristic freshness lifetime to,
// absent any explicit freshness information.
var heuristicallyCacheableStatus = map[int]bool{
	200: true,
	203: true,
	300: true,
	301: true,
	410: true,
}
