package httpcache

import (
	"net/http"
	"time"
)

// ValidityPolicy is pure, stateless freshness/age arithmetic over a
// CacheEntry and a "now" timestamp, per RFC 2616 §13.2 / RFC 9111 §4.2.
type ValidityPolicy struct {
	// SharedCache gates s-maxage: only a shared cache honors it over
	// max-age.
	SharedCache bool
	// HeuristicEnabled turns on RFC 2616 §13.2.4 heuristic freshness for
	// responses that carry no explicit freshness information.
	HeuristicEnabled bool
	// HeuristicCoefficient scales (Date - Last-Modified) when computing a
	// heuristic freshness lifetime. Defaults to 0.1 if zero.
	HeuristicCoefficient float64
	// HeuristicDefaultLifetime is used when heuristic freshness is enabled
	// but no Last-Modified is present to derive a coefficient-based value.
	HeuristicDefaultLifetime time.Duration
}

func (p *ValidityPolicy) coefficient() float64 {
	if p.HeuristicCoefficient > 0 {
		return p.HeuristicCoefficient
	}
	return 0.1
}

func entryDate(e *CacheEntry) time.Time {
	if v := e.Header.Get(headerDate); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			return t
		}
	}
	return e.ResponseDate
}

func entryAgeHeaderSeconds(e *CacheEntry) time.Duration {
	v := e.Header.Get(headerAge)
	if v == "" {
		return 0
	}
	dur, ok := parseNonNegativeSeconds(v)
	if !ok {
		return 0
	}
	return dur
}

// ApparentAge implements RFC 9111 §4.2.3: max(0, response_date - Date).
func (p *ValidityPolicy) ApparentAge(e *CacheEntry) time.Duration {
	d := e.ResponseDate.Sub(entryDate(e))
	if d < 0 {
		return 0
	}
	return d
}

// CorrectedReceivedAge implements RFC 9111 §4.2.3.
func (p *ValidityPolicy) CorrectedReceivedAge(e *CacheEntry) time.Duration {
	apparent := p.ApparentAge(e)
	ageHeader := entryAgeHeaderSeconds(e)
	if ageHeader > apparent {
		return ageHeader
	}
	return apparent
}

// ResponseDelay is the time the backend took to answer: response_date -
// request_date.
func (p *ValidityPolicy) ResponseDelay(e *CacheEntry) time.Duration {
	d := e.ResponseDate.Sub(e.RequestDate)
	if d < 0 {
		return 0
	}
	return d
}

// CorrectedInitialAge implements RFC 9111 §4.2.3.
func (p *ValidityPolicy) CorrectedInitialAge(e *CacheEntry) time.Duration {
	return p.CorrectedReceivedAge(e) + p.ResponseDelay(e)
}

// ResidentTime is how long the entry has sat in the store: now - response_date.
func (p *ValidityPolicy) ResidentTime(e *CacheEntry, now time.Time) time.Duration {
	d := now.Sub(e.ResponseDate)
	if d < 0 {
		return 0
	}
	return d
}

// CurrentAge implements RFC 9111 §4.2.3's full age computation.
func (p *ValidityPolicy) CurrentAge(e *CacheEntry, now time.Time) time.Duration {
	return p.CorrectedInitialAge(e) + p.ResidentTime(e, now)
}

// FreshnessLifetime implements RFC 9111 §4.2.1: s-maxage (shared caches
// only) > max-age > Expires-Date > heuristic (if enabled) > 0.
func (p *ValidityPolicy) FreshnessLifetime(e *CacheEntry) time.Duration {
	cc := parseCacheDirectives(e.Header)

	if p.SharedCache {
		if s, ok := cc.seconds(cacheControlSMaxAge); ok {
			return time.Duration(s) * time.Second
		}
	}
	if s, ok := cc.seconds(cacheControlMaxAge); ok {
		return time.Duration(s) * time.Second
	}
	if expires := e.Header.Get(headerExpires); expires != "" {
		if t, err := http.ParseTime(expires); err == nil {
			if d := t.Sub(entryDate(e)); d > 0 {
				return d
			}
			return 0
		}
	}
	if p.HeuristicEnabled && heuristicallyCacheableStatus[e.StatusCode] {
		return p.heuristicLifetime(e)
	}
	return 0
}

// heuristicLifetime implements RFC 2616 §13.2.4 / RFC 9111 §4.2.2:
// coefficient * (Date - Last-Modified), falling back to
// HeuristicDefaultLifetime when no Last-Modified is available.
func (p *ValidityPolicy) heuristicLifetime(e *CacheEntry) time.Duration {
	lm := e.Header.Get(headerLastModified)
	if lm == "" {
		return p.HeuristicDefaultLifetime
	}
	lastModified, err := http.ParseTime(lm)
	if err != nil {
		return p.HeuristicDefaultLifetime
	}
	date := entryDate(e)
	if !date.After(lastModified) {
		return p.HeuristicDefaultLifetime
	}
	lifetime := time.Duration(float64(date.Sub(lastModified)) * p.coefficient())
	if lifetime < 0 {
		return 0
	}
	return lifetime
}

// IsFresh reports freshness_lifetime > current_age.
func (p *ValidityPolicy) IsFresh(e *CacheEntry, now time.Time) bool {
	return p.FreshnessLifetime(e) > p.CurrentAge(e, now)
}

// IsRevalidatable reports whether the entry carries a validator.
func (p *ValidityPolicy) IsRevalidatable(e *CacheEntry) bool {
	return e.IsRevalidatable()
}

// MustRevalidate reports Cache-Control: must-revalidate.
func (p *ValidityPolicy) MustRevalidate(e *CacheEntry) bool {
	return parseCacheDirectives(e.Header).has(cacheControlMustRevalidate)
}

// ProxyRevalidate reports Cache-Control: proxy-revalidate.
func (p *ValidityPolicy) ProxyRevalidate(e *CacheEntry) bool {
	return parseCacheDirectives(e.Header).has(cacheControlProxyRevalidate)
}

// staleWindow returns the entry/request's stale-if-error or
// stale-while-revalidate window, in that shared shape: the directive may
// appear on the response or be echoed by the request (RFC 5861 permits
// both), and a valueless directive means "any amount of staleness".
func staleWindow(directive string, entryHeader, reqHeader http.Header) (time.Duration, bool) {
	for _, h := range [...]http.Header{entryHeader, reqHeader} {
		if h == nil {
			continue
		}
		cc := parseCacheDirectives(h)
		if v, ok := cc[directive]; ok {
			if v == "" {
				return time.Duration(1<<62 - 1), true
			}
			if s, ok := cc.seconds(directive); ok {
				return time.Duration(s) * time.Second, true
			}
		}
	}
	return 0, false
}

// MayReturnStaleIfError implements RFC 5861 §4: current_age - freshness <= N.
func (p *ValidityPolicy) MayReturnStaleIfError(reqHeader http.Header, e *CacheEntry, now time.Time) bool {
	window, ok := staleWindow(cacheControlStaleIfError, e.Header, reqHeader)
	if !ok {
		return false
	}
	overage := p.CurrentAge(e, now) - p.FreshnessLifetime(e)
	return overage <= window
}

// MayReturnStaleWhileRevalidating implements RFC 5861 §3: same inequality,
// gated on the stale-while-revalidate directive instead.
func (p *ValidityPolicy) MayReturnStaleWhileRevalidating(e *CacheEntry, now time.Time) bool {
	window, ok := staleWindow(cacheControlStaleWhileRevalidate, e.Header, nil)
	if !ok {
		return false
	}
	overage := p.CurrentAge(e, now) - p.FreshnessLifetime(e)
	return overage <= window
}

func parseNonNegativeSeconds(s string) (time.Duration, bool) {
	d, ok := (cacheDirectives{"v": s}).seconds("v")
	if !ok {
		return 0, false
	}
	return time.Duration(d) * time.Second, true
}
