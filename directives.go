package httpcache

import (
	"net/http"
	"strconv"
	"strings"
)

// cacheDirectives is a parsed Cache-Control header: directive name to value
// (empty string for valueless directives such as "no-cache").
type cacheDirectives map[string]string

// parseCacheDirectives parses the Cache-Control header per RFC 9111 §4.2.1.
// Duplicate directives keep their first occurrence; the rest are logged and
// discarded. Malformed max-age/s-maxage values are logged and dropped so
// that callers see "directive absent" rather than a bogus duration.
func parseCacheDirectives(h http.Header) cacheDirectives {
	cc := cacheDirectives{}
	seen := map[string]bool{}

	for _, line := range h.Values("Cache-Control") {
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			directive, value, _ := strings.Cut(part, "=")
			directive = strings.ToLower(strings.TrimSpace(directive))
			value = strings.Trim(strings.TrimSpace(value), `"`)

			if seen[directive] {
				GetLogger().Warn("duplicate Cache-Control directive, keeping first value",
					"directive", directive, "ignored_value", value)
				continue
			}
			seen[directive] = true
			cc[directive] = value
		}
	}

	for _, d := range [...]string{cacheControlMaxAge, cacheControlSMaxAge} {
		if v, ok := cc[d]; ok && v != "" {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil || strings.Contains(v, ".") {
				GetLogger().Warn("invalid Cache-Control directive value, ignoring", "directive", d, "value", v)
				delete(cc, d)
			}
		}
	}

	return cc
}

func (cc cacheDirectives) has(name string) bool {
	_, ok := cc[name]
	return ok
}

// seconds returns the integer-seconds value of a directive, and whether it
// was present and parsed successfully.
func (cc cacheDirectives) seconds(name string) (int64, bool) {
	v, ok := cc[name]
	if !ok {
		return 0, false
	}
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
