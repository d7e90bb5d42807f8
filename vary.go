package httpcache

import (
	"net/http"
	"sort"
	"strings"
)

// varyHeaderNames returns the canonical header names listed in a Vary
// response header, deduplicated, excluding "*" (handled specially by
// callers per RFC 9111 §4.1: a stored "Vary: *" never matches).
func varyHeaderNames(h http.Header) []string {
	var names []string
	seen := map[string]bool{}
	for _, line := range h.Values(headerVary) {
		for _, part := range strings.Split(line, ",") {
			name := http.CanonicalHeaderKey(strings.TrimSpace(part))
			if name == "" || name == "*" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func varyIsStar(h http.Header) bool {
	for _, line := range h.Values(headerVary) {
		for _, part := range strings.Split(line, ",") {
			if strings.TrimSpace(part) == "*" {
				return true
			}
		}
	}
	return false
}

// normalizeHeaderValue collapses whitespace so that equivalent values
// (e.g. "en, fr" and "en,fr") compare equal, per RFC 9111 §4.1's allowance
// for whitespace-insensitive matching.
func normalizeHeaderValue(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	prevSpace := false
	for _, r := range value {
		switch r {
		case ' ', '\t', '\n', '\r':
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.ReplaceAll(b.String(), ", ", ",")
}

// selectingHeaderValues captures, for each name in varyNames, the
// normalized value of that header on req.
func selectingHeaderValues(req *http.Request, varyNames []string) map[string]string {
	if len(varyNames) == 0 {
		return nil
	}
	out := make(map[string]string, len(varyNames))
	for _, name := range varyNames {
		out[name] = normalizeHeaderValue(req.Header.Get(name))
	}
	return out
}

// varyMatches reports whether a live request matches the selecting-header
// values an entry was stored under, per RFC 9111 §4.1.
func varyMatches(entry *CacheEntry, req *http.Request) bool {
	if varyIsStar(entry.Header) {
		return false
	}
	for name, storedValue := range entry.SelectingHeaders {
		if normalizeHeaderValue(req.Header.Get(name)) != storedValue {
			return false
		}
	}
	return true
}

// variantKey derives a deterministic key for a set of selecting-header
// values, suitable for use as the key into a CacheEntry.VariantMap.
func variantKey(baseKey string, varyNames []string, req *http.Request) string {
	if len(varyNames) == 0 {
		return baseKey
	}
	names := append([]string(nil), varyNames...)
	sort.Strings(names)
	var parts []string
	for _, name := range names {
		parts = append(parts, name+":"+normalizeHeaderValue(req.Header.Get(name)))
	}
	return baseKey + "|vary:" + strings.Join(parts, "|")
}
