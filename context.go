package httpcache

import (
	"context"
	"sync"
)

type statusCtxKey struct{}

// statusBox is a mutable, last-write-wins holder installed once per request
// context so CacheOrchestrator.Execute can tag the outcome (spec.md §5:
// "last-write-wins" — Execute writes CacheMiss first and overwrites it once
// the outcome is known; a box lets any internal branch record the outcome
// without threading a return value through every branch).
type statusBox struct {
	mu      sync.Mutex
	status  CacheResponseStatus
	written bool
}

// NewContext returns a context carrying a fresh, unset response-status box.
// CacheOrchestrator.Execute calls this internally if the supplied context
// doesn't already carry one, so callers normally don't need it directly.
func NewContext(parent context.Context) context.Context {
	return context.WithValue(parent, statusCtxKey{}, &statusBox{})
}

func ensureStatusBox(ctx context.Context) (context.Context, *statusBox) {
	if b, ok := ctx.Value(statusCtxKey{}).(*statusBox); ok {
		return ctx, b
	}
	b := &statusBox{}
	return context.WithValue(ctx, statusCtxKey{}, b), b
}

func setResponseStatus(ctx context.Context, status CacheResponseStatus) {
	b, ok := ctx.Value(statusCtxKey{}).(*statusBox)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
	b.written = true
}

// ResponseStatus retrieves the CacheResponseStatus tagged onto ctx by the
// most recent CacheOrchestrator.Execute call, if any.
func ResponseStatus(ctx context.Context) (CacheResponseStatus, bool) {
	b, ok := ctx.Value(statusCtxKey{}).(*statusBox)
	if !ok {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status, b.written
}
