package httpcache

import "net/http"

// RoundTripper adapts a CacheOrchestrator to http.RoundTripper, so it can
// be dropped into any *http.Client as a transparent caching layer.
type RoundTripper struct {
	Orchestrator *CacheOrchestrator
}

// NewRoundTripper builds an orchestrator from opts and returns a
// RoundTripper wrapping it. rt, if non-nil, is used as the underlying
// Backend in place of whatever WithBackend/WithRoundTripper option was
// passed; pass nil to rely entirely on the options.
func NewRoundTripper(rt http.RoundTripper, opts ...ConfigOption) (*RoundTripper, error) {
	if rt != nil {
		opts = append(opts, WithRoundTripper(rt))
	}
	cfg, err := NewCacheConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &RoundTripper{Orchestrator: NewCacheOrchestrator(cfg)}, nil
}

// RoundTrip implements http.RoundTripper by delegating to
// CacheOrchestrator.Execute.
func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.Orchestrator.Execute(req.URL, req)
}

// Client returns an *http.Client using this RoundTripper.
func (t *RoundTripper) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Close stops the orchestrator's background revalidation workers.
func (t *RoundTripper) Close() {
	t.Orchestrator.Close()
}
