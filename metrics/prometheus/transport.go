package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arjunvale/httpcache"
	"github.com/arjunvale/httpcache/metrics"
)

// InstrumentedRoundTripper wraps an httpcache.RoundTripper with Prometheus
// metrics, recording the CacheResponseStatus CacheOrchestrator.Execute tags
// onto each request's context.
type InstrumentedRoundTripper struct {
	underlying *httpcache.RoundTripper
	collector  metrics.Collector
}

// NewInstrumentedRoundTripper creates a new instrumented round tripper that
// records metrics for all HTTP requests.
//
// Parameters:
//   - rt: the underlying httpcache.RoundTripper to wrap
//   - collector: the metrics collector (if nil, uses metrics.DefaultCollector)
func NewInstrumentedRoundTripper(rt *httpcache.RoundTripper, collector metrics.Collector) *InstrumentedRoundTripper {
	if collector == nil {
		collector = metrics.DefaultCollector
	}
	return &InstrumentedRoundTripper{underlying: rt, collector: collector}
}

// RoundTrip executes an HTTP request with metrics recording.
func (t *InstrumentedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.underlying.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		return resp, err
	}

	cacheStatus := "miss"
	if resp.Request != nil {
		if status, ok := httpcache.ResponseStatus(resp.Request.Context()); ok {
			switch status {
			case httpcache.CacheHit:
				cacheStatus = "hit"
			case httpcache.Validated:
				cacheStatus = "revalidated"
			case httpcache.CacheModuleResponse:
				cacheStatus = "bypass"
			}
		}
	}

	t.collector.RecordHTTPRequest(req.Method, cacheStatus, resp.StatusCode, duration)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if size, perr := strconv.ParseInt(cl, 10, 64); perr == nil {
			t.collector.RecordHTTPResponseSize(cacheStatus, size)
		}
	}
	return resp, nil
}

// Client returns an HTTP client using the instrumented round tripper.
func (t *InstrumentedRoundTripper) Client() *http.Client {
	return &http.Client{Transport: t}
}

var _ http.RoundTripper = (*InstrumentedRoundTripper)(nil)
