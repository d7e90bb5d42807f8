package httpcache

import (
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ResilienceConfig holds the configuration for resilience policies applied
// around Backend dispatch. Disabled by default; set via WithResilience.
type ResilienceConfig struct {
	// RetryPolicy configures retry behavior using failsafe-go. Nil disables
	// retry.
	RetryPolicy retrypolicy.RetryPolicy[*http.Response]

	// CircuitBreaker configures circuit breaker behavior using failsafe-go.
	// Nil disables the breaker.
	CircuitBreaker circuitbreaker.CircuitBreaker[*http.Response]
}

// RetryPolicyBuilder returns a pre-configured retry policy builder:
// retries network errors and 5xx responses, up to 3 retries, exponential
// backoff from 100ms to 10s. Callers may further customize before Build().
func RetryPolicyBuilder() retrypolicy.Builder[*http.Response] {
	return retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithMaxRetries(3).
		WithBackoff(100*time.Millisecond, 10*time.Second)
}

// CircuitBreakerBuilder returns a pre-configured circuit breaker builder:
// opens on network errors or 5xx responses after 5 consecutive failures,
// half-opens after 60s, closes after 2 consecutive successes.
func CircuitBreakerBuilder() circuitbreaker.Builder[*http.Response] {
	return circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(60 * time.Second)
}

// ResilientBackend decorates a Backend with failsafe-go retry and/or
// circuit-breaker policies, so CacheOrchestrator's miss/revalidation
// dispatch benefits from them without the orchestrator itself knowing
// about failsafe-go.
type ResilientBackend struct {
	Backend Backend
	Config  *ResilienceConfig
}

func (b ResilientBackend) Execute(req *http.Request) (*http.Response, error) {
	if b.Config == nil {
		return b.Backend.Execute(req)
	}

	var policies []failsafe.Policy[*http.Response]
	if b.Config.RetryPolicy != nil {
		policies = append(policies, b.Config.RetryPolicy)
	}
	if b.Config.CircuitBreaker != nil {
		policies = append(policies, b.Config.CircuitBreaker)
	}
	if len(policies) == 0 {
		return b.Backend.Execute(req)
	}

	return failsafe.With(policies...).Get(func() (*http.Response, error) {
		return b.Backend.Execute(req)
	})
}
