// Package httpcache implements an RFC 2616 / RFC 5861 conformant HTTP
// caching decorator that sits between an application-level HTTP client and
// a backend transport.
//
// The core of the package is [CacheOrchestrator], a state machine that
// decides, for every outbound request, whether to satisfy it from a local
// [CacheStore] of previously retrieved responses, to revalidate a stored
// [CacheEntry] conditionally, or to forward the request unconditionally; it
// then folds the backend's answer back into the store. The orchestrator is
// composed from smaller, independently testable policies:
// [ValidityPolicy] (freshness/age arithmetic), [RequestPolicy] and
// [ResponsePolicy] (cacheability gates), [SuitabilityChecker] (entry/request
// matching, including Vary negotiation and conditional-header matching),
// [ConditionalRequestBuilder] (If-None-Match / If-Modified-Since synthesis),
// [ResponseGenerator] (materializing stored entries into responses) and the
// compliance transforms in compliance.go.
//
// Storage and transport are external collaborators: [CacheStore] adapts a
// pluggable byte-oriented substrate (see the store subpackages) into the
// richer entry/variant model the orchestrator needs, and [Backend] is the
// single method the orchestrator uses to reach the network. Range/partial
// content responses are never cached; they pass through untouched.
package httpcache
