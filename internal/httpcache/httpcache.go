// Package httpcache caches stats API responses in memory for the life of a
// run. The stats API sends no usable cache headers, so the TTL is forced on
// the client side.
package httpcache

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
)

// FromCacheHeader is set on responses served from the cache
const FromCacheHeader = httpcache.XFromCache

// NewTransport wraps base with an in-memory cache. Responses to requests
// accepted by cacheable are kept for ttl; everything else is marked
// no-store and always goes to the network.
func NewTransport(base http.RoundTripper, ttl time.Duration, cacheable func(*http.Request) bool) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if ttl <= 0 {
		return base
	}

	hc := httpcache.NewTransport(httpcache.NewMemoryCache())
	hc.MarkCachedResponses = true
	hc.Transport = &HeaderOverrideTransport{
		Wrapped: base,
		Response: func(resp *http.Response) error {
			resp.Header.Del("Pragma")
			resp.Header.Del("Expires")
			resp.Header.Del("Cache-Control")
			if resp.Request != nil && cacheable != nil && cacheable(resp.Request) {
				resp.Header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(ttl/time.Second)))
			} else {
				resp.Header.Set("Cache-Control", "no-store")
			}
			return nil
		},
	}
	return hc
}

// HeaderOverrideTransport applies Request and Response hooks around the
// wrapped transport.
type HeaderOverrideTransport struct {
	Request  func(req *http.Request)
	Response func(resp *http.Response) error

	Wrapped http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t *HeaderOverrideTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	if t.Request != nil {
		t.Request(req2)
	}

	wrapped := t.Wrapped
	if wrapped == nil {
		wrapped = http.DefaultTransport
	}

	resp, err := wrapped.RoundTrip(req2)
	if err != nil {
		return nil, err
	}

	if t.Response != nil {
		if err := t.Response(resp); err != nil {
			resp.Body.Close()
			return nil, err
		}
	}
	return resp, nil
}
