package citations

import (
	"context"
	"net/http"
	"time"

	"github.com/contestra/ai-ranker-v2-sub003/internal/httpclient"
)

const maxRedirectHops = 3

// Resolver unwraps provider redirector URLs over the network. It issues HEAD
// requests without following redirects itself, walking Location headers for
// a bounded number of hops. Every call is governed by the caller's context;
// the classifier supplies the batch deadline.
type Resolver struct {
	client *http.Client
}

// ResolverOption mutates resolver construction.
type ResolverOption func(*Resolver)

// WithHTTPClient overrides the HTTP client used for HEAD probes.
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) { r.client = client }
}

// NewResolver constructs a Resolver with a short-timeout client.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = httpclient.New(
			httpclient.WithTimeout(5*time.Second),
			httpclient.WithoutRedirects(),
		)
	}
	return r
}

// Resolve follows redirector hops until it reaches a non-redirector URL or
// runs out of budget. It returns the last URL reached and whether that URL
// is a true (non-redirector) source.
func (r *Resolver) Resolve(ctx context.Context, raw string) (string, bool) {
	current := raw
	for hop := 0; hop < maxRedirectHops; hop++ {
		if !IsRedirectorURL(current) {
			return current, true
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			return current, false
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return current, false
		}
		resp.Body.Close()
		location := resp.Header.Get("Location")
		if location == "" || resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return current, false
		}
		current = location
	}
	return current, !IsRedirectorURL(current)
}
