package citations

import (
	"context"
	"net/http"
	"testing"
)

// noFollowClient mirrors the resolver's default client shape: Resolve reads
// Location headers itself, so the injected client must not chase redirects.
func noFollowClient(transport roundTrip) *http.Client {
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestResolveUnwrapsRedirector(t *testing.T) {
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodHead {
			t.Errorf("expected HEAD probe, got %s", req.Method)
		}
		header := http.Header{}
		header.Set("Location", "https://www.example.com/article")
		return &http.Response{StatusCode: http.StatusFound, Header: header, Body: http.NoBody}, nil
	})
	resolver := NewResolver(WithHTTPClient(noFollowClient(transport)))

	final, ok := resolver.Resolve(context.Background(), "https://vertexaisearch.cloud.google.com/grounding-api-redirect/abc")
	if !ok {
		t.Fatalf("expected successful unwrap")
	}
	if final != "https://www.example.com/article" {
		t.Fatalf("unexpected final URL %q", final)
	}
}

func TestResolvePassesThroughTrueURL(t *testing.T) {
	resolver := NewResolver(WithHTTPClient(noFollowClient(func(req *http.Request) (*http.Response, error) {
		t.Errorf("no network call expected for a non-redirector URL")
		return nil, http.ErrUseLastResponse
	})))

	final, ok := resolver.Resolve(context.Background(), "https://example.org/page")
	if !ok || final != "https://example.org/page" {
		t.Fatalf("unexpected result %q %v", final, ok)
	}
}

func TestResolveGivesUpOnMissingLocation(t *testing.T) {
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: http.NoBody}, nil
	})
	resolver := NewResolver(WithHTTPClient(noFollowClient(transport)))

	raw := "https://vertexaisearch.cloud.google.com/grounding-api-redirect/abc"
	final, ok := resolver.Resolve(context.Background(), raw)
	if ok {
		t.Fatalf("unresolvable redirector should not report success")
	}
	if final != raw {
		t.Fatalf("last-known URL must be returned, got %q", final)
	}
}
