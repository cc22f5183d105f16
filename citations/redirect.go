package citations

import (
	"net/url"
	"strings"
)

// Provider-internal redirector hosts. URLs pointing at these mask the true
// source; they are kept as-is with is_redirect=true and the domain recovered
// from elsewhere on the record.
var redirectorHosts = map[string]struct{}{
	"vertexaisearch.cloud.google.com": {},
}

var redirectorPrefixes = []string{
	"https://www.google.com/url",
	"https://google.com/url",
	"https://www.bing.com/ck/",
}

// IsRedirectorURL reports whether the URL points at a provider-internal
// redirector rather than the true source.
func IsRedirectorURL(raw string) bool {
	for _, prefix := range redirectorPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return true
		}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	if _, ok := redirectorHosts[host]; ok {
		return true
	}
	for h := range redirectorHosts {
		if strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// hostOf extracts a lowercased host from a URL, with the www prefix trimmed.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if h, _, found := strings.Cut(host, ":"); found {
		host = h
	}
	return strings.TrimPrefix(host, "www.")
}
