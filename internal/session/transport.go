package session

import (
	"net/http"
	"time"
)

// Transport issues HTTP requests for the navigator. The live implementation
// is a plain *http.Client; tests inject a fake to exercise the walk without
// network access.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPTransport returns the live transport. The timeout bounds every
// request of the walk, including the landing-page load where an expiry is
// fatal for the query.
func NewHTTPTransport(timeout time.Duration) Transport {
	return &http.Client{Timeout: timeout}
}

// Browser-like request headers. The register rejects clients that do not
// look like an interactive browser. Accept-Encoding is left to net/http,
// which only decompresses gzip transparently when the header is unset.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.5 Safari/605.1.15",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-GB,en;q=0.9",
	"Connection":      "keep-alive",
}
