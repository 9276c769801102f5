package workers

import (
	"context"
	"testing"
	"time"
)

func TestNewFetcher_Defaults(t *testing.T) {
	f := NewFetcher(0, "", 0)

	if f.client.Timeout != defaultFetchTimeout {
		t.Errorf("timeout = %v, want %v", f.client.Timeout, defaultFetchTimeout)
	}
	if f.userAgent != defaultUserAgent {
		t.Errorf("userAgent = %q, want %q", f.userAgent, defaultUserAgent)
	}
	if f.maxBytes != defaultMaxPageBytes {
		t.Errorf("maxBytes = %d, want %d", f.maxBytes, defaultMaxPageBytes)
	}
}

// FetchPage screens URLs before any connection is attempted, so unsafe
// targets fail fast without touching the network.
func TestFetchPage_RejectsUnsafeURLs(t *testing.T) {
	f := NewFetcher(time.Second, "", 0)

	tests := []struct {
		name string
		url  string
	}{
		{"plain http", "http://example.com/doc"},
		{"localhost", "https://localhost:9000/admin"},
		{"private IP", "https://10.0.0.8/metadata"},
		{"internal domain", "https://vault.internal/secrets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.FetchPage(context.Background(), tt.url); err == nil {
				t.Errorf("FetchPage(%q) should have been rejected", tt.url)
			}
		})
	}
}
