package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:8080", "http://secure-proxy:8443", "localhost,.internal")

	tests := []struct {
		url  string
		want string
	}{
		{"http://en.wikipedia.org/w/api.php", "http://proxy:8080"},
		{"https://nominatim.openstreetmap.org/search", "http://secure-proxy:8443"},
		{"http://localhost:11434/api/generate", ""},
		{"https://cache.internal/x", ""},
	}

	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, tt.url, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s) error: %v", tt.url, err)
		}
		gotStr := ""
		if got != nil {
			gotStr = got.String()
		}
		if gotStr != tt.want {
			t.Errorf("proxy(%s) = %q, want %q", tt.url, gotStr, tt.want)
		}
	}
}
