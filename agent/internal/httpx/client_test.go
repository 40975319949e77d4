package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sensorlog/sensorlog/agent/internal/config"
)

func TestNewClient_AuthHeaders(t *testing.T) {
	t.Setenv("HTTPX_KEY", "k-123")
	t.Setenv("HTTPX_TOKEN", "t-456")
	t.Setenv("HTTPX_PASS", "p-789")

	tests := []struct {
		name   string
		auth   config.AuthConfig
		header string
		want   string
	}{
		{"apikey default header", config.AuthConfig{Mode: "apikey", KeyEnv: "HTTPX_KEY"}, "X-API-Key", "k-123"},
		{"apikey custom header", config.AuthConfig{Mode: "apikey", Header: "X-Device-Key", KeyEnv: "HTTPX_KEY"}, "X-Device-Key", "k-123"},
		{"bearer", config.AuthConfig{Mode: "bearer", TokenEnv: "HTTPX_TOKEN"}, "Authorization", "Bearer t-456"},
		{"basic", config.AuthConfig{Mode: "basic", Username: "dev", PasswordEnv: "HTTPX_PASS"}, "Authorization", "Basic ZGV2OnAtNzg5"},
		{"none", config.AuthConfig{Mode: "none"}, "Authorization", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = r.Header.Get(tc.header)
			}))
			defer srv.Close()

			client, err := NewClient(tc.auth, config.TLSConfig{}, time.Second)
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			resp, err := client.Get(srv.URL)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			resp.Body.Close()

			if got != tc.want {
				t.Errorf("%s = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}

func TestNewClient_MTLSMissingCert(t *testing.T) {
	_, err := NewClient(config.AuthConfig{Mode: "mtls", CertFile: "/nonexistent.pem", KeyFile: "/nonexistent.key"},
		config.TLSConfig{}, time.Second)
	if err == nil {
		t.Fatal("expected error for missing client cert")
	}
}
