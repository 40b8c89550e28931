package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_TimeoutAndTransport(t *testing.T) {
	guard := NewOutboundGuard()
	client := guard.NewClient(5 * time.Second)

	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// TestNewClient_BlocksLoopback はhttptestサーバー（127.0.0.1）への送信が拒否されることを検証する。
func TestNewClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewOutboundGuard().NewClient(5 * time.Second)
	resp, err := client.Post(ts.URL, "application/json", nil)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected error for loopback webhook, got nil")
	}
}

func TestValidateURL_Allowed(t *testing.T) {
	guard := NewOutboundGuard()

	for _, u := range []string{
		"https://hooks.example.com/reset",
		"http://mailer.example.org/send",
		"https://hooks.example.com:443/reset",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestValidateURL_Rejected(t *testing.T) {
	guard := NewOutboundGuard()

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"no scheme", "hooks.example.com/reset"},
		{"ftp", "ftp://example.com/reset"},
		{"file", "file:///etc/passwd"},
		{"private 10/8", "http://10.0.0.1/hook"},
		{"private 172.16/12", "http://172.31.255.255/hook"},
		{"private 192.168/16", "http://192.168.1.100/hook"},
		{"loopback", "http://127.0.0.1/hook"},
		{"localhost", "http://localhost/hook"},
		{"sub localhost", "http://api.localhost/hook"},
		{"metadata", "http://169.254.169.254/latest/meta-data/"},
		{"zero", "http://0.0.0.0/hook"},
		{"ipv6 loopback", "http://[::1]/hook"},
		{"ipv6 unique local", "http://[fd00::1]/hook"},
		{"ipv4-mapped loopback", "http://[::ffff:127.0.0.1]/hook"},
		{"disallowed port", "https://hooks.example.com:8443/reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.url); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", tt.url)
			}
		})
	}
}

func TestValidateURL_CustomPorts(t *testing.T) {
	guard := NewOutboundGuard(8443)

	if err := guard.ValidateURL("https://hooks.example.com:8443/reset"); err != nil {
		t.Errorf("port 8443 should be allowed: %v", err)
	}
	if err := guard.ValidateURL("https://hooks.example.com:443/reset"); err == nil {
		t.Error("port 443 should be rejected when only 8443 is allowed")
	}
}
