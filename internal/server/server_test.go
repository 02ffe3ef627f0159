package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/abelsonz/rideunited/internal/config"
	"github.com/abelsonz/rideunited/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.Config{
		JWTSecret:     "secret",
		ServerPort:    ":0",
		AdminPassword: "test-admin-pw",
	}
	return NewServer(cfg, nil, redis.NewClient(&redis.Options{Addr: mr.Addr()}), storage.NewMemory())
}

func TestHealthRoute(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/admin/routes/pending", "/admin/routes/approved", "/admin/contact/submissions"} {
		req := httptest.NewRequest("GET", path, nil)
		resp, err := s.App.Test(req)
		if err != nil {
			t.Fatalf("test request %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestAdminLoginThenModerationAccess(t *testing.T) {
	s := newTestServer(t)

	payload, _ := json.Marshal(map[string]string{"password": "test-admin-pw"})
	req := httptest.NewRequest("POST", "/admin/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	req = httptest.NewRequest("GET", "/admin/routes/pending", nil)
	req.Header.Set("X-Admin-Token", out.Token)
	resp, err = s.App.Test(req)
	if err != nil {
		t.Fatalf("pending request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending status = %d", resp.StatusCode)
	}
}

func TestPublicRoutesAvailable(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.App.Test(httptest.NewRequest("GET", "/routes", nil))
	if err != nil {
		t.Fatalf("routes request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("routes status = %d", resp.StatusCode)
	}

	resp, err = s.App.Test(httptest.NewRequest("GET", "/chat/ride-1", nil))
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
}
