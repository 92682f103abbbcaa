package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/smokedb/component"
	"github.com/kbukum/smokedb/config"
	apperrors "github.com/kbukum/smokedb/errors"
	"github.com/kbukum/smokedb/logger"
	"github.com/kbukum/smokedb/security"
	"github.com/kbukum/smokedb/security/tlstest"
)

func newTestServer(t *testing.T, checker func(context.Context) []component.Health) *Server {
	t.Helper()
	cfg := config.HTTPConfig{Addr: "127.0.0.1:0", Mode: gin.TestMode}
	cfg.ApplyDefaults()
	s := New(cfg, logger.Nop())
	s.ApplyDefaults("smokedb", checker)
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		health []component.Health
		code   int
		status string
	}{
		{"healthy", []component.Health{{Name: "db", Status: component.StatusHealthy}}, http.StatusOK, "healthy"},
		{"degraded", []component.Health{{Name: "db", Status: component.StatusDegraded}}, http.StatusOK, "degraded"},
		{"unhealthy", []component.Health{
			{Name: "db", Status: component.StatusUnhealthy},
			{Name: "cache", Status: component.StatusDegraded},
		}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, func(context.Context) []component.Health { return tc.health })
			rr := get(t, s.Handler(), "/healthz")
			if rr.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rr.Code)
			}
			var body struct {
				Status string `json:"status"`
			}
			_ = json.Unmarshal(rr.Body.Bytes(), &body)
			if body.Status != tc.status {
				t.Errorf("expected status %s, got %s", tc.status, body.Status)
			}

			ready := get(t, s.Handler(), "/readyz")
			if (ready.Code == http.StatusOK) != (tc.status != "unhealthy") {
				t.Errorf("readiness %d disagrees with health %s", ready.Code, tc.status)
			}
		})
	}
}

func TestInfoEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rr := get(t, s.Handler(), "/info")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["service"] != "smokedb" || body["version"] == "" {
		t.Errorf("unexpected info %v", body)
	}
}

func TestHandlerAddsRequestID(t *testing.T) {
	s := newTestServer(t, nil)
	if rr := get(t, s.Handler(), "/livez"); rr.Header().Get("X-Request-Id") == "" {
		t.Error("expected a request id on every response")
	}
}

func TestRespondWithError(t *testing.T) {
	s := newTestServer(t, nil)
	s.GinEngine().GET("/missing", func(c *gin.Context) {
		RespondWithError(c, apperrors.RecordNotFound("users", "k1"))
	})
	s.GinEngine().GET("/plain", func(c *gin.Context) {
		RespondWithError(c, context.DeadlineExceeded)
	})

	rr := get(t, s.Handler(), "/missing")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	var body apperrors.ErrorResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Error.Code != apperrors.ErrCodeRecordNotFound {
		t.Errorf("expected RECORD_NOT_FOUND, got %s", body.Error.Code)
	}

	if rr := get(t, s.Handler(), "/plain"); rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for a plain error, got %d", rr.Code)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t, nil)
	c := NewComponent(s)
	ctx := context.Background()

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %+v", h)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/livez")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from a live server, got %d", resp.StatusCode)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy after start, got %+v", h)
	}
	if d := c.Describe(); d.Details != s.Addr() {
		t.Errorf("expected the bound address, got %q", d.Details)
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestStartTLS(t *testing.T) {
	certs := tlstest.Generate(t)
	cfg := config.HTTPConfig{Addr: "127.0.0.1:0", Mode: gin.TestMode}
	cfg.ApplyDefaults()
	cfg.TLS = security.TLSConfig{CertFile: certs.CertFile, KeyFile: certs.KeyFile, ClientCAFile: certs.CAFile}
	s := New(cfg, logger.Nop())
	s.ApplyDefaults("smokedb", nil)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop(ctx)

	client := func(withCert bool) *http.Client {
		tlsCfg := &tls.Config{RootCAs: certs.Pool, MinVersion: tls.VersionTLS12}
		if withCert {
			tlsCfg.Certificates = []tls.Certificate{certs.Client}
		}
		return &http.Client{Transport: &http.Transport{TLSClientConfig: tlsCfg}}
	}

	resp, err := client(true).Get("https://" + s.Addr() + "/livez")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 over mutual TLS, got %d", resp.StatusCode)
	}

	if resp, err := client(false).Get("https://" + s.Addr() + "/livez"); err == nil {
		resp.Body.Close()
		t.Error("expected the handshake to fail without a client certificate")
	}
}

func TestStartTLS_BadCertificate(t *testing.T) {
	cfg := config.HTTPConfig{Addr: "127.0.0.1:0", Mode: gin.TestMode}
	cfg.ApplyDefaults()
	cfg.TLS = security.TLSConfig{CertFile: "/missing.crt", KeyFile: "/missing.key"}
	s := New(cfg, logger.Nop())
	if err := s.Start(context.Background()); err == nil {
		_ = s.Stop(context.Background())
		t.Fatal("expected start to fail")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("a server that failed to start should stop cleanly, got %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	if err := newTestServer(t, nil).Stop(context.Background()); err != nil {
		t.Errorf("stopping an unstarted server should be a no-op, got %v", err)
	}
}

func TestRoutesOrder(t *testing.T) {
	s := newTestServer(t, nil)
	noop := func(*gin.Context) {}
	s.GinEngine().DELETE("/stores/:store/records/:key", noop)
	s.GinEngine().GET("/stores/:store/records/:key", noop)
	s.GinEngine().GET("/stores", noop)

	routes := NewComponent(s).Routes()
	if len(routes) < 3 {
		t.Fatalf("expected routes, got %v", routes)
	}
	want := []component.Route{
		{Method: "GET", Path: "/stores"},
		{Method: "GET", Path: "/stores/:store/records/:key"},
		{Method: "DELETE", Path: "/stores/:store/records/:key"},
	}
	for i, r := range want {
		if routes[i] != r {
			t.Errorf("route %d: expected %v, got %v", i, r, routes[i])
		}
	}
	if last := routes[len(routes)-1]; !systemPaths[last.Path] {
		t.Errorf("expected system routes last, got %v", last)
	}
}
