package httpapi

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aigate.org/internal/auth"
	"aigate.org/internal/upstream"
)

func newProxyGateway(t *testing.T, target string, claims *auth.Claims) *apiClient {
	t.Helper()

	client, err := upstream.New("ai-service", target)
	if err != nil {
		t.Fatalf("upstream.New: %v", err)
	}

	api := New(&spyAuthn{claims: claims}, ReadyProbe{}, "test",
		WithRateLimit(100, 100),
		WithUpstream(client, "/api/v1/ai/"),
	)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{baseURL: srv.URL, client: srv.Client(), t: t}
}

func TestProxyPropagatesIdentityHeaders(t *testing.T) {
	var gotUserID, gotRole, gotRequestID, gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = r.Header.Get("X-User-ID")
		gotRole = r.Header.Get("X-User-Role")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(backend.Close)

	gw := newProxyGateway(t, backend.URL, &auth.Claims{
		UserID: "user-7",
		Email:  "sam@example.com",
		Role:   "admin",
	})

	resp := gw.get("/api/v1/ai/models", nil, map[string]string{
		"Authorization": "Bearer some-token",
		// Forged identity headers must not survive the hop.
		"X-User-ID":   "attacker",
		"X-User-Role": "superadmin",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if gotPath != "/api/v1/ai/models" {
		t.Fatalf("unexpected upstream path: %q", gotPath)
	}
	if gotUserID != "user-7" || gotRole != "admin" {
		t.Fatalf("identity headers wrong: user=%q role=%q", gotUserID, gotRole)
	}
	if gotRequestID == "" {
		t.Fatalf("request id not propagated")
	}
	if gotRequestID != resp.Header.Get("X-Request-ID") {
		t.Fatalf("upstream saw %q but client got %q", gotRequestID, resp.Header.Get("X-Request-ID"))
	}
}

// The proxy copies the upstream's Content-Length; the gzip layer must drop it
// or the recompressed body gets truncated mid-transfer.
func TestProxyBodySurvivesGzip(t *testing.T) {
	payload := `{"models":["alpha","beta","gamma"],"note":"` + strings.Repeat("x", 512) + `"}`
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(backend.Close)

	gw := newProxyGateway(t, backend.URL, &auth.Claims{UserID: "user-7", Role: "admin"})

	// Explicit Accept-Encoding disables the transport's transparent gunzip.
	resp := gw.get("/api/v1/ai/models", nil, map[string]string{
		"Authorization":   "Bearer some-token",
		"Accept-Encoding": "gzip",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("unexpected encoding: %q", got)
	}
	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("reading proxied body: %v", err)
	}
	if string(body) != payload {
		t.Fatalf("proxied body corrupted:\n got %q\nwant %q", body, payload)
	}
}

func TestProxyDeadUpstreamReturns502(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := backend.URL
	backend.Close()

	gw := newProxyGateway(t, target, &auth.Claims{UserID: "user-7", Role: "admin"})

	resp := gw.get("/api/v1/ai/models", nil, map[string]string{
		"Authorization": "Bearer some-token",
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[errorResponse](t, resp)
	if body.Error.Code != codeUpstreamError || body.Error.Message != "Upstream service unavailable" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestProxyRequiresToken(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unauthenticated request reached the upstream")
	}))
	t.Cleanup(backend.Close)

	gw := newProxyGateway(t, backend.URL, &auth.Claims{UserID: "user-7"})

	resp := gw.get("/api/v1/ai/models", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[errorResponse](t, resp)
	if body.Error.Code != codeUnauthorized {
		t.Fatalf("unexpected error body: %+v", body)
	}
}
