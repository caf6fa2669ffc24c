package httpapi

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"aigate.org/internal/auth"
)

var userColumns = []string{
	"id", "email", "password_hash", "full_name", "name",
	"department", "permissions", "is_active", "last_login",
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

type testGateway struct {
	*apiClient
	mock sqlmock.Sqlmock
	hash string
}

func newTestGateway(t *testing.T, opts ...Option) *testGateway {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	codec, err := auth.NewCodec("test-secret", "ai-assistant", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := auth.NewService(auth.NewPGStore(db), codec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	hash, err := auth.HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	api := New(svc, ReadyProbe{}, "test", append([]Option{WithRateLimit(100, 100)}, opts...)...)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &testGateway{
		apiClient: &apiClient{baseURL: srv.URL, client: srv.Client(), t: t},
		mock:      mock,
		hash:      hash,
	}
}

func (g *testGateway) userRows(email string) *sqlmock.Rows {
	return sqlmock.NewRows(userColumns).AddRow(
		"user-42", email, g.hash, "Dana Analyst",
		"analyst", sql.NullString{String: "research", Valid: true},
		[]byte(`["read:models"]`), true, sql.NullTime{},
	)
}

func (g *testGateway) expectUserRow(email string) {
	g.mock.ExpectQuery("select u.id").
		WithArgs(email).
		WillReturnRows(g.userRows(email))
	g.mock.ExpectExec("update users set last_login").
		WithArgs("user-42").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func (g *testGateway) obtainToken(email string) string {
	g.t.Helper()

	g.expectUserRow(email)
	resp := g.post("/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": "secret1",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		g.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	payload := decode[loginResponse](g.t, resp)
	if payload.Data.AccessToken == "" {
		g.t.Fatalf("empty access token issued")
	}
	return payload.Data.AccessToken
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode recorded body: %v", err)
	}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	gw := newTestGateway(t)

	resp := gw.get("/api/v1/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "healthy" || body["service"] != serviceName {
		t.Fatalf("unexpected health body: %+v", body)
	}
	if body["version"] != "test" {
		t.Fatalf("unexpected version: %v", body["version"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Fatalf("invalid timestamp: %v", err)
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	gw := newTestGateway(t)
	token := gw.obtainToken("dana@example.com")

	resp := gw.get("/api/v1/nope", nil, map[string]string{"Authorization": "Bearer " + token})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[errorResponse](t, resp)
	if body.Success || body.Error.Code != codeNotFound {
		t.Fatalf("unexpected error body: %+v", body)
	}
	if body.RequestID == "" {
		t.Fatalf("error envelope missing request id")
	}
}

// The gate runs before routing: a nonexistent path reveals nothing to
// unauthenticated callers.
func TestUnknownRouteRequiresToken(t *testing.T) {
	gw := newTestGateway(t)

	resp := gw.get("/api/v1/nope", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[errorResponse](t, resp)
	if body.Error.Code != codeUnauthorized {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestProtectedRouteRoundTrip(t *testing.T) {
	gw := newTestGateway(t)
	token := gw.obtainToken("dana@example.com")

	resp := gw.get("/api/v1/test", nil, map[string]string{"Authorization": "Bearer " + token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["message"] != "Protected route works!" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("missing user in body: %+v", body)
	}
	if user["id"] != "user-42" || user["role"] != "analyst" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if err := gw.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	gw := newTestGateway(t)

	resp := gw.get("/api/v1/test", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[errorResponse](t, resp)
	if body.Error.Code != codeUnauthorized || body.Error.Message != "No token provided" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestReadyEndpointReportsProbeFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	codec, err := auth.NewCodec("test-secret", "ai-assistant", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := auth.NewService(auth.NewPGStore(db), codec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	api := New(svc, ReadyProbe{DB: db}, "test")
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "not_ready" {
		t.Fatalf("unexpected body: %+v", body)
	}
}
