package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"aigate.org/internal/auth"
	"aigate.org/internal/obs"
	"aigate.org/internal/upstream"
)

const serviceName = "api-gateway"

// ReadyProbe reports whether the gateway can serve traffic: the credential
// store answers and the fronted services respond to their health endpoints.
type ReadyProbe struct {
	DB        *sql.DB
	Upstreams []*upstream.Client
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	for _, up := range rp.Upstreams {
		if err := up.CheckHealth(ctx); err != nil {
			return err
		}
	}
	return nil
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// API is the HTTP layer of the gateway.
type API struct {
	mux        *http.ServeMux
	authn      Authenticator
	readyProbe ReadyProbe
	version    string

	corsOrigins  []string
	maxBodyBytes int64
	rateBurst    int
	ratePerSec   int
	upstreams    []upstreamRoute
}

// Option adjusts API construction.
type Option func(*API)

// WithCORSOrigins sets the origins allowed by the CORS middleware.
func WithCORSOrigins(origins []string) Option {
	return func(a *API) { a.corsOrigins = origins }
}

// WithBodyLimit caps request body size.
func WithBodyLimit(maxBytes int64) Option {
	return func(a *API) {
		if maxBytes > 0 {
			a.maxBodyBytes = maxBytes
		}
	}
}

// WithRateLimit tunes the per-IP token bucket.
func WithRateLimit(burst, perSec int) Option {
	return func(a *API) {
		if burst > 0 && perSec > 0 {
			a.rateBurst = burst
			a.ratePerSec = perSec
		}
	}
}

// WithUpstream mounts a protected reverse proxy for an internal service under
// the given path prefix (must end with a slash).
func WithUpstream(client *upstream.Client, prefix string) Option {
	return func(a *API) {
		a.upstreams = append(a.upstreams, upstreamRoute{client: client, prefix: prefix})
	}
}

// New wires the route table. The handler chain itself is assembled in Handler.
func New(authn Authenticator, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:          http.NewServeMux(),
		authn:        authn,
		readyProbe:   rp,
		version:      version,
		corsOrigins:  []string{"http://localhost:3000"},
		maxBodyBytes: 1 << 20,
		rateBurst:    20,
		ratePerSec:   10,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/api/v1/health", a.handleHealth)
	a.mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/v1/test", a.handleTest)

	a.mux.HandleFunc("/healthz", a.handleHealth)
	a.mux.HandleFunc("/readyz", a.handleReady)
	a.mux.Handle("/metrics", obs.Handler())

	for _, route := range a.upstreams {
		a.mux.Handle(route.prefix, a.proxyHandler(route))
	}

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, r, http.StatusNotFound, codeNotFound, "Route not found")
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = Gzip(h)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return h
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) handleTest(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// The gate attaches identity before any protected handler runs.
		writeAPIError(w, r, http.StatusUnauthorized, codeUnauthorized, "No token provided")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Protected route works!",
		"user":    identity,
	})
}
