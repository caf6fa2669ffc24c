package httpapi

import (
	"net/http"
	"net/http/httputil"

	"aigate.org/internal/auth"
	"aigate.org/internal/obs"
	"aigate.org/internal/upstream"
)

type upstreamRoute struct {
	client *upstream.Client
	prefix string
}

// proxyHandler forwards protected traffic to an internal service, propagating
// the authenticated identity and the request id as headers. Paths are kept
// as-is; upstreams serve the same /api/v1 namespace.
func (a *API) proxyHandler(route upstreamRoute) http.Handler {
	target := route.client.Target()
	proxy := httputil.NewSingleHostReverseProxy(target)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
		// Clients must not be able to forge these.
		req.Header.Del("X-User-ID")
		req.Header.Del("X-User-Role")
		if identity, ok := auth.IdentityFromContext(req.Context()); ok {
			req.Header.Set("X-User-ID", identity.UserID)
			req.Header.Set("X-User-Role", identity.Role)
		}
		if rid := RequestIDFromContext(req.Context()); rid != "" {
			req.Header.Set("X-Request-ID", rid)
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		obs.LogError("upstream proxy failed", err, map[string]any{
			"upstream": route.client.Name(),
			"path":     r.URL.Path,
		})
		writeAPIError(w, r, http.StatusBadGateway, codeUpstreamError, "Upstream service unavailable")
	}
	return proxy
}
