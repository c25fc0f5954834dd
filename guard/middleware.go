package guard

import (
	"net/http"
	"net/url"
	"strings"
)

// RequestOrigin returns the origin a request executes in: the Origin
// header, else the origin of the Referer. It is empty when neither is
// usable.
func RequestOrigin(r *http.Request) string {
	if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" && origin != "null" {
		return origin
	}
	if referer := r.Header.Get("Referer"); referer != "" {
		if u, err := url.Parse(referer); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	return ""
}

// Middleware applies the guard to an HTTP handler.
func (g *Guard) Middleware(extra ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch g.Check(RequestOrigin(r), extra...) {
			case Allowed:
				next(w, r)
			case Denied:
				http.Error(w, AccessDenied, http.StatusForbidden)
			default:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Service starting", http.StatusServiceUnavailable)
			}
		}
	}
}
