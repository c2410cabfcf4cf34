package server

import (
	"net/http"
	"net/url"
	"slices"
)

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Traceparent")
			h.Set("Access-Control-Expose-Headers", "X-Correlation-ID")
			if origin != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (s *Server) allowOrigin(origin string) string {
	allowed := *s.cors.Load()
	switch {
	case slices.Contains(allowed, "*"):
		return "*"
	case origin != "" && slices.Contains(allowed, origin):
		return origin
	default:
		return ""
	}
}

// originPatterns converts the allowed origins into WebSocket origin
// patterns, which match on host only.
func (s *Server) originPatterns() []string {
	allowed := *s.cors.Load()
	out := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
