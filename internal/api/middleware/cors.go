package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig lists the browser origins allowed to read the API
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         int
}

// CORSMiddleware answers preflight requests and tags allowed responses
type CORSMiddleware struct {
	config  CORSConfig
	headers map[string]bool
}

// NewCORSMiddleware creates a CORS middleware for the read-only API. An
// empty origin list allows none; "*" allows any; "*.example.com" allows
// subdomains.
func NewCORSMiddleware(config *CORSConfig) *CORSMiddleware {
	if len(config.AllowedMethods) == 0 {
		config.AllowedMethods = []string{http.MethodGet, http.MethodOptions}
	}
	if len(config.AllowedHeaders) == 0 {
		config.AllowedHeaders = []string{"Accept", "Content-Type", "Authorization", RequestIDHeader}
	}
	if len(config.ExposedHeaders) == 0 {
		config.ExposedHeaders = []string{RequestIDHeader, "X-Trace-ID",
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"}
	}
	if config.MaxAge == 0 {
		config.MaxAge = 86400
	}

	headers := make(map[string]bool, len(config.AllowedHeaders))
	for _, h := range config.AllowedHeaders {
		headers[strings.ToLower(h)] = true
	}
	return &CORSMiddleware{config: *config, headers: headers}
}

// Handler returns the middleware
func (c *CORSMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !c.allowed(origin) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Expose-Headers", strings.Join(c.config.ExposedHeaders, ", "))

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", strings.Join(c.config.AllowedMethods, ", "))
				h.Set("Access-Control-Allow-Headers", c.allowHeaders(r.Header.Get("Access-Control-Request-Headers")))
				h.Set("Access-Control-Max-Age", strconv.Itoa(c.config.MaxAge))
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c *CORSMiddleware) allowed(origin string) bool {
	for _, o := range c.config.AllowedOrigins {
		switch {
		case o == "*", o == origin:
			return true
		case strings.HasPrefix(o, "*.") && strings.HasSuffix(origin, o[1:]):
			return true
		}
	}
	return false
}

// allowHeaders echoes the requested headers when all are allowed, else
// lists the allowed set
func (c *CORSMiddleware) allowHeaders(requested string) string {
	if requested == "" {
		return strings.Join(c.config.AllowedHeaders, ", ")
	}
	for _, h := range strings.Split(requested, ",") {
		if !c.headers[strings.ToLower(strings.TrimSpace(h))] {
			return strings.Join(c.config.AllowedHeaders, ", ")
		}
	}
	return requested
}
