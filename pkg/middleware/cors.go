package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

// Origins is a CORS allowlist; "*" admits every origin.
type Origins []string

// ParseOrigins splits a comma separated allowlist. An empty value means "*".
func ParseOrigins(s string) Origins {
	var out Origins
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return Origins{"*"}
	}
	return out
}

func (o Origins) wildcard() bool {
	for _, v := range o {
		if v == "*" {
			return true
		}
	}
	return false
}

// Allowed reports whether a request from origin may be served. Requests
// without an Origin header are always allowed.
func (o Origins) Allowed(origin string) bool {
	if origin == "" || o.wildcard() {
		return true
	}
	for _, v := range o {
		if strings.EqualFold(v, origin) {
			return true
		}
	}
	return false
}

// CORS answers preflight requests and sets the CORS response headers for allowed
// origins. Credentials are allowed only with an explicit allowlist. Bare OPTIONS
// requests end with 204.
func CORS(origins Origins) gin.HandlerFunc {
	policy := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept"},
		ExposedHeaders:   []string{"Content-Length", "RateLimit-Limit", "RateLimit-Remaining", "Retry-After"},
		AllowCredentials: !origins.wildcard(),
		MaxAge:           300,
	})
	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
		})
		policy.Handler(next).ServeHTTP(c.Writer, c.Request)
		switch {
		case !passed:
			// preflight, already answered
			c.Abort()
		case c.Request.Method == http.MethodOptions:
			c.AbortWithStatus(http.StatusNoContent)
		default:
			c.Next()
		}
	}
}
