package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit caps JSON request bodies.
const DefaultBodyLimit = 10 << 20

// BodyLimit rejects request bodies larger than n bytes. Oversized bodies are
// refused up front when Content-Length says so; otherwise the bind fails with
// *http.MaxBytesError, which ErrorHandler renders as 413.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{Success: false, Message: "Request body too large"})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
