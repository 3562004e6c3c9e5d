package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/telemetry"
)

// Logging emits one structured log line per request. Handlers may set
// "hojaId", "envioId" and "transition" on the context to enrich it.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if id := UserIDFromContext(c); id != 0 {
			fields["user_id"] = id
		}
		for _, key := range []string{"hojaId", "envioId", "transition"} {
			if v, ok := c.Get(key); ok {
				fields[key] = v
			}
		}
		telemetry.Info("http.request", fields)
	}
}
