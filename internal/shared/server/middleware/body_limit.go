package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/server/respond"
)

// BodyLimit rejects request bodies larger than maxBytes with 413. Bodies with
// an unknown length are capped with http.MaxBytesReader.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			respond.Error(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "El cuerpo de la solicitud excede el tamaño permitido", gin.H{
				"max_bytes": maxBytes,
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
