package respond

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/telemetry"
)

var exposeInternal atomic.Bool

// ExposeInternalErrors controls whether 500 responses carry the error text.
// It is enabled outside production.
func ExposeInternalErrors(enabled bool) {
	exposeInternal.Store(enabled)
}

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID, ok := c.Get("userId"); ok {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// Internal logs err and sends a 500. The error text is only returned when
// ExposeInternalErrors is enabled.
func Internal(c *gin.Context, message string, err error) {
	var details interface{}
	if err != nil {
		telemetry.Error("http.internal", map[string]any{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString("requestId"),
			"error":      err,
		})
		if exposeInternal.Load() {
			details = err.Error()
		}
	}
	Error(c, http.StatusInternalServerError, "INTERNAL", message, details)
}
