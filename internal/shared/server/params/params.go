// Package params parses path and query values for handlers.
package params

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ID parses a positive integer path parameter.
func ID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// QueryInt returns the integer query value or def when absent or malformed.
func QueryInt(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// QueryInt64 returns the int64 query value, or zero when absent or malformed.
func QueryInt64(c *gin.Context, name string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(c.Query(name)), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// QueryBool reports whether the query value is "true" or "1".
func QueryBool(c *gin.Context, name string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(name))) {
	case "true", "1", "si", "yes":
		return true
	}
	return false
}

// Page clamps limite/offset query values.
func Page(c *gin.Context, defLimit, maxLimit int) (limit, offset int) {
	limit = QueryInt(c, "limite", QueryInt(c, "limit", defLimit))
	if limit <= 0 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = QueryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
