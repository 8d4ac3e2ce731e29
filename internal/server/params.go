package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// snowflakeParam validates a path id without resolving it; services own
// the existence check.
func snowflakeParam(c *gin.Context, name string) (string, error) {
	value := strings.TrimSpace(c.Param(name))
	if _, err := snowflake.ParseString(value); err != nil {
		return "", newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return value, nil
}

// limitQuery reads the optional ?limit= parameter. Zero means the
// service default.
func limitQuery(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, newValidationError("limit", "invalid_limit", "invalid limit")
	}
	return limit, nil
}
