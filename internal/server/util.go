package server

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loykin/curator/internal/apperr"
)

const msgBadID = "Invalid input: id must be a positive integer"

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	bp = strings.TrimRight(bp, "/")
	return bp
}

// parseID reads the :id path parameter. Zero, negative and non-numeric
// values are rejected.
func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidArgument(msgBadID)
	}
	return id, nil
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}

// writeError renders err in the uniform error shape.
func writeError(c *gin.Context, err error) {
	status, body := apperr.Translate(err)
	writeJSON(c, status, body)
}
