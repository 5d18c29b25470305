package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"healthsync/internal/health"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// ErrorFrom writes err with the status of its category.
func ErrorFrom(c *gin.Context, err error) {
	code := health.Classify(err)
	Error(c, statusFor(code), err.Error(), map[string]any{"error_code": code})
}

func statusFor(code health.Code) int {
	switch code {
	case health.CodePermission:
		return http.StatusForbidden
	case health.CodeInitialization:
		return http.StatusServiceUnavailable
	case health.CodeTransientIO:
		return http.StatusBadGateway
	case health.CodeCancel:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

// dateQuery parses key as YYYY-MM-DD in loc; empty means today.
func dateQuery(c *gin.Context, key string, loc *time.Location, now time.Time) (time.Time, bool) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return now.In(loc), true
	}
	d, err := time.ParseInLocation(time.DateOnly, val, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func paginationMeta(limit, offset, count int) map[string]any {
	return map[string]any{
		"limit":  limit,
		"offset": offset,
		"count":  count,
	}
}
