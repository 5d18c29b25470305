package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"healthsync/internal/health"
	"healthsync/internal/service"
)

type HealthDataHandler struct {
	Pipeline    *service.DailyPipeline
	Permissions *service.PermissionService
	Snapshots   *service.SnapshotQueryService
	Location    *time.Location
	Logger      *zap.Logger
	Now         func() time.Time
}

func (h *HealthDataHandler) Register(r *gin.Engine) {
	group := r.Group("/api/health")
	group.GET("/daily", h.daily)
	group.GET("/snapshot", h.snapshot)
	group.GET("/permissions", h.getPermissions)
	group.POST("/permissions", h.grantPermissions)
	group.DELETE("/permissions", h.revokePermissions)
}

// @Summary Daily health snapshot
// @Tags health-data
// @Param date query string false "calendar date YYYY-MM-DD (default today)"
// @Success 200 {object} apiResponse
// @Failure 403 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/health/daily [get]
func (h *HealthDataHandler) daily(c *gin.Context) {
	if h.Pipeline == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	loc := h.location()
	date, ok := dateQuery(c, "date", loc, h.now())
	if !ok {
		Error(c, http.StatusBadRequest, "invalid date, want YYYY-MM-DD", nil)
		return
	}
	snap, err := h.Pipeline.Run(c.Request.Context(), date)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("daily health fetch failed",
				zap.String("date", date.Format(time.DateOnly)),
				zap.String("code", string(health.Classify(err))),
				zap.Error(err),
			)
		}
		ErrorFrom(c, err)
		return
	}
	Ok(c, snap, map[string]any{"date": date.Format(time.DateOnly), "timezone": loc.String()})
}

// @Summary Last background window snapshot
// @Tags health-data
// @Success 200 {object} apiResponse
// @Router /api/health/snapshot [get]
func (h *HealthDataHandler) snapshot(c *gin.Context) {
	if h.Snapshots == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	latest, err := h.Snapshots.Latest(c.Request.Context())
	if err != nil {
		ErrorFrom(c, err)
		return
	}
	Ok(c, latest, nil)
}

// @Summary Permission state
// @Tags health-data
// @Success 200 {object} apiResponse
// @Router /api/health/permissions [get]
func (h *HealthDataHandler) getPermissions(c *gin.Context) {
	if h.Permissions == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	Ok(c, gin.H{"granted": h.Permissions.Check(c.Request.Context())}, nil)
}

// @Summary Request read access to all record types
// @Tags health-data
// @Success 200 {object} apiResponse
// @Failure 403 {object} apiResponse
// @Router /api/health/permissions [post]
func (h *HealthDataHandler) grantPermissions(c *gin.Context) {
	if h.Permissions == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	if err := h.Permissions.Grant(c.Request.Context()); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("permission grant failed", zap.Error(err))
		}
		ErrorFrom(c, err)
		return
	}
	Ok(c, gin.H{"granted": true}, nil)
}

// @Summary Clear the stored permission flag
// @Tags health-data
// @Success 200 {object} apiResponse
// @Router /api/health/permissions [delete]
func (h *HealthDataHandler) revokePermissions(c *gin.Context) {
	if h.Permissions == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	if err := h.Permissions.Revoke(c.Request.Context()); err != nil {
		ErrorFrom(c, err)
		return
	}
	Ok(c, gin.H{"granted": false}, nil)
}

func (h *HealthDataHandler) location() *time.Location {
	if h.Location == nil {
		return time.Local
	}
	return h.Location
}

func (h *HealthDataHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}
