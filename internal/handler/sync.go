package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"healthsync/internal/background"
	"healthsync/internal/service"
)

// EventDispatcher accepts background events for asynchronous delivery.
type EventDispatcher interface {
	Dispatch(ev background.Event) (string, error)
	Pending() []string
}

type SyncHandler struct {
	Service   *service.BackgroundSyncService
	Snapshots *service.SnapshotQueryService
	Events    EventDispatcher
	// HistoryLimit is the default page size of /history.
	HistoryLimit int
	Logger       *zap.Logger
}

func (h *SyncHandler) Register(r *gin.Engine) {
	group := r.Group("/api/sync")
	group.POST("/run", h.run)
	group.POST("/events", h.postEvent)
	group.GET("/tasks", h.listTasks)
	group.GET("/state", h.listState)
	group.GET("/history", h.listHistory)
}

type eventRequest struct {
	TaskID   string `json:"task_id"`
	Timeout  bool   `json:"timeout"`
	Headless bool   `json:"headless"`
}

// @Summary Run a background window sync now
// @Tags sync
// @Success 200 {object} apiResponse
// @Router /api/sync/run [post]
func (h *SyncHandler) run(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	result, err := h.Service.Sync(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("manual sync failed", zap.Error(err))
		}
		ErrorFrom(c, err)
		return
	}
	Ok(c, result, nil)
}

// @Summary Deliver a background fetch or headless event
// @Tags sync
// @Accept json
// @Param body body eventRequest true "event"
// @Success 202 {object} apiResponse
// @Router /api/sync/events [post]
func (h *SyncHandler) postEvent(c *gin.Context) {
	if h.Events == nil {
		Error(c, http.StatusInternalServerError, "background host unavailable", nil)
		return
	}
	var req eventRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid event: "+err.Error(), nil)
			return
		}
	}
	req.TaskID = strings.TrimSpace(req.TaskID)
	if req.Timeout && req.TaskID == "" {
		Error(c, http.StatusBadRequest, "timeout event requires task_id", nil)
		return
	}
	taskID, err := h.Events.Dispatch(background.Event{TaskID: req.TaskID, Timeout: req.Timeout, Headless: req.Headless})
	if err != nil {
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	c.JSON(http.StatusAccepted, apiResponse{
		Code:    0,
		Message: "accepted",
		Data:    gin.H{"task_id": taskID},
	})
}

// @Summary Running background tasks
// @Tags sync
// @Success 200 {object} apiResponse
// @Router /api/sync/tasks [get]
func (h *SyncHandler) listTasks(c *gin.Context) {
	if h.Events == nil {
		Error(c, http.StatusInternalServerError, "background host unavailable", nil)
		return
	}
	Ok(c, h.Events.Pending(), nil)
}

// @Summary List sync states
// @Tags sync
// @Success 200 {object} apiResponse
// @Router /api/sync/state [get]
func (h *SyncHandler) listState(c *gin.Context) {
	if h.Snapshots == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	states, err := h.Snapshots.States(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list sync state failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, states, nil)
}

// @Summary List completed sync windows
// @Tags sync
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/sync/history [get]
func (h *SyncHandler) listHistory(c *gin.Context) {
	if h.Snapshots == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	def := h.HistoryLimit
	if def <= 0 {
		def = 50
	}
	limit := intQuery(c, "limit", def)
	offset := intQuery(c, "offset", 0)
	items, err := h.Snapshots.History(c.Request.Context(), limit, offset)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, len(items)))
}
