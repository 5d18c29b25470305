package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# healthsync

Aggregates one user's daily health metrics from a Health Connect bridge and
keeps a rolling window snapshot fresh in the background.

## Routes

- GET /healthz
- GET /readyz
- GET /swagger/index.html
- GET /api/health/daily?date=YYYY-MM-DD
- GET /api/health/snapshot
- GET /api/health/permissions
- POST /api/health/permissions
- DELETE /api/health/permissions
- GET /api/health/stream (websocket)
- POST /api/sync/run
- POST /api/sync/events
- GET /api/sync/tasks
- GET /api/sync/state
- GET /api/sync/history

## Background events

POST /api/sync/events accepts {"task_id": "...", "timeout": false, "headless": false}.
Every accepted event is finished exactly once. A timeout event cancels the
running task with the same id and does no fetch work.
`)
	})
}
