package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"healthsync/internal/service"
)

const (
	streamBuffer       = 8
	streamWriteTimeout = 5 * time.Second
)

type streamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StreamHub pushes every completed sync window to connected websocket clients.
// Slow clients drop messages rather than block the sync.
type StreamHub struct {
	Logger *zap.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewStreamHub(logger *zap.Logger) *StreamHub {
	return &StreamHub{Logger: logger, subs: map[chan []byte]struct{}{}}
}

func (h *StreamHub) Register(r *gin.Engine) {
	r.GET("/api/health/stream", h.stream)
}

func (h *StreamHub) Publish(result service.SyncResult) {
	payload, err := json.Marshal(streamMessage{Type: "sync", Data: result})
	if err != nil {
		h.warn("encode stream message failed", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
			h.warn("stream subscriber lagging, message dropped")
		}
	}
}

// Subscribers reports the number of connected clients.
func (h *StreamHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *StreamHub) subscribe() (chan []byte, func()) {
	ch := make(chan []byte, streamBuffer)
	h.mu.Lock()
	if h.subs == nil {
		h.subs = map[chan []byte]struct{}{}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// @Summary Stream completed sync windows (websocket)
// @Tags health-data
// @Router /api/health/stream [get]
func (h *StreamHub) stream(c *gin.Context) {
	conn, err := websocket.Accept(upgradeWriter{w: c.Writer}, c.Request, nil)
	if err != nil {
		h.warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ch, unsubscribe := h.subscribe()
	defer unsubscribe()

	// Clients never send; CloseRead handles control frames and cancels ctx on close.
	ctx := conn.CloseRead(c.Request.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case payload := <-ch:
			wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				h.warn("stream write failed", zap.Error(err))
				return
			}
		}
	}
}

// upgradeWriter sends the 101 status straight to net/http and hijacks through
// gin. gin refuses a hijack once a status is flushed, and the websocket
// handshake flushes one through any writer exposing WriteHeaderNow.
type upgradeWriter struct {
	w gin.ResponseWriter
}

func (u upgradeWriter) Header() http.Header { return u.w.Header() }

func (u upgradeWriter) Write(b []byte) (int, error) { return u.w.Write(b) }

func (u upgradeWriter) WriteHeader(code int) {
	if raw, ok := u.w.(interface{ Unwrap() http.ResponseWriter }); ok && code == http.StatusSwitchingProtocols {
		raw.Unwrap().WriteHeader(code)
		return
	}
	u.w.WriteHeader(code)
}

func (u upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return u.w.Hijack()
}

func (h *StreamHub) warn(msg string, fields ...zap.Field) {
	if h.Logger != nil {
		h.Logger.Warn(msg, fields...)
	}
}

var _ service.SnapshotPublisher = (*StreamHub)(nil)
