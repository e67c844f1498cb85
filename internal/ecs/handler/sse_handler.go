package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/ecs/sse"
	"github.com/jimp5978/dshi-field-app/internal/middleware"
	"go.uber.org/zap"
)

// SSEHandler 검사신청 상태 알림 스트림
type SSEHandler struct {
	hub       *sse.Hub
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewSSEHandler(hub *sse.Hub, logger *zap.Logger) *SSEHandler {
	return &SSEHandler{hub: hub, heartbeat: 30 * time.Second, logger: logger}
}

// Stream GET /api/events?token=xxx
func (h *SSEHandler) Stream(c *gin.Context) {
	userID := middleware.GetUserID(c)
	clientID := fmt.Sprintf("%d_%d", userID, time.Now().UnixNano())

	client := &sse.Client{
		ID:     clientID,
		UserID: userID,
		Events: make(chan sse.Event, 64),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(clientID)
	h.logger.Debug("sse connected", zap.String("client_id", clientID), zap.Uint("user_id", userID))

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteString("event: connected\ndata: {\"client_id\":\"" + clientID + "\"}\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", event.EventType, event.Data))
			c.Writer.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
