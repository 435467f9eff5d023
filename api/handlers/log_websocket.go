package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/pkg/logger"
)

// LogWebSocketHandler handles WebSocket connections for real-time log streaming
type LogWebSocketHandler struct {
	logReader *logger.LogReader
	logger    *zap.Logger
}

// NewLogWebSocketHandler creates a new WebSocket handler
func NewLogWebSocketHandler(logsDir string, log *zap.Logger) *LogWebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogWebSocketHandler{
		logReader: logger.NewLogReader(logsDir),
		logger:    log,
	}
}

// HandleWebSocket handles GET /api/v1/logs/ws?category=fetch
func (h *LogWebSocketHandler) HandleWebSocket(c *gin.Context) {
	category := logger.LogCategory(c.DefaultQuery("category", string(logger.CategoryFetch)))
	if !logger.ValidCategory(category) {
		respondInvalid(c, "invalid category")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("WebSocket client connected",
		zap.String("category", string(category)),
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Send the last 50 entries first
	entries, err := h.logReader.ReadLogs(category, time.Now(), 50)
	if err == nil {
		for _, entry := range entries {
			if err := conn.WriteJSON(entry); err != nil {
				h.logger.Debug("Failed to send initial logs", zap.Error(err))
				return
			}
		}
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Read messages from client so close frames are noticed
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	entryChan := make(chan logger.LogEntry, 100)
	go func() {
		if err := h.logReader.TailLogs(ctx, category, entryChan); err != nil {
			h.logger.Error("Log tailing error", zap.Error(err))
			cancel()
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case entry := <-entryChan:
			if err := conn.WriteJSON(entry); err != nil {
				h.logger.Debug("Failed to send log entry", zap.Error(err))
				return
			}

		case <-ticker.C:
			// keepalive
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
