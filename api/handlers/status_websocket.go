package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/app"
	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// StatusWebSocketHandler pushes status record changes to WebSocket clients
type StatusWebSocketHandler struct {
	service  *app.FetchService
	logger   *zap.Logger
	interval time.Duration
}

// NewStatusWebSocketHandler creates a new status WebSocket handler
func NewStatusWebSocketHandler(service *app.FetchService, logger *zap.Logger) *StatusWebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusWebSocketHandler{
		service:  service,
		logger:   logger,
		interval: 250 * time.Millisecond,
	}
}

// HandleWebSocket handles GET /api/v1/fetches/:id/ws. Every change of the
// record is sent as JSON; the socket closes after a terminal state.
func (h *StatusWebSocketHandler) HandleWebSocket(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.service.Status(id)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	// Drain client frames so close and pong messages are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(rec); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	last := rec

	for !last.IsTerminal() {
		select {
		case <-done:
			return
		case <-ticker.C:
			current, err := h.service.Status(id)
			if err != nil {
				h.closeWith(conn, websocket.CloseGoingAway, "record expired")
				return
			}
			if changed(last, current) {
				if err := conn.WriteJSON(current); err != nil {
					return
				}
				last = current
			}
		}
	}

	h.closeWith(conn, websocket.CloseNormalClosure, string(last.State))
}

func (h *StatusWebSocketHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		h.logger.Debug("Failed to send close frame", zap.Error(err))
	}
}

func changed(a, b domain.StatusRecord) bool {
	return a.State != b.State || a.Title != b.Title || !a.UpdatedAt.Equal(b.UpdatedAt)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
