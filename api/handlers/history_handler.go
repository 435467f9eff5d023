package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/app"
	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// HistoryHandler serves persisted fetch history
type HistoryHandler struct {
	service *app.FetchService
	logger  *zap.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(service *app.FetchService, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{service: service, logger: logger}
}

// historyFilters are the query parameters List passes on as column filters
var historyFilters = []string{"state", "quality", "video_id", "error_kind"}

// List handles GET /api/v1/history. Any of state, quality, video_id or
// error_kind narrows the result; limit caps it.
func (h *HistoryHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	filters := make(map[string]interface{})
	for _, key := range historyFilters {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}

	var records []*domain.FetchRecord
	if len(filters) > 0 {
		records, err = h.service.SearchHistory(filters)
		if err == nil && len(records) > limit {
			records = records[:limit]
		}
	} else {
		records, err = h.service.History(limit)
	}
	if err != nil {
		h.logger.Error("Failed to read history", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"records": records,
	})
}

// Stats handles GET /api/v1/history/stats
func (h *HistoryHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Prune handles DELETE /api/v1/history?older_than=720h
func (h *HistoryHandler) Prune(c *gin.Context) {
	age, err := time.ParseDuration(c.DefaultQuery("older_than", "720h"))
	if err != nil || age <= 0 {
		respondInvalid(c, "older_than must be a positive duration such as 720h")
		return
	}

	deleted, err := h.service.PruneHistory(age)
	if err != nil {
		h.logger.Error("Failed to prune history", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
