package handlers

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/yt-fetch-go/pkg/logger"
)

// LogHandler handles log-related requests
type LogHandler struct {
	logReader *logger.LogReader
}

// NewLogHandler creates a new log handler
func NewLogHandler(logsDir string) *LogHandler {
	return &LogHandler{
		logReader: logger.NewLogReader(logsDir),
	}
}

// parseCategory validates the :category path parameter
func parseCategory(c *gin.Context) (logger.LogCategory, bool) {
	category := logger.LogCategory(c.Param("category"))
	if !logger.ValidCategory(category) {
		respondInvalid(c, "invalid category")
		return "", false
	}
	return category, true
}

// parseDate reads the optional ?date=YYYY-MM-DD parameter, defaulting to today
func parseDate(c *gin.Context) (time.Time, bool) {
	dateStr := c.Query("date")
	if dateStr == "" {
		return time.Now(), true
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		respondInvalid(c, "invalid date format, use YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}
	return limit
}

// GetLogs handles GET /api/v1/logs/:category
func (h *LogHandler) GetLogs(c *gin.Context) {
	category, ok := parseCategory(c)
	if !ok {
		return
	}
	date, ok := parseDate(c)
	if !ok {
		return
	}

	entries, err := h.logReader.ReadLogs(category, date, parseLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read logs", Kind: KindInternal})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"date":     date.Format("2006-01-02"),
		"count":    len(entries),
		"entries":  entries,
	})
}

// SearchLogs handles GET /api/v1/logs/:category/search
func (h *LogHandler) SearchLogs(c *gin.Context) {
	category, ok := parseCategory(c)
	if !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		respondInvalid(c, "query parameter 'q' is required")
		return
	}

	date, ok := parseDate(c)
	if !ok {
		return
	}

	entries, err := h.logReader.SearchLogs(category, date, query, parseLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to search logs", Kind: KindInternal})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"query":    query,
		"count":    len(entries),
		"entries":  entries,
	})
}

// GetCategories handles GET /api/v1/logs/categories
func (h *LogHandler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories": logger.Categories(),
	})
}

// ExportLogs handles GET /api/v1/logs/:category/export
func (h *LogHandler) ExportLogs(c *gin.Context) {
	category, ok := parseCategory(c)
	if !ok {
		return
	}
	date, ok := parseDate(c)
	if !ok {
		return
	}

	logPath := h.logReader.GetLogPath(category, date)
	if _, err := os.Stat(logPath); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no log for that date", Kind: KindNotFound})
		return
	}

	filename := string(category) + "-" + date.Format("20060102") + ".log"
	c.FileAttachment(logPath, filename)
}
