package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// PageHandler renders the HTML front page
type PageHandler struct {
	defaultQuality domain.Quality
}

// NewPageHandler creates a new page handler
func NewPageHandler(defaultQuality domain.Quality) *PageHandler {
	return &PageHandler{defaultQuality: defaultQuality}
}

// Index handles GET /
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Qualities":      domain.Qualities(),
		"DefaultQuality": h.defaultQuality,
	})
}
