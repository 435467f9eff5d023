package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/app"
	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// FetchIDHeader carries the registry id of a synchronous fetch
const FetchIDHeader = "X-Fetch-ID"

// FetchHandler handles fetch-related HTTP requests
type FetchHandler struct {
	service        *app.FetchService
	responder      *ArtifactResponder
	defaultQuality domain.Quality
	logger         *zap.Logger
}

// NewFetchHandler creates a new fetch handler. Requests with a missing or
// unknown quality use defaultQuality.
func NewFetchHandler(service *app.FetchService, responder *ArtifactResponder, defaultQuality domain.Quality, logger *zap.Logger) *FetchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchHandler{
		service:        service,
		responder:      responder,
		defaultQuality: defaultQuality,
		logger:         logger,
	}
}

// FetchRequestBody is accepted as form fields or JSON
type FetchRequestBody struct {
	URL     string `form:"url" json:"url"`
	Quality string `form:"quality" json:"quality"`
}

// bindRequest validates the body into a fetch request, answering 400 on failure
func (h *FetchHandler) bindRequest(c *gin.Context) (domain.FetchRequest, bool) {
	var body FetchRequestBody
	if err := c.ShouldBind(&body); err != nil {
		respondInvalid(c, "malformed request body")
		return domain.FetchRequest{}, false
	}
	if strings.TrimSpace(body.URL) == "" {
		respondInvalid(c, "url is required")
		return domain.FetchRequest{}, false
	}

	quality := domain.ParseQualityOr(body.Quality, h.defaultQuality)
	req, err := domain.NewFetchRequest(body.URL, string(quality))
	if err != nil {
		respondError(c, err)
		return domain.FetchRequest{}, false
	}
	return req, true
}

// Fetch handles POST /fetch: runs the fetch and streams the file back
func (h *FetchHandler) Fetch(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	id, result, err := h.service.FetchNow(c.Request.Context(), req)
	if id != "" {
		c.Header(FetchIDHeader, id)
	}
	if err != nil {
		h.logger.Warn("Fetch failed",
			zap.String("id", id),
			zap.String("video_id", req.VideoID),
			zap.Error(err))
		respondError(c, err)
		return
	}

	h.responder.Respond(c, result)
}

// Submit handles POST /api/v1/fetches: admits the fetch and returns at once
func (h *FetchHandler) Submit(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	rec, err := h.service.Submit(req)
	if err != nil {
		h.logger.Error("Failed to submit fetch", zap.Error(err))
		respondError(c, err)
		return
	}

	c.Header("Location", "/api/v1/fetches/"+rec.ID)
	c.JSON(http.StatusAccepted, rec)
}

// GetFetch handles GET /api/v1/fetches/:id and GET /status/:id
func (h *FetchHandler) GetFetch(c *gin.Context) {
	rec, err := h.service.Status(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListFetches handles GET /api/v1/fetches
func (h *FetchHandler) ListFetches(c *gin.Context) {
	records := h.service.List()

	if state := c.Query("state"); state != "" {
		filtered := records[:0]
		for _, r := range records {
			if string(r.State) == state {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"fetches": records,
	})
}

// GetFile handles GET /api/v1/fetches/:id/file: hands over a held artifact once
func (h *FetchHandler) GetFile(c *gin.Context) {
	result, err := h.service.TakeArtifact(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.responder.Respond(c, result)
}

// Purge handles POST /api/v1/fetches/purge
func (h *FetchHandler) Purge(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"purged": h.service.Purge()})
}
