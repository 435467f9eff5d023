package handlers

import (
	"net/http"
	"os/exec"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/yt-fetch-go/internal/app"
)

// Version is reported by the health endpoint
var Version = "dev"

// HealthHandler handles health check requests
type HealthHandler struct {
	service  *app.FetchService
	binary   string
	lookPath func(file string) (string, error)
}

// NewHealthHandler creates a new health handler. binary is the extractor
// executable that must be resolvable for the service to be ready.
func NewHealthHandler(service *app.FetchService, binary string) *HealthHandler {
	return &HealthHandler{
		service:  service,
		binary:   binary,
		lookPath: exec.LookPath,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Workers struct {
		InUse    int `json:"in_use"`
		Capacity int `json:"capacity"`
	} `json:"workers"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	response.Workers.InUse, response.Workers.Capacity = h.service.WorkerUsage()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	path, err := h.lookPath(h.binary)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "extractor binary not found: " + h.binary,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "extractor": path})
}
