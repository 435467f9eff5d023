package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/yt-fetch-go/internal/app"
	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// Error kinds reported for failures that are not fetch workflow errors
const (
	KindNotFound    = "not_found"
	KindNotReady    = "not_ready"
	KindGone        = "gone"
	KindUnavailable = "unavailable"
	KindInternal    = "internal"
	KindRateLimited = "rate_limited"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusForError maps an error to its HTTP status and reported kind
func StatusForError(err error) (int, string) {
	if kind := domain.KindOf(err); kind != "" {
		switch kind {
		case domain.KindInvalidInput:
			return http.StatusBadRequest, string(kind)
		case domain.KindSourceUnavailable:
			return http.StatusUnprocessableEntity, string(kind)
		case domain.KindFetchFailed, domain.KindEmptyArtifact:
			return http.StatusBadGateway, string(kind)
		}
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, app.ErrArtifactNotReady):
		return http.StatusConflict, KindNotReady
	case errors.Is(err, app.ErrArtifactCollected):
		return http.StatusGone, KindGone
	case errors.Is(err, app.ErrServiceClosed), errors.Is(err, app.ErrRegistryClosed):
		return http.StatusServiceUnavailable, KindUnavailable
	}
	return http.StatusInternalServerError, KindInternal
}

// respondError writes err as a structured JSON error and aborts the chain
func respondError(c *gin.Context, err error) {
	status, kind := StatusForError(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Kind: kind})
}

// respondInvalid writes a 400 for a malformed request body
func respondInvalid(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: string(domain.KindInvalidInput)})
}
