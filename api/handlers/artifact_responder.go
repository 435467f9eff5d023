package handlers

import (
	"mime"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// ArtifactResponder streams a fetched file to the client and then releases it
type ArtifactResponder struct {
	logger *zap.Logger
}

// NewArtifactResponder creates a new artifact responder
func NewArtifactResponder(logger *zap.Logger) *ArtifactResponder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactResponder{logger: logger}
}

// Respond writes result as an attachment. The result is released once the body
// has been written or on any error, so the caller must not use it afterwards.
func (r *ArtifactResponder) Respond(c *gin.Context, result *domain.FetchResult) {
	defer func() {
		if err := result.Release(); err != nil {
			r.logger.Warn("Failed to release artifact",
				zap.String("file", result.FileName()),
				zap.Error(err))
		}
	}()

	f, err := os.Open(result.Path)
	if err != nil {
		r.logger.Error("Failed to open artifact", zap.String("path", result.Path), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "artifact could not be read", Kind: KindInternal})
		return
	}
	defer f.Close()

	size := result.Size
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}

	c.DataFromReader(http.StatusOK, size, result.ContentType(), f, map[string]string{
		"Content-Disposition": ContentDisposition(result.FileName()),
	})

	r.logger.Debug("Artifact sent",
		zap.String("file", result.FileName()),
		zap.Int64("bytes", size))
}

// ContentDisposition builds an attachment header; non-ASCII names use RFC 2231 encoding
func ContentDisposition(filename string) string {
	if filename == "" {
		filename = "download"
	}
	header := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if header == "" {
		// names mime refuses to encode still get a usable ASCII fallback
		return `attachment; filename="download"`
	}
	return header
}
