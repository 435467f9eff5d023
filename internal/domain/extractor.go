package domain

import "context"

// MediaInfo is the metadata resolved for a video without transferring data
type MediaInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Extension  string  `json:"ext"`
	Uploader   string  `json:"uploader,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	WebpageURL string  `json:"webpage_url,omitempty"`
	Formats    int     `json:"formats,omitempty"` // number of available renditions
}

// TransferSpec describes one transfer into a scratch directory
type TransferSpec struct {
	URL     string
	Format  string // format selection expression
	Dir     string // destination directory
	Quality Quality
}

// Extractor defines the interface for the external extraction library
type Extractor interface {
	// Resolve fetches metadata for the URL without transferring media
	Resolve(ctx context.Context, url string) (*MediaInfo, error)

	// Transfer downloads (and post-processes) the media into spec.Dir
	Transfer(ctx context.Context, spec TransferSpec) error
}
