package domain

import (
	"path/filepath"
	"strings"
)

// Quality is a named preset selecting a resolution/bitrate/container combination
type Quality string

const (
	QualityLow       Quality = "low"
	QualityMedium    Quality = "medium"
	QualityHigh      Quality = "high"
	QualityBest      Quality = "best"
	QualityAudioOnly Quality = "audio-only"
)

// DefaultQuality is used whenever a quality string is not recognized
const DefaultQuality = QualityBest

// MediaKind tells video artifacts from audio artifacts
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// ContentType returns the MIME type served for the media kind
func (k MediaKind) ContentType() string {
	if k == MediaAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

// tierSpec is one row of the static tier table
type tierSpec struct {
	format    string
	kind      MediaKind
	extension string
}

var tiers = map[Quality]tierSpec{
	QualityLow: {
		format:    "worstvideo[ext=mp4]+worstaudio[ext=m4a]/worst[ext=mp4]/worst",
		kind:      MediaVideo,
		extension: "mp4",
	},
	QualityMedium: {
		format:    "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]/best[height<=480]",
		kind:      MediaVideo,
		extension: "mp4",
	},
	QualityHigh: {
		format:    "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best[height<=720]",
		kind:      MediaVideo,
		extension: "mp4",
	},
	QualityBest: {
		format:    "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/bv*+ba/b",
		kind:      MediaVideo,
		extension: "mp4",
	},
	QualityAudioOnly: {
		format:    "bestaudio[ext=m4a]/bestaudio",
		kind:      MediaAudio,
		extension: "mp3",
	},
}

// Qualities lists every recognized tier, lowest first
func Qualities() []Quality {
	return []Quality{QualityLow, QualityMedium, QualityHigh, QualityBest, QualityAudioOnly}
}

// ParseQuality maps a raw quality string to a tier.
// Unrecognized values, including the empty string, resolve to DefaultQuality.
func ParseQuality(raw string) Quality {
	return ParseQualityOr(raw, DefaultQuality)
}

// ParseQualityOr is ParseQuality with a caller-chosen fallback tier
func ParseQualityOr(raw string, fallback Quality) Quality {
	q := Quality(strings.ToLower(strings.TrimSpace(raw)))
	if q == "audio" {
		return QualityAudioOnly
	}
	if _, ok := tiers[q]; ok {
		return q
	}
	if _, ok := tiers[fallback]; ok {
		return fallback
	}
	return DefaultQuality
}

// ValidateQuality checks if a quality is a known tier
func ValidateQuality(q Quality) bool {
	_, ok := tiers[q]
	return ok
}

// FormatExpression returns the yt-dlp format selection expression for the tier
func (q Quality) FormatExpression() string {
	return q.spec().format
}

// Kind returns the media kind produced by the tier
func (q Quality) Kind() MediaKind {
	return q.spec().kind
}

// Extension returns the file extension the produced artifact is expected to have
func (q Quality) Extension() string {
	return q.spec().extension
}

func (q Quality) spec() tierSpec {
	if s, ok := tiers[q]; ok {
		return s
	}
	return tiers[DefaultQuality]
}

// FetchRequest is a validated request to fetch one video
type FetchRequest struct {
	URL     string  `json:"url"`
	VideoID string  `json:"video_id"`
	Quality Quality `json:"quality"`
}

// NewFetchRequest validates the URL and coerces the quality into a FetchRequest
func NewFetchRequest(rawURL, rawQuality string) (FetchRequest, error) {
	url := strings.TrimSpace(rawURL)
	videoID, err := ValidateURL(url)
	if err != nil {
		return FetchRequest{}, err
	}
	return FetchRequest{
		URL:     url,
		VideoID: videoID,
		Quality: ParseQuality(rawQuality),
	}, nil
}

// Releaser frees the on-disk resources backing a fetch result
type Releaser interface {
	Path() string
	Release() error
}

// FetchResult is the artifact produced by a successful fetch.
// The holder owns Scratch and must call Release exactly once it is done with the file.
type FetchResult struct {
	Path    string    `json:"path"`
	Title   string    `json:"title"`
	Kind    MediaKind `json:"kind"`
	Size    int64     `json:"size"`
	Scratch Releaser  `json:"-"`
}

// FileName returns the attachment name of the artifact
func (r *FetchResult) FileName() string {
	return filepath.Base(r.Path)
}

// ContentType returns the MIME type of the artifact
func (r *FetchResult) ContentType() string {
	return r.Kind.ContentType()
}

// Release removes the artifact together with its scratch directory
func (r *FetchResult) Release() error {
	if r == nil || r.Scratch == nil {
		return nil
	}
	return r.Scratch.Release()
}
