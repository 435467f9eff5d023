package domain

import (
	"fmt"
	"regexp"
)

// VideoIDLength is the length of the opaque video identifier
const VideoIDLength = 11

var (
	// watch links carry the id in the v query parameter, wherever it sits in the query
	watchURLPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?youtube\.com/watch\?(?:[^#]*&)?v=([A-Za-z0-9_-]{11})(?:[&#].*)?$`)
	// short domain, embed and shorts links carry the id as a path segment
	pathURLPattern = regexp.MustCompile(`^(?:https?://)?(?:(?:www\.)?youtu\.be/|(?:www\.|m\.)?youtube\.com/(?:embed|shorts)/)([A-Za-z0-9_-]{11})(?:[/?#].*)?$`)
)

// ValidateURL checks a raw URL against the recognized video link forms and
// returns the video id it references.
func ValidateURL(raw string) (string, error) {
	if raw == "" {
		return "", NewFetchError(KindInvalidInput, "validate url", fmt.Errorf("url is required"))
	}
	if m := watchURLPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	if m := pathURLPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	return "", NewFetchError(KindInvalidInput, "validate url", fmt.Errorf("unsupported video url: %s", raw))
}

// IsValidURL reports whether raw is an accepted video link
func IsValidURL(raw string) bool {
	_, err := ValidateURL(raw)
	return err == nil
}
