package main

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// attachmentName extracts a safe local file name from Content-Disposition
func attachmentName(header string) string {
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return "download"
	}
	name := filepath.Base(filepath.Clean("/" + params["filename"]))
	if name == "/" || name == "." || name == "" {
		return "download"
	}
	return name
}

// saveAttachment writes the response body into dir under the attachment name.
// A partially written file is removed on failure.
func saveAttachment(resp *http.Response, dir string) (string, int64, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(dir, attachmentName(resp.Header.Get("Content-Disposition")))

	f, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to save %s: %w", path, err)
	}
	return path, n, nil
}
