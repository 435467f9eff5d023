package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// OutputTemplate names artifacts after the video title
const OutputTemplate = "%(title)s.%(ext)s"

// runOutput is what the extractor keeps from a yt-dlp invocation
type runOutput struct {
	commandLine string
	stdout      string
	stderr      string
}

// YTDLPExtractor implements domain.Extractor on top of the yt-dlp binary
type YTDLPExtractor struct {
	config *domain.ExtractorConfig
	logger *zap.Logger
	run    func(ctx context.Context, cmd *ytdlp.Command, url string) (runOutput, error)
}

// NewYTDLPExtractor creates a new yt-dlp backed extractor
func NewYTDLPExtractor(config *domain.ExtractorConfig, logger *zap.Logger) *YTDLPExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YTDLPExtractor{
		config: config,
		logger: logger,
		run:    runCommand,
	}
}

func runCommand(ctx context.Context, cmd *ytdlp.Command, url string) (runOutput, error) {
	result, err := cmd.Run(ctx, url)
	if result == nil {
		return runOutput{}, err
	}
	return runOutput{
		commandLine: CommandLine(result.Executable, result.Args...),
		stdout:      result.Stdout,
		stderr:      result.Stderr,
	}, err
}

// command returns a yt-dlp invocation carrying the shared options
func (e *YTDLPExtractor) command() *ytdlp.Command {
	dl := ytdlp.New().NoPlaylist()
	if e.config.Binary != "" {
		dl = dl.SetExecutable(e.config.Binary)
	}
	if e.config.CookieFile != "" {
		dl = dl.Cookies(e.config.CookieFile)
	}
	if e.config.Proxy != "" {
		dl = dl.Proxy(e.config.Proxy)
	}
	return dl
}

// Resolve fetches the video metadata without downloading media
func (e *YTDLPExtractor) Resolve(ctx context.Context, url string) (*domain.MediaInfo, error) {
	dl := e.command().SkipDownload().PrintJSON()

	out, err := e.run(ctx, dl, url)
	if err != nil {
		e.logFailure("resolve", url, out, err)
		return nil, describeFailure(err, out)
	}

	info, err := ParseMediaInfo([]byte(out.stdout))
	if err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	e.logger.Debug("Resolved metadata",
		zap.String("url", url),
		zap.String("id", info.ID),
		zap.Int("formats", info.Formats))
	return info, nil
}

// Transfer downloads the selected format into spec.Dir and post-processes it
// into the tier's container
func (e *YTDLPExtractor) Transfer(ctx context.Context, spec domain.TransferSpec) error {
	dl := e.command().
		Format(spec.Format).
		Output(filepath.Join(spec.Dir, OutputTemplate))

	if spec.Quality.Kind() == domain.MediaAudio {
		dl = dl.ExtractAudio().
			AudioFormat(e.config.AudioFormat).
			AudioQuality(e.config.AudioQuality)
	} else {
		dl = dl.MergeOutputFormat(e.config.MergeFormat).
			RecodeVideo(e.config.MergeFormat)
	}

	out, err := e.run(ctx, dl, spec.URL)
	if err != nil {
		e.logFailure("transfer", spec.URL, out, err)
		return describeFailure(err, out)
	}

	e.logger.Debug("Transfer finished",
		zap.String("url", spec.URL),
		zap.String("quality", string(spec.Quality)),
		zap.String("command", out.commandLine))
	return nil
}

func (e *YTDLPExtractor) logFailure(op, url string, out runOutput, err error) {
	e.logger.Warn("yt-dlp failed",
		zap.String("op", op),
		zap.String("url", url),
		zap.String("command", out.commandLine),
		zap.String("stderr", StderrTail(out.stderr, 5)),
		zap.Error(err))
}

// describeFailure prefers yt-dlp's own error line over the bare exit status
func describeFailure(err error, out runOutput) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if line := lastErrorLine(out.stderr); line != "" {
		return fmt.Errorf("%s: %w", line, err)
	}
	return err
}

// mediaInfoJSON is the subset of yt-dlp's info dict that is kept
type mediaInfoJSON struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Extension  string            `json:"ext"`
	Uploader   string            `json:"uploader"`
	Duration   float64           `json:"duration"`
	WebpageURL string            `json:"webpage_url"`
	Formats    []json.RawMessage `json:"formats"`
}

// ParseMediaInfo decodes the info dict printed by yt-dlp. Only the last JSON
// line of the output is used; warnings printed before it are ignored.
func ParseMediaInfo(stdout []byte) (*domain.MediaInfo, error) {
	lines := bytes.Split(bytes.TrimSpace(stdout), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}

		var raw mediaInfoJSON
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, err
		}
		return &domain.MediaInfo{
			ID:         raw.ID,
			Title:      raw.Title,
			Extension:  raw.Extension,
			Uploader:   raw.Uploader,
			Duration:   raw.Duration,
			WebpageURL: raw.WebpageURL,
			Formats:    len(raw.Formats),
		}, nil
	}
	return nil, fmt.Errorf("no metadata in extractor output")
}

// StderrTail returns the last n non-empty lines of yt-dlp's stderr
func StderrTail(stderr string, n int) string {
	var kept []string
	for _, line := range strings.Split(stderr, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}

// lastErrorLine returns the last "ERROR:" line yt-dlp printed
func lastErrorLine(stderr string) string {
	lines := strings.Split(stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return line
		}
	}
	return ""
}
