package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// Observer is told about workflow progress
type Observer interface {
	StateChanged(state domain.FetchState)
	Resolved(title string)
}

// StateObserver adapts a function to an Observer that ignores titles
type StateObserver func(state domain.FetchState)

func (f StateObserver) StateChanged(state domain.FetchState) { f(state) }

func (f StateObserver) Resolved(string) {}

// Orchestrator drives the extractor from a validated request to a local artifact
type Orchestrator struct {
	extractor domain.Extractor
	config    *domain.FetchConfig
	logger    *zap.Logger
	resolves  singleflight.Group
	wait      func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a new fetch orchestrator
func NewOrchestrator(extractor domain.Extractor, config *domain.FetchConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		extractor: extractor,
		config:    config,
		logger:    logger,
		wait:      sleepContext,
	}
}

// Fetch resolves and transfers the requested video into a fresh scratch directory.
// On success the caller owns the returned result and must Release it; on failure
// nothing is left on disk.
func (o *Orchestrator) Fetch(ctx context.Context, req domain.FetchRequest, observe Observer) (*domain.FetchResult, error) {
	if observe == nil {
		observe = StateObserver(func(domain.FetchState) {})
	}

	if o.config.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Deadline)
		defer cancel()
	}

	var result *domain.FetchResult
	err := WithScratchDir(o.config.BaseDir, func(dir *ScratchDir, keep func()) error {
		observe.StateChanged(domain.StateExtracting)
		info, err := o.resolve(ctx, req.URL)
		if err != nil {
			if ctx.Err() != nil {
				return domain.NewFetchError(domain.KindFetchFailed, "resolve", err)
			}
			return domain.NewFetchError(domain.KindSourceUnavailable, "resolve", err)
		}

		title := info.Title
		if title == "" {
			title = req.VideoID
		}
		observe.Resolved(title)

		o.logger.Info("Resolved video",
			zap.String("video_id", req.VideoID),
			zap.String("title", title),
			zap.String("quality", string(req.Quality)),
			zap.Int("formats", info.Formats))

		observe.StateChanged(domain.StateFetching)
		spec := domain.TransferSpec{
			URL:     req.URL,
			Format:  req.Quality.FormatExpression(),
			Dir:     dir.Path(),
			Quality: req.Quality,
		}
		if err := o.transfer(ctx, dir, spec); err != nil {
			return err
		}

		observe.StateChanged(domain.StateConverting)
		path, err := o.locate(dir, title, req.Quality.Extension())
		if err != nil {
			return err
		}

		fi, err := os.Stat(path)
		if err != nil {
			return domain.NewFetchError(domain.KindEmptyArtifact, "locate", err)
		}
		if fi.Size() == 0 {
			os.Remove(path)
			return domain.NewFetchError(domain.KindEmptyArtifact, "locate", fmt.Errorf("artifact %s is empty", filepath.Base(path)))
		}

		result = &domain.FetchResult{
			Path:    path,
			Title:   title,
			Kind:    req.Quality.Kind(),
			Size:    fi.Size(),
			Scratch: dir,
		}
		keep()

		o.logger.Info("Fetch produced artifact",
			zap.String("video_id", req.VideoID),
			zap.String("file", result.FileName()),
			zap.String("size", humanize.Bytes(uint64(result.Size))))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolve fetches metadata once; concurrent lookups of the same URL share one call.
// The shared call is detached from any single caller so one caller leaving does
// not fail the others; each caller still stops waiting when its own ctx ends.
func (o *Orchestrator) resolve(ctx context.Context, url string) (*domain.MediaInfo, error) {
	ch := o.resolves.DoChan(url, func() (interface{}, error) {
		lookupCtx := context.WithoutCancel(ctx)
		if timeout := o.resolveTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(lookupCtx, timeout)
			defer cancel()
		}
		return o.extractor.Resolve(lookupCtx, url)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.Shared {
		o.logger.Debug("Resolve coalesced with in-flight lookup", zap.String("url", url))
	}
	if res.Err != nil {
		return nil, res.Err
	}
	info, ok := res.Val.(*domain.MediaInfo)
	if !ok || info == nil {
		return nil, fmt.Errorf("extractor returned no metadata")
	}
	return info, nil
}

// resolveTimeout bounds a detached metadata lookup
func (o *Orchestrator) resolveTimeout() time.Duration {
	if o.config.AttemptTimeout > 0 {
		return o.config.AttemptTimeout
	}
	return o.config.Deadline
}

// transfer runs the extractor transfer with bounded attempts and linear backoff
func (o *Orchestrator) transfer(ctx context.Context, dir *ScratchDir, spec domain.TransferSpec) error {
	attempts := o.config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	made := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := o.config.RetryDelay * time.Duration(attempt-1)
			o.logger.Info("Retrying transfer",
				zap.String("url", spec.URL),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Duration("delay", delay))

			if err := o.wait(ctx, delay); err != nil {
				lastErr = err
				break
			}
			// A failed attempt may leave fragments that would confuse artifact lookup
			if err := clearDir(dir.Path()); err != nil {
				o.logger.Warn("Failed to clear scratch directory", zap.Error(err))
			}
		}

		made++
		err := o.attempt(ctx, spec)
		if err == nil {
			return nil
		}

		lastErr = err
		o.logger.Warn("Transfer attempt failed",
			zap.String("url", spec.URL),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	return domain.NewFetchError(domain.KindFetchFailed, "transfer",
		fmt.Errorf("gave up after %d attempt(s): %w", made, lastErr))
}

// attempt performs a single transfer bounded by the per-attempt timeout
func (o *Orchestrator) attempt(ctx context.Context, spec domain.TransferSpec) error {
	if o.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.AttemptTimeout)
		defer cancel()
	}
	return o.extractor.Transfer(ctx, spec)
}

// locate finds the produced artifact, preferring the predicted name
func (o *Orchestrator) locate(dir *ScratchDir, title, ext string) (string, error) {
	predicted := filepath.Join(dir.Path(), PredictFileName(title, ext))
	if fi, err := os.Stat(predicted); err == nil && fi.Mode().IsRegular() {
		return predicted, nil
	}

	files, err := dir.Files()
	if err != nil {
		return "", domain.NewFetchError(domain.KindEmptyArtifact, "locate", err)
	}

	switch len(files) {
	case 0:
		return "", domain.NewFetchError(domain.KindEmptyArtifact, "locate", fmt.Errorf("extractor reported success but produced no file"))
	case 1:
		o.logger.Debug("Artifact name differs from prediction",
			zap.String("predicted", filepath.Base(predicted)),
			zap.String("actual", filepath.Base(files[0])))
		return files[0], nil
	default:
		return "", domain.NewFetchError(domain.KindFetchFailed, "locate", fmt.Errorf("expected one artifact, found %d", len(files)))
	}
}

// PredictFileName returns the name the extractor is expected to give the artifact
func PredictFileName(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, title)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "video"
	}
	return name + "." + ext
}

// clearDir removes the contents of dir but keeps dir itself
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
