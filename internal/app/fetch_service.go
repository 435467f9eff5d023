package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
	"github.com/yourusername/yt-fetch-go/pkg/logger"
)

// ErrServiceClosed is returned by Submit after Close
var ErrServiceClosed = errors.New("fetch service closed")

// Fetcher runs the fetch workflow for one request
type Fetcher interface {
	Fetch(ctx context.Context, req domain.FetchRequest, observe Observer) (*domain.FetchResult, error)
}

// Notifier is told about finished fetches
type Notifier interface {
	NotifyFetchCompleted(title string, size int64)
	NotifyFetchFailed(url string, err error)
}

// FetchService ties the orchestrator to the registry, worker pool and history
type FetchService struct {
	fetcher     Fetcher
	registry    *Registry
	history     domain.HistoryRepository
	pool        *WorkerPool
	notifier    Notifier
	logger      *zap.Logger
	multiLogger *logger.MultiLogger

	baseCtx context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

// NewFetchService creates a new fetch service. history, notifier and
// multiLogger may be nil.
func NewFetchService(
	fetcher Fetcher,
	registry *Registry,
	history domain.HistoryRepository,
	pool *WorkerPool,
	notifier Notifier,
	logger *zap.Logger,
	multiLogger *logger.MultiLogger,
) *FetchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FetchService{
		fetcher:     fetcher,
		registry:    registry,
		history:     history,
		pool:        pool,
		notifier:    notifier,
		logger:      logger,
		multiLogger: multiLogger,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// FetchNow runs the workflow on the caller's goroutine. On success the caller
// owns the result and must Release it once the file has been sent.
func (s *FetchService) FetchNow(ctx context.Context, req domain.FetchRequest) (string, *domain.FetchResult, error) {
	rec, err := s.registry.Admit(req)
	if err != nil {
		return "", nil, err
	}
	result, err := s.run(ctx, rec.ID, req, false)
	return rec.ID, result, err
}

// Submit admits req and runs the workflow in the background. The artifact is
// held by the registry until collected with TakeArtifact.
func (s *FetchService) Submit(req domain.FetchRequest) (domain.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.StatusRecord{}, ErrServiceClosed
	}

	rec, err := s.registry.Admit(req)
	if err != nil {
		return domain.StatusRecord{}, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.run(s.baseCtx, rec.ID, req, true); err != nil {
			s.logger.Debug("Background fetch failed", zap.String("id", rec.ID), zap.Error(err))
		}
	}()

	return rec, nil
}

// run drives one admitted fetch to a terminal state
func (s *FetchService) run(ctx context.Context, id string, req domain.FetchRequest, hold bool) (*domain.FetchResult, error) {
	release, err := s.pool.Acquire(ctx)
	if err != nil {
		err = fmt.Errorf("waiting for a worker: %w", err)
		s.fail(id, req, err)
		return nil, err
	}
	defer release()

	started := time.Now()
	s.logEvent("fetch_started",
		zap.String("id", id),
		zap.String("video_id", req.VideoID),
		zap.String("quality", string(req.Quality)),
		zap.Int("workers_in_use", s.pool.InUse()))

	result, err := s.fetcher.Fetch(ctx, req, &recordObserver{service: s, id: id})
	if err != nil {
		s.fail(id, req, err)
		return nil, err
	}

	if err := s.registry.Complete(id, result, hold); err != nil {
		// registry closed or record purged under us; nobody can collect the file
		result.Release()
		return nil, fmt.Errorf("recording completion: %w", err)
	}

	s.logEvent("fetch_complete",
		zap.String("id", id),
		zap.String("file", result.FileName()),
		zap.String("size", humanize.Bytes(uint64(result.Size))),
		zap.Duration("elapsed", time.Since(started)))

	s.archive(id)
	if s.notifier != nil {
		s.notifier.NotifyFetchCompleted(result.Title, result.Size)
	}
	return result, nil
}

func (s *FetchService) fail(id string, req domain.FetchRequest, cause error) {
	if err := s.registry.Fail(id, cause); err != nil {
		s.logger.Warn("Failed to record fetch failure", zap.String("id", id), zap.Error(err))
	}

	kind := domain.KindOf(cause)
	s.logEvent("fetch_failed",
		zap.String("id", id),
		zap.String("video_id", req.VideoID),
		zap.String("kind", string(kind)),
		zap.Error(cause))
	if kind == "" && s.multiLogger != nil {
		s.multiLogger.LogAppError("Unclassified fetch error", zap.String("id", id), zap.Error(cause))
	}

	s.archive(id)
	if s.notifier != nil {
		s.notifier.NotifyFetchFailed(req.URL, cause)
	}
}

// archive persists the terminal record to history
func (s *FetchService) archive(id string) {
	if s.history == nil {
		return
	}
	rec, ok := s.registry.Get(id)
	if !ok || !rec.IsTerminal() {
		return
	}
	if err := s.history.Save(domain.NewFetchRecord(&rec)); err != nil {
		s.logger.Error("Failed to save fetch history", zap.String("id", id), zap.Error(err))
	}
}

func (s *FetchService) logEvent(event string, fields ...zap.Field) {
	s.logger.Info(event, fields...)
	if s.multiLogger != nil {
		s.multiLogger.LogFetchEvent(event, fields...)
	}
}

// Status returns the live record for id, falling back to persisted history
func (s *FetchService) Status(id string) (domain.StatusRecord, error) {
	if rec, ok := s.registry.Get(id); ok {
		return rec, nil
	}
	if s.history == nil {
		return domain.StatusRecord{}, domain.ErrNotFound
	}
	stored, err := s.history.FindByID(id)
	if err != nil {
		return domain.StatusRecord{}, err
	}
	return *stored.StatusRecord(), nil
}

// List returns every record the registry still tracks, newest first
func (s *FetchService) List() []domain.StatusRecord {
	return s.registry.List()
}

// TakeArtifact hands over the artifact of a completed background fetch
func (s *FetchService) TakeArtifact(id string) (*domain.FetchResult, error) {
	return s.registry.TakeArtifact(id)
}

// Purge drops expired registry entries
func (s *FetchService) Purge() int {
	return s.registry.Purge()
}

// History returns the most recent persisted records
func (s *FetchService) History(limit int) ([]*domain.FetchRecord, error) {
	if s.history == nil {
		return []*domain.FetchRecord{}, nil
	}
	return s.history.FindRecent(limit)
}

// SearchHistory returns persisted records matching every filter, newest first
func (s *FetchService) SearchHistory(filters map[string]interface{}) ([]*domain.FetchRecord, error) {
	if s.history == nil {
		return []*domain.FetchRecord{}, nil
	}
	return s.history.FindAll(filters)
}

// Stats returns aggregate history statistics
func (s *FetchService) Stats() (*domain.FetchStats, error) {
	if s.history == nil {
		return &domain.FetchStats{ByKind: map[string]int64{}}, nil
	}
	return s.history.GetStats()
}

// PruneHistory deletes persisted records older than age
func (s *FetchService) PruneHistory(age time.Duration) (int64, error) {
	if s.history == nil {
		return 0, nil
	}
	n, err := s.history.DeleteOlderThan(time.Now().Add(-age))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logEvent("history_pruned", zap.Int64("count", n), zap.Duration("older_than", age))
	}
	return n, nil
}

// WorkerUsage reports busy and total worker slots
func (s *FetchService) WorkerUsage() (inUse, capacity int) {
	return s.pool.InUse(), s.pool.Capacity()
}

// Close stops accepting background fetches and waits for running ones. If ctx
// ends first they are cancelled. Held artifacts are released afterwards.
func (s *FetchService) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.cancel()
		<-done
	}
	s.cancel()
	s.registry.Close()
	return err
}

// recordObserver mirrors workflow progress into the registry
type recordObserver struct {
	service *FetchService
	id      string
}

func (o *recordObserver) StateChanged(state domain.FetchState) {
	if err := o.service.registry.Advance(o.id, state); err != nil {
		o.service.logger.Warn("Failed to advance fetch state",
			zap.String("id", o.id),
			zap.String("state", string(state)),
			zap.Error(err))
	}
}

func (o *recordObserver) Resolved(title string) {
	if err := o.service.registry.SetTitle(o.id, title); err != nil {
		o.service.logger.Warn("Failed to record title", zap.String("id", o.id), zap.Error(err))
	}
}
