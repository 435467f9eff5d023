package app

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

var (
	// ErrRegistryClosed is returned by every operation after Close
	ErrRegistryClosed = errors.New("registry closed")
	// ErrArtifactNotReady is returned when collecting from a fetch that has not completed
	ErrArtifactNotReady = errors.New("artifact not ready")
	// ErrArtifactCollected is returned when the artifact was already collected or purged
	ErrArtifactCollected = errors.New("artifact already collected")
)

type registryEntry struct {
	record   *domain.StatusRecord
	artifact *domain.FetchResult
}

// Registry tracks status records for admitted fetches.
// A single goroutine owns the entries; every operation is a closure run by that
// goroutine, and reads hand out copies.
type Registry struct {
	ops       chan func(entries map[string]*registryEntry)
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewRegistry creates a registry and starts its owner goroutine
func NewRegistry(retention time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		ops:       make(chan func(map[string]*registryEntry)),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
	go r.loop()
	return r
}

func (r *Registry) loop() {
	defer close(r.stopped)
	entries := make(map[string]*registryEntry)
	for {
		select {
		case op := <-r.ops:
			op(entries)
		case <-r.done:
			for id, e := range entries {
				r.releaseArtifact(id, e)
			}
			return
		}
	}
}

// do runs fn on the owner goroutine and waits for it to finish
func (r *Registry) do(fn func(entries map[string]*registryEntry)) error {
	finished := make(chan struct{})
	op := func(entries map[string]*registryEntry) {
		defer close(finished)
		fn(entries)
	}
	select {
	case r.ops <- op:
	case <-r.done:
		return ErrRegistryClosed
	}
	<-finished
	return nil
}

// Admit purges expired entries and registers a new record for req
func (r *Registry) Admit(req domain.FetchRequest) (domain.StatusRecord, error) {
	var record domain.StatusRecord
	err := r.do(func(entries map[string]*registryEntry) {
		r.purge(entries)
		rec := domain.NewStatusRecord(req, r.now())
		entries[rec.ID] = &registryEntry{record: rec}
		record = *rec
		r.logger.Info("fetch_admitted",
			zap.String("id", rec.ID),
			zap.String("video_id", rec.VideoID),
			zap.String("quality", string(rec.Quality)))
	})
	return record, err
}

// Advance moves a record forward along the state machine
func (r *Registry) Advance(id string, state domain.FetchState) error {
	return r.update(id, func(e *registryEntry) error {
		if err := e.record.Advance(state, r.now()); err != nil {
			return err
		}
		r.logger.Debug("fetch_state", zap.String("id", id), zap.String("state", string(state)))
		return nil
	})
}

// SetTitle records the resolved title
func (r *Registry) SetTitle(id, title string) error {
	return r.update(id, func(e *registryEntry) error {
		e.record.Title = title
		e.record.UpdatedAt = r.now()
		return nil
	})
}

// Complete marks the fetch complete. When keep is set the registry takes
// ownership of the artifact until it is collected or purged.
func (r *Registry) Complete(id string, result *domain.FetchResult, keep bool) error {
	return r.update(id, func(e *registryEntry) error {
		if err := e.record.MarkCompleted(result, r.now()); err != nil {
			return err
		}
		if keep {
			e.artifact = result
		}
		r.logger.Info("fetch_complete",
			zap.String("id", id),
			zap.String("file", e.record.FileName),
			zap.Int64("size", e.record.Size),
			zap.Bool("held", keep))
		return nil
	})
}

// Fail marks the fetch failed
func (r *Registry) Fail(id string, cause error) error {
	return r.update(id, func(e *registryEntry) error {
		if err := e.record.MarkFailed(cause, r.now()); err != nil {
			return err
		}
		r.logger.Info("fetch_failed",
			zap.String("id", id),
			zap.String("kind", string(e.record.ErrorKind)),
			zap.String("error", e.record.Error))
		return nil
	})
}

// Get returns a copy of the record for id
func (r *Registry) Get(id string) (domain.StatusRecord, bool) {
	var record domain.StatusRecord
	var found bool
	_ = r.do(func(entries map[string]*registryEntry) {
		if e, ok := entries[id]; ok {
			record = *e.record
			found = true
		}
	})
	return record, found
}

// List purges expired entries, then returns copies of the rest, newest first
func (r *Registry) List() []domain.StatusRecord {
	var records []domain.StatusRecord
	_ = r.do(func(entries map[string]*registryEntry) {
		r.purge(entries)
		records = make([]domain.StatusRecord, 0, len(entries))
		for _, e := range entries {
			records = append(records, *e.record)
		}
	})
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records
}

// TakeArtifact hands a held artifact to the caller, who must Release it.
// An artifact can be taken only once.
func (r *Registry) TakeArtifact(id string) (*domain.FetchResult, error) {
	var result *domain.FetchResult
	var takeErr error
	err := r.do(func(entries map[string]*registryEntry) {
		e, ok := entries[id]
		switch {
		case !ok:
			takeErr = domain.ErrNotFound
		case e.record.State != domain.StateComplete:
			takeErr = ErrArtifactNotReady
		case e.artifact == nil:
			takeErr = ErrArtifactCollected
		default:
			result = e.artifact
			e.artifact = nil
		}
	})
	if err != nil {
		return nil, err
	}
	return result, takeErr
}

// Purge removes terminal entries older than the retention window together
// with any artifact they still hold, returning how many were removed
func (r *Registry) Purge() int {
	var n int
	_ = r.do(func(entries map[string]*registryEntry) {
		n = r.purge(entries)
	})
	return n
}

// Close stops the owner goroutine and releases every held artifact
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	<-r.stopped
}

func (r *Registry) update(id string, fn func(e *registryEntry) error) error {
	var updateErr error
	err := r.do(func(entries map[string]*registryEntry) {
		e, ok := entries[id]
		if !ok {
			updateErr = fmt.Errorf("fetch %s: %w", id, domain.ErrNotFound)
			return
		}
		updateErr = fn(e)
	})
	if err != nil {
		return err
	}
	return updateErr
}

// purge must run on the owner goroutine
func (r *Registry) purge(entries map[string]*registryEntry) int {
	now := r.now()
	n := 0
	for id, e := range entries {
		if !e.record.IsTerminal() || !e.record.Expired(now, r.retention) {
			continue
		}
		r.releaseArtifact(id, e)
		delete(entries, id)
		n++
	}
	if n > 0 {
		r.logger.Info("registry_purged", zap.Int("count", n), zap.Int("remaining", len(entries)))
	}
	return n
}

func (r *Registry) releaseArtifact(id string, e *registryEntry) {
	if e.artifact == nil {
		return
	}
	if err := e.artifact.Release(); err != nil {
		r.logger.Warn("failed to release artifact", zap.String("id", id), zap.Error(err))
	}
	e.artifact = nil
}
