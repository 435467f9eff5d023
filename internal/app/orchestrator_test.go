package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// stubExtractor implements domain.Extractor for testing
type stubExtractor struct {
	mu            sync.Mutex
	info          *domain.MediaInfo
	resolveErr    error
	resolveFn     func(ctx context.Context) (*domain.MediaInfo, error)
	transferFn    func(spec domain.TransferSpec, attempt int) error
	blockingFn    func(ctx context.Context, spec domain.TransferSpec, attempt int) error
	resolveCalls  int
	transferCalls int
	specs         []domain.TransferSpec
}

func (s *stubExtractor) Resolve(ctx context.Context, url string) (*domain.MediaInfo, error) {
	s.mu.Lock()
	s.resolveCalls++
	fn := s.resolveFn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	return s.info, nil
}

func (s *stubExtractor) Transfer(ctx context.Context, spec domain.TransferSpec) error {
	s.mu.Lock()
	s.transferCalls++
	attempt := s.transferCalls
	s.specs = append(s.specs, spec)
	fn := s.transferFn
	blocking := s.blockingFn
	s.mu.Unlock()
	if blocking != nil {
		return blocking(ctx, spec, attempt)
	}
	if fn == nil {
		return nil
	}
	return fn(spec, attempt)
}

func writeArtifact(name, content string) func(spec domain.TransferSpec, attempt int) error {
	return func(spec domain.TransferSpec, attempt int) error {
		return os.WriteFile(filepath.Join(spec.Dir, name), []byte(content), 0644)
	}
}

func newTestOrchestrator(t *testing.T, extractor domain.Extractor) (*Orchestrator, string) {
	t.Helper()
	base := t.TempDir()
	config := &domain.FetchConfig{
		BaseDir:        base,
		MaxAttempts:    3,
		RetryDelay:     10 * time.Millisecond,
		AttemptTimeout: time.Second,
		Deadline:       5 * time.Second,
	}
	o := NewOrchestrator(extractor, config, zap.NewNop())
	o.wait = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return o, base
}

func assertNoScratchLeft(t *testing.T, base string) {
	t.Helper()
	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory left behind")
}

func audioRequest() domain.FetchRequest {
	return domain.FetchRequest{
		URL:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		VideoID: "dQw4w9WgXcQ",
		Quality: domain.QualityAudioOnly,
	}
}

func videoRequest() domain.FetchRequest {
	req := audioRequest()
	req.Quality = domain.QualityHigh
	return req
}

func TestFetch_PredictedName(t *testing.T) {
	extractor := &stubExtractor{
		info:       &domain.MediaInfo{ID: "dQw4w9WgXcQ", Title: "My Song"},
		transferFn: writeArtifact("My Song.mp3", "audio-bytes"),
	}
	o, base := newTestOrchestrator(t, extractor)

	var states []domain.FetchState
	result, err := o.Fetch(context.Background(), audioRequest(), StateObserver(func(s domain.FetchState) {
		states = append(states, s)
	}))
	require.NoError(t, err)

	assert.Equal(t, "My Song.mp3", result.FileName())
	assert.Equal(t, "My Song", result.Title)
	assert.Equal(t, domain.MediaAudio, result.Kind)
	assert.Equal(t, int64(len("audio-bytes")), result.Size)
	assert.FileExists(t, result.Path)
	assert.Equal(t, []domain.FetchState{domain.StateExtracting, domain.StateFetching, domain.StateConverting}, states)

	require.Len(t, extractor.specs, 1)
	assert.Equal(t, domain.QualityAudioOnly.FormatExpression(), extractor.specs[0].Format)
	assert.Equal(t, filepath.Dir(result.Path), extractor.specs[0].Dir)

	require.NoError(t, result.Release())
	assertNoScratchLeft(t, base)
}

func TestFetch_FallsBackToSingleFile(t *testing.T) {
	extractor := &stubExtractor{
		info:       &domain.MediaInfo{Title: "Clip: part 1"},
		transferFn: writeArtifact("Clip： part 1.mp4", "video-bytes"),
	}
	o, base := newTestOrchestrator(t, extractor)

	result, err := o.Fetch(context.Background(), videoRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Clip： part 1.mp4", result.FileName())
	assert.Equal(t, domain.MediaVideo, result.Kind)

	require.NoError(t, result.Release())
	assertNoScratchLeft(t, base)
}

func TestFetch_UsesVideoIDWhenTitleMissing(t *testing.T) {
	extractor := &stubExtractor{
		info:       &domain.MediaInfo{},
		transferFn: writeArtifact("dQw4w9WgXcQ.mp4", "v"),
	}
	o, _ := newTestOrchestrator(t, extractor)

	result, err := o.Fetch(context.Background(), videoRequest(), nil)
	require.NoError(t, err)
	defer result.Release()
	assert.Equal(t, "dQw4w9WgXcQ", result.Title)
}

func TestFetch_NoFilesProduced(t *testing.T) {
	extractor := &stubExtractor{info: &domain.MediaInfo{Title: "Ghost"}}
	o, base := newTestOrchestrator(t, extractor)

	result, err := o.Fetch(context.Background(), audioRequest(), nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, domain.KindEmptyArtifact, domain.KindOf(err))
	assertNoScratchLeft(t, base)
}

func TestFetch_OnlyPartialFilesProduced(t *testing.T) {
	extractor := &stubExtractor{
		info:       &domain.MediaInfo{Title: "Ghost"},
		transferFn: writeArtifact("Ghost.webm.part", "partial"),
	}
	o, base := newTestOrchestrator(t, extractor)

	_, err := o.Fetch(context.Background(), audioRequest(), nil)
	assert.Equal(t, domain.KindEmptyArtifact, domain.KindOf(err))
	assertNoScratchLeft(t, base)
}

func TestFetch_ZeroByteArtifact(t *testing.T) {
	extractor := &stubExtractor{
		info:       &domain.MediaInfo{Title: "Empty"},
		transferFn: writeArtifact("Empty.mp3", ""),
	}
	o, base := newTestOrchestrator(t, extractor)

	_, err := o.Fetch(context.Background(), audioRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindEmptyArtifact, domain.KindOf(err))
	assertNoScratchLeft(t, base)
}

func TestFetch_AmbiguousArtifacts(t *testing.T) {
	extractor := &stubExtractor{
		info: &domain.MediaInfo{Title: "Twins"},
		transferFn: func(spec domain.TransferSpec, attempt int) error {
			require.NoError(t, os.WriteFile(filepath.Join(spec.Dir, "a.mp4"), []byte("a"), 0644))
			return os.WriteFile(filepath.Join(spec.Dir, "b.mp4"), []byte("b"), 0644)
		},
	}
	o, base := newTestOrchestrator(t, extractor)

	_, err := o.Fetch(context.Background(), videoRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindFetchFailed, domain.KindOf(err))
	assertNoScratchLeft(t, base)
}

func TestFetch_ResolveFailure(t *testing.T) {
	extractor := &stubExtractor{resolveErr: errors.New("Video unavailable")}
	o, base := newTestOrchestrator(t, extractor)

	_, err := o.Fetch(context.Background(), audioRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindSourceUnavailable, domain.KindOf(err))
	assert.Contains(t, err.Error(), "Video unavailable")
	assert.Equal(t, 1, extractor.resolveCalls, "metadata resolution is not retried")
	assert.Equal(t, 0, extractor.transferCalls)
	assertNoScratchLeft(t, base)
}

func TestFetch_ExhaustsAttempts(t *testing.T) {
	extractor := &stubExtractor{
		info: &domain.MediaInfo{Title: "Flaky"},
		transferFn: func(spec domain.TransferSpec, attempt int) error {
			_ = os.WriteFile(filepath.Join(spec.Dir, "Flaky.mp4.part"), []byte("x"), 0644)
			return errors.New("HTTP Error 403: Forbidden")
		},
	}
	o, base := newTestOrchestrator(t, extractor)

	var waits []time.Duration
	o.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_, err := o.Fetch(context.Background(), videoRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindFetchFailed, domain.KindOf(err))
	assert.Contains(t, err.Error(), "3 attempt(s)")
	assert.Equal(t, 3, extractor.transferCalls)
	assert.Equal(t, 1, extractor.resolveCalls)

	require.Len(t, waits, 2)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, waits)
	for i := 1; i < len(waits); i++ {
		assert.GreaterOrEqual(t, waits[i], waits[i-1], "backoff must be non-decreasing")
	}
	assertNoScratchLeft(t, base)
}

func TestFetch_RecoversOnRetry(t *testing.T) {
	extractor := &stubExtractor{
		info: &domain.MediaInfo{Title: "Eventually"},
		transferFn: func(spec domain.TransferSpec, attempt int) error {
			if attempt == 1 {
				_ = os.WriteFile(filepath.Join(spec.Dir, "stale.mp4"), []byte("stale"), 0644)
				return errors.New("connection reset")
			}
			return os.WriteFile(filepath.Join(spec.Dir, "Eventually.mp4"), []byte("good"), 0644)
		},
	}
	o, base := newTestOrchestrator(t, extractor)
	o.wait = func(ctx context.Context, d time.Duration) error { return nil }

	result, err := o.Fetch(context.Background(), videoRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, extractor.transferCalls)
	assert.Equal(t, "Eventually.mp4", result.FileName())
	assert.NoFileExists(t, filepath.Join(filepath.Dir(result.Path), "stale.mp4"))

	require.NoError(t, result.Release())
	assertNoScratchLeft(t, base)
}

func TestFetch_CancelledDuringBackoff(t *testing.T) {
	extractor := &stubExtractor{
		info: &domain.MediaInfo{Title: "Slow"},
		transferFn: func(spec domain.TransferSpec, attempt int) error {
			return errors.New("timeout")
		},
	}
	o, base := newTestOrchestrator(t, extractor)

	ctx, cancel := context.WithCancel(context.Background())
	o.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := o.Fetch(ctx, videoRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindFetchFailed, domain.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, extractor.transferCalls)
	assertNoScratchLeft(t, base)
}

// fetchOutcome is what a concurrent Fetch returned
type fetchOutcome struct {
	result *domain.FetchResult
	err    error
}

// extractingSignal closes entered once the workflow reaches the extracting state
func extractingSignal(entered chan struct{}) Observer {
	var once sync.Once
	return StateObserver(func(s domain.FetchState) {
		if s == domain.StateExtracting {
			once.Do(func() { close(entered) })
		}
	})
}

func TestFetch_CoalescesConcurrentResolves(t *testing.T) {
	release := make(chan struct{})
	extractor := &stubExtractor{
		resolveFn: func(ctx context.Context) (*domain.MediaInfo, error) {
			<-release
			return &domain.MediaInfo{ID: "dQw4w9WgXcQ", Title: "My Song"}, nil
		},
		transferFn: writeArtifact("My Song.mp3", "audio-bytes"),
	}
	o, base := newTestOrchestrator(t, extractor)

	const callers = 3
	outcomes := make(chan fetchOutcome, callers)
	for i := 0; i < callers; i++ {
		entered := make(chan struct{})
		go func() {
			result, err := o.Fetch(context.Background(), audioRequest(), extractingSignal(entered))
			outcomes <- fetchOutcome{result, err}
		}()
		<-entered
	}
	// Give the last caller time to join the in-flight lookup
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < callers; i++ {
		out := <-outcomes
		require.NoError(t, out.err)
		assert.Equal(t, "My Song.mp3", out.result.FileName())
		require.NoError(t, out.result.Release())
	}

	extractor.mu.Lock()
	defer extractor.mu.Unlock()
	assert.Equal(t, 1, extractor.resolveCalls)
	assert.Equal(t, callers, extractor.transferCalls)
	assertNoScratchLeft(t, base)
}

func TestFetch_ResolveSurvivesCancelledPeer(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	extractor := &stubExtractor{
		resolveFn: func(ctx context.Context) (*domain.MediaInfo, error) {
			once.Do(func() { close(started) })
			select {
			case <-release:
				return &domain.MediaInfo{ID: "dQw4w9WgXcQ", Title: "My Song"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
		transferFn: writeArtifact("My Song.mp3", "audio-bytes"),
	}
	o, base := newTestOrchestrator(t, extractor)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	outA := make(chan fetchOutcome, 1)
	go func() {
		result, err := o.Fetch(ctxA, audioRequest(), nil)
		outA <- fetchOutcome{result, err}
	}()
	<-started

	enteredB := make(chan struct{})
	outB := make(chan fetchOutcome, 1)
	go func() {
		result, err := o.Fetch(context.Background(), audioRequest(), extractingSignal(enteredB))
		outB <- fetchOutcome{result, err}
	}()
	<-enteredB
	time.Sleep(50 * time.Millisecond)

	// A leaves while the shared lookup is still running
	cancelA()
	a := <-outA
	require.Error(t, a.err)
	assert.Equal(t, domain.KindFetchFailed, domain.KindOf(a.err), "own cancellation is not a source error")
	assert.ErrorIs(t, a.err, context.Canceled)

	close(release)
	b := <-outB
	require.NoError(t, b.err)
	assert.Equal(t, "My Song.mp3", b.result.FileName())
	require.NoError(t, b.result.Release())

	extractor.mu.Lock()
	assert.Equal(t, 1, extractor.resolveCalls)
	assert.Equal(t, 1, extractor.transferCalls, "cancelled request never transfers")
	extractor.mu.Unlock()
	assertNoScratchLeft(t, base)
}

func TestFetch_AttemptTimeoutRetries(t *testing.T) {
	extractor := &stubExtractor{
		info: &domain.MediaInfo{ID: "dQw4w9WgXcQ", Title: "My Song"},
		blockingFn: func(ctx context.Context, spec domain.TransferSpec, attempt int) error {
			if attempt == 1 {
				<-ctx.Done()
				return ctx.Err()
			}
			return writeArtifact("My Song.mp3", "audio-bytes")(spec, attempt)
		},
	}
	o, base := newTestOrchestrator(t, extractor)
	o.config.AttemptTimeout = 50 * time.Millisecond

	result, err := o.Fetch(context.Background(), audioRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "My Song.mp3", result.FileName())
	assert.Equal(t, 2, extractor.transferCalls)

	require.NoError(t, result.Release())
	assertNoScratchLeft(t, base)
}

func TestFetch_DeadlineStopsTransfer(t *testing.T) {
	extractor := &stubExtractor{
		info: &domain.MediaInfo{ID: "dQw4w9WgXcQ", Title: "My Song"},
		blockingFn: func(ctx context.Context, spec domain.TransferSpec, attempt int) error {
			require.NoError(t, os.WriteFile(filepath.Join(spec.Dir, "My Song.mp3.part"), []byte("partial"), 0644))
			<-ctx.Done()
			return ctx.Err()
		},
	}
	o, base := newTestOrchestrator(t, extractor)
	o.wait = sleepContext
	o.config.AttemptTimeout = 0
	o.config.Deadline = 100 * time.Millisecond

	start := time.Now()
	_, err := o.Fetch(context.Background(), audioRequest(), nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.KindFetchFailed, domain.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, extractor.transferCalls, "no retry once the deadline passed")
	assertNoScratchLeft(t, base)
}

func TestFetch_DeadlineDuringResolve(t *testing.T) {
	extractor := &stubExtractor{
		resolveFn: func(ctx context.Context) (*domain.MediaInfo, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	o, base := newTestOrchestrator(t, extractor)
	o.config.Deadline = 50 * time.Millisecond
	o.config.AttemptTimeout = 200 * time.Millisecond

	_, err := o.Fetch(context.Background(), audioRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindFetchFailed, domain.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, extractor.transferCalls)
	assertNoScratchLeft(t, base)
}

func TestFetch_ScratchCreationFailure(t *testing.T) {
	base := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(base, []byte("not a dir"), 0644))

	o := NewOrchestrator(&stubExtractor{}, &domain.FetchConfig{BaseDir: base, MaxAttempts: 1}, nil)
	_, err := o.Fetch(context.Background(), videoRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKind(""), domain.KindOf(err), "infrastructure errors are unclassified")
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestPredictFileName(t *testing.T) {
	assert.Equal(t, "My Song.mp3", PredictFileName("My Song", "mp3"))
	assert.Equal(t, "AC_DC - Live.mp4", PredictFileName("AC/DC - Live", "mp4"))
	assert.Equal(t, "video.mp4", PredictFileName("  ", "mp4"))
}
