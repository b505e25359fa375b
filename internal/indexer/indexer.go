package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"imgdb/internal/database"
	"imgdb/internal/filesystem"
	"imgdb/internal/logging"
	"imgdb/internal/media"
	"imgdb/internal/memory"
	"imgdb/internal/mediatypes"
	"imgdb/internal/metrics"
	"imgdb/internal/workers"
)

// Stage names one step of the indexing pipeline.
type Stage string

// Pipeline stages, in run order.
const (
	StageScan    Stage = "scan"
	StageHash    Stage = "hash"
	StageDHash   Stage = "dhash"
	StagePalette Stage = "palette"
	StageOcr     Stage = "ocr"
	StageDedup   Stage = "dedup"
)

// DefaultStages is the full pipeline run by Run when no stages are given.
var DefaultStages = []Stage{StageScan, StageHash, StageDHash, StagePalette, StageOcr}

// DefaultOcrLanguage is used when Options.OcrLanguage is empty.
const DefaultOcrLanguage = "eng"

// ProgressFunc receives progress updates. total is 0 when unknown.
type ProgressFunc func(stage Stage, done, total int)

// Options configures an Indexer.
type Options struct {
	Roots         []string
	ExcludedPaths []string
	Extensions    mediatypes.Extensions
	OcrLanguage   string
	TextEngine    TextRecognizer
	// Workers caps the feature builder pool. 0 sizes it to the host.
	Workers int
	Retry   filesystem.RetryConfig
	// Memory, when set, holds feature workers back under memory pressure.
	Memory     *memory.Monitor
	OnProgress ProgressFunc
}

// Indexer runs the pipeline stages against a Store.
type Indexer struct {
	store   Store
	opts    Options
	scanner *Scanner
	text    TextRecognizer

	computeDHash   func(path string) (string, error)
	computePalette func(path string) (string, error)

	runMu    sync.Mutex
	running  bool
	baseCtx  context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once

	stateMu   sync.Mutex
	startTime time.Time
	lastRun   time.Time
	lastErr   error
	current   Stage
	completed bool
}

// New creates an Indexer. Zero-valued options fall back to the defaults.
func New(store Store, opts Options) *Indexer {
	if opts.Extensions.Len() == 0 {
		opts.Extensions = mediatypes.NewExtensions(mediatypes.DefaultExtensions)
	}
	if opts.OcrLanguage == "" {
		opts.OcrLanguage = DefaultOcrLanguage
	}
	if opts.TextEngine == nil {
		opts.TextEngine = media.NewTextEngine(nil)
	}
	if opts.Retry == (filesystem.RetryConfig{}) {
		opts.Retry = filesystem.DefaultRetryConfig()
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &Indexer{
		baseCtx:        baseCtx,
		cancel:         cancel,
		store:          store,
		opts:           opts,
		scanner:        NewScanner(opts.Roots, opts.ExcludedPaths, opts.Extensions, opts.Retry),
		text:           opts.TextEngine,
		computeDHash:   media.ComputeDHash,
		computePalette: media.ComputePalette,
		stopChan:       make(chan struct{}),
		startTime:      time.Now(),
	}
}

// Run executes stages in order, or DefaultStages when none are given. It
// stops at the first failing stage. Only one Run may be active at a time;
// a concurrent call returns ErrBusy.
func (idx *Indexer) Run(ctx context.Context, stages ...Stage) error {
	if !idx.tryStart() {
		return ErrBusy
	}
	defer idx.finish()

	return idx.run(ctx, stages)
}

// run executes a run already reserved with tryStart.
func (idx *Indexer) run(ctx context.Context, stages []Stage) error {
	if len(stages) == 0 {
		stages = DefaultStages
	}

	metrics.StageRunning.Set(1)
	defer metrics.StageRunning.Set(0)

	start := time.Now()
	logging.Info("Starting pipeline run: %v", stages)

	err := idx.runStages(ctx, stages)

	idx.stateMu.Lock()
	idx.lastRun = time.Now()
	idx.lastErr = err
	idx.current = ""
	if err == nil {
		idx.completed = true
	}
	idx.stateMu.Unlock()

	if err != nil {
		return err
	}
	logging.Info("Pipeline run complete in %v", time.Since(start))
	return nil
}

func (idx *Indexer) runStages(ctx context.Context, stages []Stage) error {
	for _, stage := range stages {
		if ctx.Err() != nil {
			return interrupted(ctx)
		}

		idx.stateMu.Lock()
		idx.current = stage
		idx.stateMu.Unlock()

		var err error
		switch stage {
		case StageScan:
			_, err = idx.Scan(ctx)
		case StageHash:
			_, err = idx.BuildHashes(ctx)
		case StageDHash:
			_, err = idx.BuildDHashes(ctx)
		case StagePalette:
			_, err = idx.BuildPalettes(ctx)
		case StageOcr:
			_, err = idx.BuildOcr(ctx, "")
		case StageDedup:
			_, err = idx.Dedup(ctx)
		default:
			err = fmt.Errorf("unknown stage %q", stage)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", stage, err)
		}
	}
	return nil
}

// ParseStage validates a stage name.
func ParseStage(name string) (Stage, error) {
	switch stage := Stage(name); stage {
	case StageScan, StageHash, StageDHash, StagePalette, StageOcr, StageDedup:
		return stage, nil
	}
	return "", fmt.Errorf("unknown stage %q", name)
}

// Start runs the full pipeline in the background immediately and then on
// every interval. A zero interval runs it once.
func (idx *Indexer) Start(interval time.Duration) {
	go func() {
		logging.Info("Starting initial pipeline run in background...")
		idx.runLogged(idx.baseCtx, "Initial")

		if interval <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logging.Debug("Periodic pipeline run triggered")
				idx.runLogged(idx.baseCtx, "Periodic")
			case <-idx.stopChan:
				logging.Info("Periodic pipeline runs stopped")
				return
			}
		}
	}()
}

// Stop interrupts the active background run, if any, and ends periodic
// runs.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() {
		close(idx.stopChan)
		idx.cancel()
	})
}

// TriggerRun starts a full pipeline run in the background. It returns
// ErrBusy when a run is already in progress. The run is reserved before
// TriggerRun returns, so concurrent triggers start at most one run.
func (idx *Indexer) TriggerRun() error {
	if !idx.tryStart() {
		return ErrBusy
	}
	go func() {
		defer idx.finish()
		logRun("Triggered", idx.run(idx.baseCtx, nil))
	}()
	return nil
}

func (idx *Indexer) runLogged(ctx context.Context, kind string) {
	logRun(kind, idx.Run(ctx))
}

func logRun(kind string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrBusy):
		logging.Info("%s pipeline run skipped: run already in progress", kind)
	case errors.Is(err, ErrInterrupted):
		logging.Warn("%s pipeline run interrupted: %v", kind, err)
	default:
		logging.Error("%s pipeline run failed: %v", kind, err)
	}
}

// IsRunning reports whether a pipeline run is in progress.
func (idx *Indexer) IsRunning() bool {
	idx.runMu.Lock()
	defer idx.runMu.Unlock()
	return idx.running
}

// IsReady reports whether at least one full run has completed.
func (idx *Indexer) IsReady() bool {
	idx.stateMu.Lock()
	defer idx.stateMu.Unlock()
	return idx.completed
}

// Stats returns the current catalog counts.
func (idx *Indexer) Stats(ctx context.Context) (database.Stats, error) {
	return idx.store.Stats(ctx)
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready        bool      `json:"ready"`
	Running      bool      `json:"running"`
	CurrentStage Stage     `json:"currentStage,omitempty"`
	StartTime    time.Time `json:"startTime"`
	Uptime       string    `json:"uptime"`
	LastRun      time.Time `json:"lastRun,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	running := idx.IsRunning()

	idx.stateMu.Lock()
	defer idx.stateMu.Unlock()

	status := HealthStatus{
		Ready:     idx.completed,
		Running:   running,
		StartTime: idx.startTime,
		Uptime:    time.Since(idx.startTime).String(),
		LastRun:   idx.lastRun,
	}
	if running {
		status.CurrentStage = idx.current
	}
	if idx.lastErr != nil {
		status.LastError = idx.lastErr.Error()
	}
	return status
}

func (idx *Indexer) tryStart() bool {
	idx.runMu.Lock()
	defer idx.runMu.Unlock()

	if idx.running {
		return false
	}
	idx.running = true
	return true
}

func (idx *Indexer) finish() {
	idx.runMu.Lock()
	defer idx.runMu.Unlock()
	idx.running = false
}

func (idx *Indexer) workerCount() int {
	return workers.ForCPU(idx.opts.Workers)
}

func (idx *Indexer) progress(stage Stage, done, total int) {
	if idx.opts.OnProgress != nil {
		idx.opts.OnProgress(stage, done, total)
	}
}

// track records the outcome and duration of one stage. It must be deferred
// with a pointer to the stage's named error result.
func (idx *Indexer) track(stage Stage, start time.Time, errp *error) {
	name := string(stage)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	outcome := "success"
	switch err := *errp; {
	case err == nil:
		metrics.StageLastRunTimestamp.WithLabelValues(name).Set(float64(time.Now().Unix()))
	case errors.Is(err, ErrInterrupted):
		outcome = "interrupted"
	default:
		outcome = "error"
	}
	metrics.StageRunsTotal.WithLabelValues(name, outcome).Inc()
}
