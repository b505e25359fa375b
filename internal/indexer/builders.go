package indexer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"imgdb/internal/database"
	"imgdb/internal/logging"
	"imgdb/internal/media"
	"imgdb/internal/metrics"
	"imgdb/internal/workers"
)

// BuildReport summarizes one feature builder pass.
type BuildReport struct {
	Candidates  int  `json:"candidates"`
	Built       int  `json:"built"`
	Failed      int  `json:"failed"`
	Interrupted bool `json:"interrupted"`
}

// TextRecognizer extracts text from images. *media.TextEngine implements it.
type TextRecognizer interface {
	Recognize(ctx context.Context, path, lang string) (string, error)
	Languages(ctx context.Context) ([]string, error)
}

// featureSpec describes one feature builder. compute runs on the workers
// and must not touch the store; insert runs on the coordinator.
type featureSpec[R any] struct {
	stage      Stage
	candidates func(ctx context.Context, batch Batch) ([]database.Candidate, error)
	compute    workers.Func[database.Candidate, R]
	insert     func(ctx context.Context, batch Batch, c database.Candidate, value R) error
	// external marks builders that mostly wait on a child process.
	external bool
}

// BuildDHashes computes the dhash of every hashed file that has none.
func (idx *Indexer) BuildDHashes(ctx context.Context) (report BuildReport, err error) {
	defer idx.track(StageDHash, time.Now(), &err)

	return runBuilder(ctx, idx, featureSpec[string]{
		stage: StageDHash,
		candidates: func(ctx context.Context, batch Batch) ([]database.Candidate, error) {
			return batch.DHashCandidates(ctx)
		},
		compute: func(_ context.Context, c database.Candidate) (string, error) {
			return idx.computeDHash(c.Path)
		},
		insert: func(ctx context.Context, batch Batch, c database.Candidate, value string) error {
			return batch.InsertDHash(ctx, database.DHashFeature{
				Hash:     c.Hash,
				Size:     c.Size,
				HashSize: media.DHashSize,
				Value:    value,
			})
		},
	})
}

// BuildPalettes computes the palette signature of every hashed file that
// has none.
func (idx *Indexer) BuildPalettes(ctx context.Context) (report BuildReport, err error) {
	defer idx.track(StagePalette, time.Now(), &err)

	return runBuilder(ctx, idx, featureSpec[string]{
		stage: StagePalette,
		candidates: func(ctx context.Context, batch Batch) ([]database.Candidate, error) {
			return batch.PaletteCandidates(ctx)
		},
		compute: func(_ context.Context, c database.Candidate) (string, error) {
			return idx.computePalette(c.Path)
		},
		insert: func(ctx context.Context, batch Batch, c database.Candidate, value string) error {
			return batch.InsertPalette(ctx, database.PaletteFeature{
				Hash:      c.Hash,
				Size:      c.Size,
				Signature: value,
			})
		},
	})
}

// BuildOcr recognizes the text of every hashed file that has no OCR row for
// lang. An empty lang uses the configured language.
func (idx *Indexer) BuildOcr(ctx context.Context, lang string) (report BuildReport, err error) {
	defer idx.track(StageOcr, time.Now(), &err)

	if lang == "" {
		lang = idx.opts.OcrLanguage
	}
	idx.checkLanguage(ctx, lang)

	return runBuilder(ctx, idx, featureSpec[string]{
		stage:    StageOcr,
		external: true,
		candidates: func(ctx context.Context, batch Batch) ([]database.Candidate, error) {
			return batch.OcrCandidates(ctx, lang)
		},
		compute: func(ctx context.Context, c database.Candidate) (string, error) {
			return idx.text.Recognize(ctx, c.Path, lang)
		},
		insert: func(ctx context.Context, batch Batch, c database.Candidate, value string) error {
			return batch.InsertOcr(ctx, database.OcrFeature{
				Hash: c.Hash,
				Size: c.Size,
				Lang: lang,
				Text: value,
			})
		},
	})
}

// checkLanguage warns when the text engine does not list lang.
func (idx *Indexer) checkLanguage(ctx context.Context, lang string) {
	langs, err := idx.text.Languages(ctx)
	if err != nil {
		logging.Warn("Could not list text engine languages: %v", err)
		return
	}
	if !slices.Contains(langs, lang) {
		logging.Warn("Text engine does not list language %q (available: %v)", lang, langs)
	}
}

// runBuilder selects candidates, computes their features on the worker
// pool and inserts every successful result in one transaction. Failed
// candidates are logged and skipped. When the pass stops early, on
// interruption or on a failed insert, the rows already inserted are
// committed before the error is returned.
func runBuilder[R any](ctx context.Context, idx *Indexer, feature featureSpec[R]) (report BuildReport, err error) {
	name := string(feature.stage)
	dbCtx := context.WithoutCancel(ctx)

	batch, err := idx.store.Begin(dbCtx)
	if err != nil {
		return BuildReport{}, err
	}

	// stopErr is reported after a successful commit.
	var stopErr error
	defer func() {
		err = batch.End(err)
		if err == nil && stopErr != nil {
			err = stopErr
		}
	}()

	candidates, err := feature.candidates(dbCtx, batch)
	if err != nil {
		return BuildReport{}, fmt.Errorf("failed to list %s candidates: %w", name, err)
	}
	report.Candidates = len(candidates)
	metrics.FeatureCandidates.WithLabelValues(name).Set(float64(len(candidates)))

	if len(candidates) == 0 {
		logging.Info("No %s candidates", name)
		return report, nil
	}

	// poolCtx stops the workers early when an insert fails.
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	compute := func(ctx context.Context, c database.Candidate) (R, error) {
		if err := idx.opts.Memory.Wait(ctx); err != nil {
			var zero R
			return zero, err
		}
		return feature.compute(ctx, c)
	}

	size := idx.workerCount()
	if feature.external {
		size = workers.ForIO(idx.opts.Workers)
	}
	pool := workers.NewPool(size, compute)
	logging.Info("Building %s for %d candidate(s) with %d worker(s)", name, len(candidates), pool.Size())

	var insertErr error
	for result := range pool.Run(poolCtx, candidates) {
		if insertErr != nil {
			continue
		}

		if result.Err != nil {
			// Once ctx is done a failure may be the interruption itself;
			// the candidate is left for the next pass.
			if ctx.Err() != nil {
				continue
			}
			report.Failed++
			metrics.FeatureResultsTotal.WithLabelValues(name, "failed").Inc()
			logging.Warn("Skipping %s for %s: %v", name, result.Job.Path, result.Err)
			continue
		}

		metrics.FeatureComputeDuration.WithLabelValues(name).Observe(result.Duration.Seconds())
		if err := feature.insert(dbCtx, batch, result.Job, result.Value); err != nil {
			insertErr = fmt.Errorf("failed to store %s for %s: %w", name, result.Job.Path, err)
			cancel()
			continue
		}
		report.Built++
		metrics.FeatureResultsTotal.WithLabelValues(name, "built").Inc()
		idx.progress(feature.stage, report.Built+report.Failed, len(candidates))
	}

	if insertErr != nil {
		stopErr = insertErr
		logging.Error("%s stopped: saving %d stored result(s): %v", name, report.Built, insertErr)
		return report, nil
	}

	if ctx.Err() != nil && report.Built+report.Failed < len(candidates) {
		report.Interrupted = true
		stopErr = interrupted(ctx)
		logging.Warn("%s interrupted: saving %d of %d result(s)", name, report.Built, len(candidates))
		return report, nil
	}

	logging.Info("Built %s: %d stored, %d failed", name, report.Built, report.Failed)
	return report, nil
}
