package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"imgdb/internal/database"
	"imgdb/internal/indexer"
	"imgdb/internal/logging"
	"imgdb/internal/media"
	"imgdb/internal/memory"
	"imgdb/internal/mediatypes"
	"imgdb/internal/startup"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	verbose    bool
	workers    int
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "imgdb",
		Short: "Catalog image files by content hash and visual features",
		Long: `imgdb keeps a SQLite catalog of the images under the configured roots:
their content hashes, perceptual hashes, color palettes and recognized text.
Every pass is incremental and can be interrupted without losing finished work.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.verbose && opts.logLevel == "" {
				opts.logLevel = "debug"
			}
			if opts.logLevel == "" {
				return nil
			}
			level, ok := logging.ParseLevel(opts.logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q (want debug, info, warn or error)", opts.logLevel)
			}
			logging.SetLevel(level)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", startup.DefaultConfigFile, "configuration file (JSON or YAML)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (default from LOG_LEVEL)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging, same as --log-level debug")
	flags.IntVar(&opts.workers, "workers", 0, "feature builder workers, 0 for one per CPU (overrides config)")

	root.AddCommand(
		newScanCmd(opts),
		newHashCmd(opts),
		newDHashCmd(opts),
		newPaletteCmd(opts),
		newOcrCmd(opts),
		newDedupCmd(opts),
		newKillCmd(opts),
		newRunCmd(opts),
		newStatusCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

// app holds everything a command works against. Close releases it.
type app struct {
	cfg      *startup.Config
	db       *database.Database
	idx      *indexer.Indexer
	text     *media.TextEngine
	memory   *memory.Monitor
	progress *progressPrinter
	decoder  bool
}

// openApp loads the configuration and opens the catalog. withDecoder also
// starts libvips and the memory monitor for passes that decode images.
func openApp(cmd *cobra.Command, opts *globalOptions, withDecoder bool) (*app, error) {
	cfg, err := startup.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("workers") {
		if opts.workers < 0 {
			return nil, fmt.Errorf("--workers must be >= 0, got %d", opts.workers)
		}
		cfg.Workers = opts.workers
	}

	if err := startup.PrepareStore(cfg.StoreLocation); err != nil {
		return nil, err
	}
	db, err := database.New(cmd.Context(), cfg.StoreLocation)
	if err != nil {
		if errors.Is(err, database.ErrLocked) {
			return nil, fmt.Errorf("%w: is another imgdb running against %s?", err, cfg.StoreLocation)
		}
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		text:     media.NewTextEngine(cfg.TextEngineCommand),
		progress: newProgressPrinter(cmd.ErrOrStderr(), isTerminal(os.Stderr)),
		decoder:  withDecoder,
	}

	if withDecoder {
		memory.ConfigureFromEnv()
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, formats without a Go decoder will be skipped: %v", err)
		}
		a.memory = memory.NewMonitor(memory.DefaultConfig())
		a.memory.Start()
	}

	a.idx = indexer.New(indexer.NewCatalogStore(db), indexer.Options{
		Roots:         cfg.Paths,
		ExcludedPaths: cfg.ExcludedPaths,
		Extensions:    mediatypes.NewExtensions(cfg.Extensions),
		OcrLanguage:   cfg.OcrLanguage,
		TextEngine:    a.text,
		Workers:       cfg.Workers,
		Memory:        a.memory,
		OnProgress:    a.progress.Update,
	})
	return a, nil
}

func (a *app) Close() {
	a.progress.Done()
	a.idx.Stop()
	a.memory.Stop()
	if a.decoder {
		media.ShutdownVips()
	}
	if err := a.db.Close(); err != nil {
		logging.Warn("Failed to close catalog: %v", err)
	}
}

// withApp opens the app, runs fn and closes it again.
func withApp(cmd *cobra.Command, opts *globalOptions, withDecoder bool, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd, opts, withDecoder)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// decodesImages reports whether any of stages loads pixel data.
func decodesImages(stages []indexer.Stage) bool {
	return slices.ContainsFunc(stages, func(s indexer.Stage) bool {
		return s == indexer.StageDHash || s == indexer.StagePalette
	})
}
