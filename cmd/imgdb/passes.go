package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"imgdb/internal/indexer"
)

func newScanCmd(opts *globalOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Walk the image roots and reconcile the catalog with the filesystem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				report, err := a.idx.Scan(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "New: %d, Changed: %d, Deleted: %d\n",
					len(report.New), len(report.Changed), len(report.Deleted))
				if list {
					printPaths(out, "+", report.New)
					printPaths(out, "~", report.Changed)
					printPaths(out, "-", report.Deleted)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print every new, changed and deleted path")
	return cmd
}

func printPaths(w io.Writer, marker string, paths []string) {
	for _, p := range paths {
		fmt.Fprintf(w, "%s %s\n", marker, p)
	}
}

func newHashCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Compute the SHA-256 content hash of every unhashed file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				report, err := a.idx.BuildHashes(ctx)
				if report.Candidates > 0 || err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Hashed: %d of %d\n", report.Hashed, report.Candidates)
				}
				return err
			})
		},
	}
}

func newDHashCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dhash",
		Short: "Compute the perceptual difference hash of every new content hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				report, err := a.idx.BuildDHashes(ctx)
				printBuildReport(cmd.OutOrStdout(), indexer.StageDHash, report)
				return err
			})
		},
	}
}

func newPaletteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "palette",
		Short: "Compute the color palette signature of every new content hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				report, err := a.idx.BuildPalettes(ctx)
				printBuildReport(cmd.OutOrStdout(), indexer.StagePalette, report)
				return err
			})
		},
	}
}

func newOcrCmd(opts *globalOptions) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "ocr",
		Short: "Recognize the text of every content hash without OCR for a language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				report, err := a.idx.BuildOcr(ctx, lang)
				printBuildReport(cmd.OutOrStdout(), indexer.StageOcr, report)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "OCR language (default from config)")
	return cmd
}

func printBuildReport(w io.Writer, stage indexer.Stage, r indexer.BuildReport) {
	if r.Candidates == 0 && r.Built == 0 && r.Failed == 0 {
		fmt.Fprintf(w, "%s: nothing to do\n", stage)
		return
	}
	fmt.Fprintf(w, "%s: built %d of %d, failed %d\n", stage, r.Built, r.Candidates, r.Failed)
}

func newDedupCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dedup",
		Short: "Remove duplicate feature rows left by imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				report, err := a.idx.Dedup(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed duplicates: %d dhashes, %d palettes, %d ocr rows\n",
					report.DHashes, report.Palettes, report.Ocr)
				return nil
			})
		},
	}
}

func newKillCmd(opts *globalOptions) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:       "kill dhash|palette|ocr",
		Short:     "Delete every row of one feature so it is rebuilt on the next pass",
		ValidArgs: []string{string(indexer.StageDHash), string(indexer.StagePalette), string(indexer.StageOcr)},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if lang != "" && args[0] != string(indexer.StageOcr) {
				return fmt.Errorf("--lang only applies to ocr")
			}
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				var n int64
				var err error
				switch indexer.Stage(args[0]) {
				case indexer.StageDHash:
					n, err = a.idx.KillDHashes(ctx)
				case indexer.StagePalette:
					n, err = a.idx.KillPalettes(ctx)
				case indexer.StageOcr:
					n, err = a.idx.KillOcr(ctx, lang)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d %s row(s)\n", n, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "only delete OCR rows of this language")
	return cmd
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline stages in order",
		Long: `Run the pipeline stages in order, stopping at the first failure.
Without --stages the full pipeline runs: ` + stageList(indexer.DefaultStages) + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stages, err := parseStages(names)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, decodesImages(stages), func(ctx context.Context, a *app) error {
				if err := a.idx.Run(ctx, stages...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Completed: %s\n", stageList(stages))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&names, "stages", nil, "comma-separated stages to run (scan, hash, dhash, palette, ocr, dedup)")
	return cmd
}

// parseStages validates stage names. No names selects the default pipeline.
func parseStages(names []string) ([]indexer.Stage, error) {
	if len(names) == 0 {
		return indexer.DefaultStages, nil
	}
	stages := make([]indexer.Stage, 0, len(names))
	for _, name := range names {
		stage, err := indexer.ParseStage(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func stageList(stages []indexer.Stage) string {
	return strings.Join(lo.Map(stages, func(s indexer.Stage, _ int) string { return string(s) }), ", ")
}
