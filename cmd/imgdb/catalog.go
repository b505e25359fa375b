package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"imgdb/internal/database"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				stats, err := a.idx.Stats(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "\t")
					return enc.Encode(stats)
				}
				fmt.Fprintf(out, "Catalog:   %s\n", a.cfg.StoreLocation)
				fmt.Fprintf(out, "Files:     %d\n", stats.Files)
				fmt.Fprintf(out, "Unhashed:  %d\n", stats.Unhashed)
				fmt.Fprintf(out, "DHashes:   %d\n", stats.DHashes)
				fmt.Fprintf(out, "Palettes:  %d\n", stats.Palettes)
				fmt.Fprintf(out, "OCR rows:  %d\n", stats.Ocr)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the counts as JSON")
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the catalog as JSON (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				doc, err := a.db.ExportDocument(ctx)
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(doc, "", "\t")
				if err != nil {
					return fmt.Errorf("failed to encode catalog: %w", err)
				}
				data = append(data, '\n')

				if args[0] == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(args[0], data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d files to %s\n", len(doc.Files), args[0])
				return nil
			})
		},
	}
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	var dedup bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a JSON catalog export into the catalog (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				if err := a.db.ImportDocument(ctx, doc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d files, %d dhashes, %d palettes, %d ocr rows\n",
					len(doc.Files), len(doc.DHashes), len(doc.Palettes), len(doc.Ocr))

				if !dedup {
					return nil
				}
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
	cmd.Flags().BoolVar(&dedup, "dedup", true, "remove duplicate feature rows after importing")
	return cmd
}

func readDocument(stdin io.Reader, name string) (*database.Document, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	var doc database.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return &doc, nil
}
