package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hurou927/hydro-catalog/internal/extract"
	"github.com/hurou927/hydro-catalog/internal/pfb"
)

var (
	outputPath string
	dryRun     bool
)

var readCmd = &cobra.Command{
	Use:   "read [key=value...]",
	Short: "Read a subset of the gridded data of one catalog entry",
	Long: `Resolves one catalog entry from the key=value filter, expands its file path
template over the requested time range, and reads the requested grid window.
The result is written as a little-endian binary tensor when --out is given;
a summary goes to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseOptions(args)
		if err != nil {
			return err
		}
		extractor := extract.New(newHandle(), newReader(), logger)

		if dryRun {
			p, err := extractor.Plan(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "entry %s: %d file(s)\n", p.Entry.ID(), len(p.Paths))
			for _, path := range p.Paths {
				fmt.Fprintln(os.Stdout, path)
			}
			return nil
		}

		res, err := extractor.Extract(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			bw := bufio.NewWriter(f)
			if err := res.Data.WriteBinary(bw); err != nil {
				f.Close()
				return fmt.Errorf("writing output file: %w", err)
			}
			if err := bw.Flush(); err != nil {
				f.Close()
				return fmt.Errorf("writing output file: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
		}

		fmt.Fprintln(os.Stderr, "Read complete:")
		for _, line := range res.Summary() {
			fmt.Fprintln(os.Stderr, line)
		}
		if outputPath != "" {
			fmt.Fprintf(os.Stderr, "Output written to: %s\n", outputPath)
		}
		return nil
	},
}

func init() {
	readCmd.Flags().StringVar(&outputPath, "out", "", "write the tensor to this file")
	readCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the files without reading them")
	rootCmd.AddCommand(readCmd)
}

func newReader() *pfb.Reader {
	return &pfb.Reader{
		MaxElements: cfg.Reader.MaxElements,
		MaxWorkers:  cfg.Reader.MaxWorkers,
		Logger:      logger,
	}
}
