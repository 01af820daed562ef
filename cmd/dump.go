package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hurou927/hydro-catalog/internal/catalog"
	"github.com/hurou927/hydro-catalog/internal/sqlstore"
)

var dumpOutput string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write the catalog as a psql script",
	Long:  `Writes the catalog tables in topological order as a psql script of CREATE statements and COPY blocks, followed by the foreign key constraints.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := catalog.ReadDir(cfg.Catalog.Dir)
		if err != nil {
			return err
		}

		w := os.Stdout
		if dumpOutput != "" && dumpOutput != "-" {
			w, err = os.Create(dumpOutput)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer w.Close()
		}
		bw := bufio.NewWriter(w)
		n, err := sqlstore.Dump(bw, cfg.Export.Schema, m)
		if err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		if dumpOutput != "" && dumpOutput != "-" {
			fmt.Fprintf(os.Stderr, "Output written to: %s (%d rows)\n", dumpOutput, n)
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpOutput, "output", "", "output file path (stdout when empty)")
	rootCmd.AddCommand(dumpCmd)
}
