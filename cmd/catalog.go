package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurou927/hydro-catalog/internal/catalog"
	"github.com/hurou927/hydro-catalog/internal/expand"
	"github.com/hurou927/hydro-catalog/internal/extract"
	"github.com/hurou927/hydro-catalog/internal/resolve"
)

func printRow(w io.Writer, row *catalog.Row) {
	fields := make([]string, 0, len(row.Columns()))
	for _, col := range row.Columns() {
		if col == "id" {
			continue
		}
		if v := row.String(col); v != "" {
			fields = append(fields, col+"="+v)
		}
	}
	fmt.Fprintf(w, "%s\t%s\n", row.ID(), strings.Join(fields, " "))
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List catalog tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newHandle().Model(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range m.TableNames() {
			fmt.Fprintf(os.Stdout, "%s\t%d rows\n", name, len(m.Table(name).Rows()))
		}
		return nil
	},
}

var rowsCmd = &cobra.Command{
	Use:   "rows <table> [key=value...]",
	Short: "List the rows of a catalog table matching a filter",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := parseOptions(args[1:])
		if err != nil {
			return err
		}
		m, err := newHandle().Model(cmd.Context())
		if err != nil {
			return err
		}
		rows, err := catalog.TableRows(m, args[0], filter)
		if err != nil {
			return err
		}
		for _, row := range rows {
			printRow(os.Stdout, row)
		}
		return nil
	},
}

var entriesCmd = &cobra.Command{
	Use:   "entries [key=value...]",
	Short: "List the catalog entries matching a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseOptions(args)
		if err != nil {
			return err
		}
		rows, err := resolve.New(newHandle()).Many(cmd.Context(), resolve.ParseFilter(opts))
		if err != nil {
			return err
		}
		for _, row := range rows {
			printRow(os.Stdout, row)
		}
		return nil
	},
}

var entryCmd = &cobra.Command{
	Use:   "entry [key=value...]",
	Short: "Show the one catalog entry selected by a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseOptions(args)
		if err != nil {
			return err
		}
		row, err := resolve.New(newHandle()).MustOne(cmd.Context(), resolve.ParseFilter(opts))
		if err != nil {
			return err
		}
		printRow(os.Stdout, row)
		return nil
	},
}

var pathsCmd = &cobra.Command{
	Use:   "paths [key=value...]",
	Short: "Print the data files a read would open",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseOptions(args)
		if err != nil {
			return err
		}
		p, err := extract.New(newHandle(), nil, logger).Plan(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if err := expand.VerifyTimeInRange(p.Entry, p.Request); err != nil {
			return err
		}
		for _, path := range p.Paths {
			fmt.Fprintln(os.Stdout, path)
		}
		return nil
	},
}

var citationsCmd = &cobra.Command{
	Use:   "citations <dataset>",
	Short: "Print the description and DOI references of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := resolve.New(newHandle()).Citations(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, text)
		return nil
	},
}

var listDatasets bool

var variablesCmd = &cobra.Command{
	Use:   "variables [key=value...]",
	Short: "List the distinct variables (or datasets) of the matching entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseOptions(args)
		if err != nil {
			return err
		}
		r := resolve.New(newHandle())
		f := resolve.ParseFilter(opts)
		var names []string
		if listDatasets {
			names, err = r.Datasets(cmd.Context(), f)
		} else {
			names, err = r.Variables(cmd.Context(), f)
		}
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(os.Stdout, n)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check catalog ids and foreign key values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := catalog.ReadDir(cfg.Catalog.Dir)
		if err != nil {
			return err
		}
		report := catalog.Validate(m)
		if report.OK() {
			logger.WithField("dir", cfg.Catalog.Dir).Info("catalog is valid")
			return nil
		}
		if _, err := report.WriteTo(os.Stdout); err != nil {
			return err
		}
		return fmt.Errorf("%d violation(s) found", len(report.Violations))
	},
}

func init() {
	variablesCmd.Flags().BoolVar(&listDatasets, "datasets", false, "list datasets instead of variables")
	rootCmd.AddCommand(tablesCmd, rowsCmd, entriesCmd, entryCmd, pathsCmd, citationsCmd, variablesCmd, validateCmd)
}
