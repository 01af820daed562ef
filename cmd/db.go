package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/hurou927/hydro-catalog/internal/catalog"
	"github.com/hurou927/hydro-catalog/internal/db"
	"github.com/hurou927/hydro-catalog/internal/graph"
	"github.com/hurou927/hydro-catalog/internal/sqlstore"
)

var exportDir string

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Copy the catalog to and from PostgreSQL",
}

func connect(ctx context.Context) (*pgxpool.Pool, *sqlstore.Store, error) {
	if err := cfg.ValidateForDatabase(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, &cfg.Connection, cfg.Export.Schema)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, &sqlstore.Store{
		DB:      pool,
		Schema:  cfg.Export.Schema,
		ROUsers: cfg.Export.ROUsers,
		RWUsers: cfg.Export.RWUsers,
		Logger:  logger,
	}, nil
}

var dbImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the catalog tables in the database with the CSV files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := catalog.ReadDir(cfg.Catalog.Dir)
		if err != nil {
			return err
		}
		pool, store, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()
		return store.Import(cmd.Context(), m)
	},
}

var dbExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every table of the schema to CSV files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := exportDir
		if dir == "" {
			dir = cfg.Catalog.Dir
		}
		pool, store, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()
		written, err := store.Export(cmd.Context(), dir)
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Fprintln(os.Stdout, path)
		}
		return nil
	},
}

var dbDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the catalog tables from the schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := catalog.ReadDir(cfg.Catalog.Dir)
		if err != nil {
			return err
		}
		pool, store, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()
		return store.Drop(cmd.Context(), m)
	},
}

var dbGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the foreign key graph of the tables in the schema",
	Long:  `Connects to the database, introspects the schema, builds an FK dependency graph, and outputs it in the specified format.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, _, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		tables, err := sqlstore.Introspect(cmd.Context(), pool, cfg.Export.Schema)
		if err != nil {
			return fmt.Errorf("introspecting schema: %w", err)
		}
		return writeGraph(os.Stdout, graph.Build(tables, excludeSet(graphExclude)))
	},
}

func init() {
	dbExportCmd.Flags().StringVar(&exportDir, "dir", "", "destination folder (defaults to catalog.dir)")
	dbGraphCmd.Flags().StringSliceVar(&graphExclude, "exclude", nil, "tables left out of the graph")
	dbGraphCmd.Flags().StringVar(&graphFormat, "format", "mermaid", "output format: mermaid or text")
	dbCmd.AddCommand(dbImportCmd, dbExportCmd, dbDropCmd, dbGraphCmd)
	rootCmd.AddCommand(dbCmd)
}
