package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hurou927/hydro-catalog/internal/catalog"
	"github.com/hurou927/hydro-catalog/internal/config"
	"github.com/hurou927/hydro-catalog/internal/remote"
)

var (
	cfgPath  string
	logLevel string
	cfg      *config.Config
	logger   *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hydro-catalog",
	Short: "Query the hydrology data catalog and read gridded subsets",
	Long: `hydro-catalog loads the hydrology data catalog from CSV files (optionally
refreshed from a remote snapshot), resolves catalog entries from key=value
filters, and reads time and space subsets of the gridded files they describe.
It can also copy the catalog to and from PostgreSQL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logger, err = newLogger(&cfg.Log)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(c *config.Log) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	if c.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

// newHandle builds the catalog handle described by the config.
func newHandle() *catalog.Handle {
	opts := []catalog.Option{catalog.WithLogger(logger)}
	if cfg.Catalog.RemoteURL != "" {
		opts = append(opts, catalog.WithFetcher(&remote.Client{
			URL:      cfg.Catalog.RemoteURL,
			HTTP:     &http.Client{Timeout: cfg.Catalog.RemoteTimeout},
			Attempts: cfg.Catalog.RemoteAttempts,
			Logger:   logger,
		}))
	}
	return catalog.NewHandle(catalog.DirLoader(cfg.Catalog.Dir), opts...)
}

// parseOptions turns key=value arguments into a filter map.
func parseOptions(args []string) (map[string]string, error) {
	opts := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", a)
		}
		opts[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return opts, nil
}
