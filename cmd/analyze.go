package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurou927/hydro-catalog/internal/catalog"
	"github.com/hurou927/hydro-catalog/internal/graph"
)

var (
	graphFormat  string
	graphExclude []string
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the foreign key graph of the catalog tables",
	Long:  `Loads the catalog tables, builds the dependency graph formed by columns named after other tables, and outputs it in the specified format.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := catalog.ReadDir(cfg.Catalog.Dir)
		if err != nil {
			return err
		}
		return writeGraph(os.Stdout, graph.Build(m, excludeSet(graphExclude)))
	},
}

func excludeSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}

func writeGraph(w io.Writer, g *graph.Graph) error {
	switch graphFormat {
	case "mermaid":
		return graph.WriteMermaid(w, g)
	case "text":
		return graph.WriteText(w, g)
	default:
		return fmt.Errorf("unknown format: %s (supported: mermaid, text)", graphFormat)
	}
}

func init() {
	graphCmd.Flags().StringSliceVar(&graphExclude, "exclude", nil, "tables left out of the graph")
	graphCmd.Flags().StringVar(&graphFormat, "format", "mermaid", "output format: mermaid or text")
	rootCmd.AddCommand(graphCmd)
}
