package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Citations returns the description of a dataset followed by its DOI references.
func (r *Resolver) Citations(ctx context.Context, dataset string) (string, error) {
	if dataset == "" {
		return "", errors.New("dataset is not specified")
	}
	rows, err := r.Many(ctx, Filter{Dataset: dataset})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no such dataset '%s'", dataset)
	}
	entry := rows[0]

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", entry.String("description"))
	found := false
	for _, doi := range strings.Fields(entry.String("paper_dois")) {
		if doi = strings.ReplaceAll(doi, ";", ""); doi != "" {
			fmt.Fprintf(&b, "  Source: https://doi.org/%s\n", doi)
			found = true
		}
	}
	for _, doi := range strings.Fields(entry.String("dataset_dois")) {
		if doi = strings.ReplaceAll(doi, ";", ""); doi != "" {
			fmt.Fprintf(&b, "  Source: %s\n", doi)
			found = true
		}
	}
	if !found {
		b.WriteString("No paper references available.\n")
	}
	return b.String(), nil
}
