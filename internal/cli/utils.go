// Package cli provides CLI output helpers for FaceHub.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/DevJelvehgar/face-similarity-search/internal/models"
)

// OutputFormat is the format for search result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact is one match per line: similarity, filename, path.
	OutputCompact OutputFormat = "compact"
)

// WriteSearchResults writes the response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, m := range response.Matches {
			fmt.Fprintf(w, "%.4f\t%s\t%s\n", m.Similarity, m.Filename, m.FilePath)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	if response.NoFace {
		fmt.Fprintln(w, "No face detected in the query image.")
		return
	}
	fmt.Fprintf(w, "\nFound %d similar face(s) in %dms\n\n", response.Total, response.QueryTime)
	for i, m := range response.Matches {
		fmt.Fprintf(w, "%d. %s\n", i+1, m.Filename)
		fmt.Fprintf(w, "   Similarity: %.2f%%\n", m.Similarity*100)
		fmt.Fprintf(w, "   Path: %s\n\n", m.FilePath)
	}
	if response.Total == 0 {
		fmt.Fprintln(w, "No matches above the similarity threshold.")
	}
}

// WriteBuildReport writes an ingestion report in the given format.
func WriteBuildReport(w io.Writer, report *models.BuildReport, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(w, "indexed: %d\nskipped: %d\nfailed:  %d\n", report.Indexed, report.Skipped, report.Failed)
	return nil
}
