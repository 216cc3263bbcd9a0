package models

// BuildReport summarizes one ingestion run over an image directory.
type BuildReport struct {
	// Indexed is the number of images whose embedding was added to the store.
	Indexed int `json:"indexed"`
	// Skipped is the number of images left out because the catalog shows them
	// unchanged since the last run.
	Skipped int `json:"skipped"`
	// Failed is the number of images that produced no embedding (no face,
	// unreadable file). Failures never abort a build.
	Failed int `json:"failed"`
}
