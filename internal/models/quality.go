package models

// FileQuality is the heuristic result for a single file.
type FileQuality struct {
	Path        string   `json:"path"`
	Issues      int      `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// QualityReport aggregates file results for a pull request. Suggestions are
// concatenated in file-processing order, not deduplicated.
type QualityReport struct {
	TotalIssues int      `json:"totalIssues"`
	FileCount   int      `json:"fileCount"`
	Suggestions []string `json:"suggestions"`
}

// NeutralQuality returns the empty report used when quality cannot be computed.
func NeutralQuality() QualityReport {
	return QualityReport{Suggestions: []string{}}
}
