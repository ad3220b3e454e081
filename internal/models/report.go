package models

import "time"

// ReviewResult records the outcome of one checklist item in a report.
// Passed is a pointer so decoded input can tell a missing status from false.
type ReviewResult struct {
	ItemID  string `json:"itemId" yaml:"itemId"`
	Passed  *bool  `json:"passed" yaml:"passed"`
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// IsPassed reports whether the result is present and passed.
func (r ReviewResult) IsPassed() bool {
	return r.Passed != nil && *r.Passed
}

// Report is one reviewer's pass through a checklist against a set of files.
type Report struct {
	ID            string         `json:"id"`
	ChecklistName string         `json:"checklistName"`
	FilePaths     []string       `json:"filePaths"`
	ReviewerID    string         `json:"reviewerId,omitempty"`
	Timestamp     int64          `json:"timestamp"` // epoch milliseconds
	Results       []ReviewResult `json:"results"`
	Summary       string         `json:"summary"`
	Approved      bool           `json:"approved"`
}

// CreatedAt returns the report timestamp as a time.Time.
func (r *Report) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// PassedCount returns the number of passed results.
func (r *Report) PassedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.IsPassed() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of results that did not pass.
func (r *Report) FailedCount() int {
	return len(r.Results) - r.PassedCount()
}

// Bool returns a pointer to b, for building ReviewResult values.
func Bool(b bool) *bool {
	return &b
}
