package models

// PullRequestSummary is the provider-independent view of an open pull request.
type PullRequestSummary struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	URL          string `json:"url,omitempty"`
	SourceBranch string `json:"sourceBranch,omitempty"`
	TargetBranch string `json:"targetBranch,omitempty"`
}

// NewPullRequest holds the fields needed to open a pull request.
type NewPullRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	SourceBranch string `json:"sourceBranch"`
	TargetBranch string `json:"targetBranch"`
}

// CreatedPullRequest identifies a pull request just opened on the provider.
type CreatedPullRequest struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}
