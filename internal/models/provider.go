package models

// ProviderKind identifies the hosted-git backend a repository talks to.
type ProviderKind string

const (
	ProviderGitHub    ProviderKind = "github"
	ProviderGitLab    ProviderKind = "gitlab"
	ProviderBitbucket ProviderKind = "bitbucket"
	ProviderUnknown   ProviderKind = "unknown"
)

// Remote is the classified repository remote. Owner is the GitHub owner,
// GitLab namespace path or Bitbucket workspace.
type Remote struct {
	Kind  ProviderKind `json:"kind"`
	URL   string       `json:"url,omitempty"`
	Host  string       `json:"host,omitempty"`
	Owner string       `json:"owner,omitempty"`
	Repo  string       `json:"repo,omitempty"`
}

// FullName returns owner/repo, or "" when either part is unknown.
func (r Remote) FullName() string {
	if r.Owner == "" || r.Repo == "" {
		return ""
	}
	return r.Owner + "/" + r.Repo
}

// ReviewDecision is the verdict submitted with a review.
type ReviewDecision string

const (
	ReviewApprove        ReviewDecision = "approve"
	ReviewRequestChanges ReviewDecision = "request_changes"
	ReviewComment        ReviewDecision = "comment"
)

// Valid reports whether d is one of the known decisions.
func (d ReviewDecision) Valid() bool {
	switch d {
	case ReviewApprove, ReviewRequestChanges, ReviewComment:
		return true
	}
	return false
}
