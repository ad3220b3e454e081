// Package github implements the pull request adapter for the GitHub REST API.
// Payloads are decoded into go-github wire types.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v57/github"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/provider/common"
)

// DefaultBaseURL is the public GitHub API root.
const DefaultBaseURL = "https://api.github.com"

const (
	perPage  = 100
	maxPages = 30
)

var headers = map[string]string{
	"Accept":               "application/vnd.github+json",
	"X-GitHub-Api-Version": "2022-11-28",
}

// Adapter talks to one GitHub repository.
type Adapter struct {
	http    common.HTTPClient
	remote  models.Remote
	baseURL string
}

// New creates an adapter for remote. An empty baseURL uses DefaultBaseURL.
func New(remote models.Remote, client common.HTTPClient, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{http: client, remote: remote, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *Adapter) Kind() models.ProviderKind { return models.ProviderGitHub }

func (a *Adapter) repoURL(format string, args ...any) (string, error) {
	if a.remote.Owner == "" || a.remote.Repo == "" {
		return "", common.ErrMissingRemote
	}
	prefix := fmt.Sprintf("%s/repos/%s/%s", a.baseURL, url.PathEscape(a.remote.Owner), url.PathEscape(a.remote.Repo))
	return prefix + fmt.Sprintf(format, args...), nil
}

func (a *Adapter) OpenPullRequests(ctx context.Context) ([]models.PullRequestSummary, error) {
	out := []models.PullRequestSummary{}
	for page := 1; page <= maxPages; page++ {
		u, err := a.repoURL("/pulls?state=open&per_page=%d&page=%d", perPage, page)
		if err != nil {
			return nil, err
		}
		data, err := a.http.Get(ctx, u, headers)
		if err != nil {
			return nil, fmt.Errorf("list pull requests: %w", err)
		}
		var prs []*gh.PullRequest
		if err := common.Decode(data, &prs); err != nil {
			return nil, fmt.Errorf("list pull requests: %w", err)
		}
		for _, pr := range prs {
			out = append(out, models.PullRequestSummary{
				ID:           pr.GetNumber(),
				Title:        pr.GetTitle(),
				Author:       pr.GetUser().GetLogin(),
				URL:          pr.GetHTMLURL(),
				SourceBranch: pr.GetHead().GetRef(),
				TargetBranch: pr.GetBase().GetRef(),
			})
		}
		if len(prs) < perPage {
			break
		}
	}
	return out, nil
}

func (a *Adapter) CreatePullRequest(ctx context.Context, in models.NewPullRequest) (*models.CreatedPullRequest, error) {
	u, err := a.repoURL("/pulls")
	if err != nil {
		return nil, err
	}
	body := &gh.NewPullRequest{
		Title: gh.String(in.Title),
		Body:  gh.String(in.Description),
		Head:  gh.String(in.SourceBranch),
		Base:  gh.String(in.TargetBranch),
	}
	data, err := a.http.Post(ctx, u, body, headers)
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}
	var pr gh.PullRequest
	if err := common.Decode(data, &pr); err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}
	return &models.CreatedPullRequest{ID: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

// AddReviewComment posts an inline comment on the PR head commit.
func (a *Adapter) AddReviewComment(ctx context.Context, prID int, filePath string, line int, body string) error {
	pr, err := a.pullRequest(ctx, prID)
	if err != nil {
		return err
	}
	u, err := a.repoURL("/pulls/%d/comments", prID)
	if err != nil {
		return err
	}
	comment := &gh.PullRequestComment{
		Body:     gh.String(body),
		Path:     gh.String(filePath),
		Line:     gh.Int(line),
		Side:     gh.String("RIGHT"),
		CommitID: gh.String(pr.GetHead().GetSHA()),
	}
	if _, err := a.http.Post(ctx, u, comment, headers); err != nil {
		return fmt.Errorf("add review comment: %w", err)
	}
	return nil
}

func (a *Adapter) SubmitReview(ctx context.Context, prID int, decision models.ReviewDecision, body string) error {
	event, err := reviewEvent(decision)
	if err != nil {
		return err
	}
	u, err := a.repoURL("/pulls/%d/reviews", prID)
	if err != nil {
		return err
	}
	req := &gh.PullRequestReviewRequest{Event: gh.String(event)}
	if body != "" {
		req.Body = gh.String(body)
	}
	if _, err := a.http.Post(ctx, u, req, headers); err != nil {
		return fmt.Errorf("submit review: %w", err)
	}
	return nil
}

func (a *Adapter) ChangedFiles(ctx context.Context, prID int) ([]string, error) {
	out := []string{}
	for page := 1; page <= maxPages; page++ {
		u, err := a.repoURL("/pulls/%d/files?per_page=%d&page=%d", prID, perPage, page)
		if err != nil {
			return nil, err
		}
		data, err := a.http.Get(ctx, u, headers)
		if err != nil {
			return nil, fmt.Errorf("list changed files: %w", err)
		}
		var files []*gh.CommitFile
		if err := common.Decode(data, &files); err != nil {
			return nil, fmt.Errorf("list changed files: %w", err)
		}
		for _, f := range files {
			if name := f.GetFilename(); name != "" {
				out = append(out, name)
			}
		}
		if len(files) < perPage {
			break
		}
	}
	return out, nil
}

func (a *Adapter) pullRequest(ctx context.Context, prID int) (*gh.PullRequest, error) {
	u, err := a.repoURL("/pulls/%d", prID)
	if err != nil {
		return nil, err
	}
	data, err := a.http.Get(ctx, u, headers)
	if err != nil {
		return nil, fmt.Errorf("get pull request %d: %w", prID, err)
	}
	var pr gh.PullRequest
	if err := common.Decode(data, &pr); err != nil {
		return nil, fmt.Errorf("get pull request %d: %w", prID, err)
	}
	return &pr, nil
}

func reviewEvent(d models.ReviewDecision) (string, error) {
	switch d {
	case models.ReviewApprove:
		return "APPROVE", nil
	case models.ReviewRequestChanges:
		return "REQUEST_CHANGES", nil
	case models.ReviewComment:
		return "COMMENT", nil
	}
	return "", fmt.Errorf("unknown review decision: %q", d)
}
