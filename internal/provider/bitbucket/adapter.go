// Package bitbucket implements the pull request adapter for the Bitbucket
// Cloud 2.0 API. List endpoints are paged under "values" with a "next" link.
package bitbucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/provider/common"
)

// DefaultBaseURL is the Bitbucket Cloud API root.
const DefaultBaseURL = "https://api.bitbucket.org/2.0"

const maxPages = 30

type page struct {
	Values json.RawMessage `json:"values"`
	Next   string          `json:"next"`
}

type branchRef struct {
	Branch struct {
		Name string `json:"name"`
	} `json:"branch"`
}

type link struct {
	Href string `json:"href"`
}

type pullRequest struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
	Links struct {
		HTML link `json:"html"`
	} `json:"links"`
	Source      branchRef `json:"source"`
	Destination branchRef `json:"destination"`
}

type createPullRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      branchRef `json:"source"`
	Destination branchRef `json:"destination"`
}

type content struct {
	Raw string `json:"raw"`
}

type inline struct {
	Path string `json:"path"`
	To   int    `json:"to"`
}

type comment struct {
	Content content `json:"content"`
	Inline  *inline `json:"inline,omitempty"`
}

type diffStat struct {
	Old *struct {
		Path string `json:"path"`
	} `json:"old"`
	New *struct {
		Path string `json:"path"`
	} `json:"new"`
}

// Adapter talks to one Bitbucket repository.
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

func (a *Adapter) Kind() models.ProviderKind { return models.ProviderBitbucket }

func (a *Adapter) repoURL(format string, args ...any) (string, error) {
	if a.remote.Owner == "" || a.remote.Repo == "" {
		return "", common.ErrMissingRemote
	}
	prefix := fmt.Sprintf("%s/repositories/%s/%s", a.baseURL, url.PathEscape(a.remote.Owner), url.PathEscape(a.remote.Repo))
	return prefix + fmt.Sprintf(format, args...), nil
}

// paged walks a "values"/"next" listing, decoding each page's values with fn.
func (a *Adapter) paged(ctx context.Context, first string, fn func(json.RawMessage) error) error {
	next := first
	for i := 0; next != "" && i < maxPages; i++ {
		data, err := a.http.Get(ctx, next, nil)
		if err != nil {
			return err
		}
		var p page
		if err := common.Decode(data, &p); err != nil {
			return err
		}
		if len(p.Values) > 0 {
			if err := fn(p.Values); err != nil {
				return err
			}
		}
		next = p.Next
	}
	return nil
}

func (a *Adapter) OpenPullRequests(ctx context.Context) ([]models.PullRequestSummary, error) {
	u, err := a.repoURL("/pullrequests?state=OPEN&pagelen=50")
	if err != nil {
		return nil, err
	}
	out := []models.PullRequestSummary{}
	err = a.paged(ctx, u, func(raw json.RawMessage) error {
		var prs []pullRequest
		if err := common.Decode(raw, &prs); err != nil {
			return err
		}
		for _, pr := range prs {
			out = append(out, models.PullRequestSummary{
				ID:           pr.ID,
				Title:        pr.Title,
				Author:       pr.Author.DisplayName,
				URL:          pr.Links.HTML.Href,
				SourceBranch: pr.Source.Branch.Name,
				TargetBranch: pr.Destination.Branch.Name,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pull requests: %w", err)
	}
	return out, nil
}

func (a *Adapter) CreatePullRequest(ctx context.Context, in models.NewPullRequest) (*models.CreatedPullRequest, error) {
	u, err := a.repoURL("/pullrequests")
	if err != nil {
		return nil, err
	}
	req := createPullRequest{Title: in.Title, Description: in.Description}
	req.Source.Branch.Name = in.SourceBranch
	req.Destination.Branch.Name = in.TargetBranch

	data, err := a.http.Post(ctx, u, req, nil)
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}
	var pr pullRequest
	if err := common.Decode(data, &pr); err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}
	return &models.CreatedPullRequest{ID: pr.ID, URL: pr.Links.HTML.Href}, nil
}

func (a *Adapter) AddReviewComment(ctx context.Context, prID int, filePath string, line int, body string) error {
	return a.postComment(ctx, prID, comment{
		Content: content{Raw: body},
		Inline:  &inline{Path: filePath, To: line},
	})
}

// SubmitReview maps approve and request_changes onto their endpoints. A
// non-empty body is also posted as a general comment.
func (a *Adapter) SubmitReview(ctx context.Context, prID int, decision models.ReviewDecision, body string) error {
	var action string
	switch decision {
	case models.ReviewApprove:
		action = "approve"
	case models.ReviewRequestChanges:
		action = "request-changes"
	case models.ReviewComment:
		if body == "" {
			return errors.New("comment review requires a body")
		}
	default:
		return fmt.Errorf("unknown review decision: %q", decision)
	}

	if action != "" {
		u, err := a.repoURL("/pullrequests/%d/%s", prID, action)
		if err != nil {
			return err
		}
		if _, err := a.http.Post(ctx, u, nil, nil); err != nil {
			return fmt.Errorf("%s pull request: %w", action, err)
		}
	}
	if body == "" {
		return nil
	}
	return a.postComment(ctx, prID, comment{Content: content{Raw: body}})
}

func (a *Adapter) ChangedFiles(ctx context.Context, prID int) ([]string, error) {
	u, err := a.repoURL("/pullrequests/%d/diffstat", prID)
	if err != nil {
		return nil, err
	}
	out := []string{}
	err = a.paged(ctx, u, func(raw json.RawMessage) error {
		var stats []diffStat
		if err := common.Decode(raw, &stats); err != nil {
			return err
		}
		for _, s := range stats {
			switch {
			case s.New != nil && s.New.Path != "":
				out = append(out, s.New.Path)
			case s.Old != nil && s.Old.Path != "":
				out = append(out, s.Old.Path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list changed files: %w", err)
	}
	return out, nil
}

func (a *Adapter) postComment(ctx context.Context, prID int, c comment) error {
	u, err := a.repoURL("/pullrequests/%d/comments", prID)
	if err != nil {
		return err
	}
	if _, err := a.http.Post(ctx, u, c, nil); err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}
