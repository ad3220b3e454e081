// Package gitlab implements the merge request adapter for the GitLab v4 API.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/provider/common"
)

// DefaultBaseURL is the gitlab.com API root.
const DefaultBaseURL = "https://gitlab.com/api/v4"

const (
	perPage  = 100
	maxPages = 30
)

type user struct {
	Username string `json:"username"`
}

type mergeRequest struct {
	IID          int      `json:"iid"`
	Title        string   `json:"title"`
	Author       user     `json:"author"`
	WebURL       string   `json:"web_url"`
	SourceBranch string   `json:"source_branch"`
	TargetBranch string   `json:"target_branch"`
	DiffRefs     diffRefs `json:"diff_refs"`
}

type diffRefs struct {
	BaseSHA  string `json:"base_sha"`
	HeadSHA  string `json:"head_sha"`
	StartSHA string `json:"start_sha"`
}

type createMergeRequest struct {
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	Title        string `json:"title"`
	Description  string `json:"description"`
}

type position struct {
	PositionType string `json:"position_type"`
	BaseSHA      string `json:"base_sha"`
	StartSHA     string `json:"start_sha"`
	HeadSHA      string `json:"head_sha"`
	OldPath      string `json:"old_path"`
	NewPath      string `json:"new_path"`
	NewLine      int    `json:"new_line"`
}

type discussion struct {
	Body     string   `json:"body"`
	Position position `json:"position"`
}

type note struct {
	Body string `json:"body"`
}

type diff struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	DeletedFile bool   `json:"deleted_file"`
}

// Adapter talks to one GitLab project.
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

func (a *Adapter) Kind() models.ProviderKind { return models.ProviderGitLab }

// projectURL builds a URL under /projects/<url-escaped namespace/repo>.
func (a *Adapter) projectURL(format string, args ...any) (string, error) {
	if a.remote.Owner == "" || a.remote.Repo == "" {
		return "", common.ErrMissingRemote
	}
	project := url.PathEscape(a.remote.Owner + "/" + a.remote.Repo)
	return a.baseURL + "/projects/" + project + fmt.Sprintf(format, args...), nil
}

func (a *Adapter) OpenPullRequests(ctx context.Context) ([]models.PullRequestSummary, error) {
	out := []models.PullRequestSummary{}
	for page := 1; page <= maxPages; page++ {
		u, err := a.projectURL("/merge_requests?state=opened&per_page=%d&page=%d", perPage, page)
		if err != nil {
			return nil, err
		}
		data, err := a.http.Get(ctx, u, nil)
		if err != nil {
			return nil, fmt.Errorf("list merge requests: %w", err)
		}
		var mrs []mergeRequest
		if err := common.Decode(data, &mrs); err != nil {
			return nil, fmt.Errorf("list merge requests: %w", err)
		}
		for _, mr := range mrs {
			out = append(out, models.PullRequestSummary{
				ID:           mr.IID,
				Title:        mr.Title,
				Author:       mr.Author.Username,
				URL:          mr.WebURL,
				SourceBranch: mr.SourceBranch,
				TargetBranch: mr.TargetBranch,
			})
		}
		if len(mrs) < perPage {
			break
		}
	}
	return out, nil
}

func (a *Adapter) CreatePullRequest(ctx context.Context, in models.NewPullRequest) (*models.CreatedPullRequest, error) {
	u, err := a.projectURL("/merge_requests")
	if err != nil {
		return nil, err
	}
	data, err := a.http.Post(ctx, u, createMergeRequest{
		SourceBranch: in.SourceBranch,
		TargetBranch: in.TargetBranch,
		Title:        in.Title,
		Description:  in.Description,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create merge request: %w", err)
	}
	var mr mergeRequest
	if err := common.Decode(data, &mr); err != nil {
		return nil, fmt.Errorf("create merge request: %w", err)
	}
	return &models.CreatedPullRequest{ID: mr.IID, URL: mr.WebURL}, nil
}

// AddReviewComment starts a diff discussion anchored on the new side of path.
func (a *Adapter) AddReviewComment(ctx context.Context, prID int, filePath string, line int, body string) error {
	mr, err := a.mergeRequest(ctx, prID)
	if err != nil {
		return err
	}
	u, err := a.projectURL("/merge_requests/%d/discussions", prID)
	if err != nil {
		return err
	}
	req := discussion{
		Body: body,
		Position: position{
			PositionType: "text",
			BaseSHA:      mr.DiffRefs.BaseSHA,
			StartSHA:     mr.DiffRefs.StartSHA,
			HeadSHA:      mr.DiffRefs.HeadSHA,
			OldPath:      filePath,
			NewPath:      filePath,
			NewLine:      line,
		},
	}
	if _, err := a.http.Post(ctx, u, req, nil); err != nil {
		return fmt.Errorf("add review comment: %w", err)
	}
	return nil
}

// SubmitReview approves through the approvals API. Other decisions, and any
// approval message, are posted as merge request notes.
func (a *Adapter) SubmitReview(ctx context.Context, prID int, decision models.ReviewDecision, body string) error {
	switch decision {
	case models.ReviewApprove:
		u, err := a.projectURL("/merge_requests/%d/approve", prID)
		if err != nil {
			return err
		}
		if _, err := a.http.Post(ctx, u, nil, nil); err != nil {
			return fmt.Errorf("approve merge request: %w", err)
		}
		if body == "" {
			return nil
		}
		return a.addNote(ctx, prID, body)
	case models.ReviewRequestChanges:
		msg := "Changes requested"
		if body != "" {
			msg += ": " + body
		}
		return a.addNote(ctx, prID, msg)
	case models.ReviewComment:
		if body == "" {
			return errors.New("comment review requires a body")
		}
		return a.addNote(ctx, prID, body)
	}
	return fmt.Errorf("unknown review decision: %q", decision)
}

func (a *Adapter) ChangedFiles(ctx context.Context, prID int) ([]string, error) {
	out := []string{}
	for page := 1; page <= maxPages; page++ {
		u, err := a.projectURL("/merge_requests/%d/diffs?per_page=%d&page=%d", prID, perPage, page)
		if err != nil {
			return nil, err
		}
		data, err := a.http.Get(ctx, u, nil)
		if err != nil {
			return nil, fmt.Errorf("list changed files: %w", err)
		}
		var diffs []diff
		if err := common.Decode(data, &diffs); err != nil {
			return nil, fmt.Errorf("list changed files: %w", err)
		}
		for _, d := range diffs {
			path := d.NewPath
			if path == "" {
				path = d.OldPath
			}
			if path != "" {
				out = append(out, path)
			}
		}
		if len(diffs) < perPage {
			break
		}
	}
	return out, nil
}

func (a *Adapter) mergeRequest(ctx context.Context, iid int) (*mergeRequest, error) {
	u, err := a.projectURL("/merge_requests/%d", iid)
	if err != nil {
		return nil, err
	}
	data, err := a.http.Get(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("get merge request %d: %w", iid, err)
	}
	var mr mergeRequest
	if err := common.Decode(data, &mr); err != nil {
		return nil, fmt.Errorf("get merge request %d: %w", iid, err)
	}
	return &mr, nil
}

func (a *Adapter) addNote(ctx context.Context, iid int, body string) error {
	u, err := a.projectURL("/merge_requests/%d/notes", iid)
	if err != nil {
		return err
	}
	if _, err := a.http.Post(ctx, u, note{Body: body}, nil); err != nil {
		return fmt.Errorf("add note: %w", err)
	}
	return nil
}
