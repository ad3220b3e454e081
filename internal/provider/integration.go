// Package provider detects which hosted-git service a repository uses and
// exposes one pull request surface over the GitHub, GitLab and Bitbucket
// adapters.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/iter"

	"github.com/joescharf/reviewkit/internal/models"
)

// ErrNoProvider is returned by surfaces that require a known provider.
var ErrNoProvider = errors.New("no supported provider detected")

// DefaultConcurrency bounds concurrent per-file quality checks.
const DefaultConcurrency = 8

// Adapter is the per-provider strategy behind Integration.
type Adapter interface {
	Kind() models.ProviderKind
	OpenPullRequests(ctx context.Context) ([]models.PullRequestSummary, error)
	CreatePullRequest(ctx context.Context, pr models.NewPullRequest) (*models.CreatedPullRequest, error)
	AddReviewComment(ctx context.Context, prID int, filePath string, line int, body string) error
	SubmitReview(ctx context.Context, prID int, decision models.ReviewDecision, body string) error
	ChangedFiles(ctx context.Context, prID int) ([]string, error)
}

// AdapterFactory builds the adapter for a detected remote.
type AdapterFactory func(remote models.Remote) (Adapter, error)

// RemoteDetector classifies the repository remote.
type RemoteDetector interface {
	Detect() models.Remote
}

// FileChecker scores a single file.
type FileChecker interface {
	CheckFile(ctx context.Context, path string) (models.FileQuality, error)
}

// IntegrationOption configures an Integration.
type IntegrationOption func(*Integration)

// WithLogger sets the logger for best-effort failures.
func WithLogger(l *slog.Logger) IntegrationOption {
	return func(i *Integration) { i.log = l }
}

// WithConcurrency bounds concurrent file checks.
func WithConcurrency(n int) IntegrationOption {
	return func(i *Integration) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// Integration dispatches pull request operations to the adapter for the
// detected provider. Detection runs once per instance. With an unknown
// provider every operation returns its neutral result without I/O.
type Integration struct {
	detector    RemoteDetector
	factory     AdapterFactory
	checker     FileChecker
	log         *slog.Logger
	concurrency int

	once    sync.Once
	remote  models.Remote
	adapter Adapter
}

// NewIntegration wires a detector, an adapter factory and a file checker.
func NewIntegration(detector RemoteDetector, factory AdapterFactory, checker FileChecker, opts ...IntegrationOption) *Integration {
	i := &Integration{
		detector:    detector,
		factory:     factory,
		checker:     checker,
		log:         slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Integration) active() (models.Remote, Adapter) {
	i.once.Do(func() {
		i.remote = i.detector.Detect()
		if i.remote.Kind == models.ProviderUnknown || i.remote.Kind == "" {
			i.remote.Kind = models.ProviderUnknown
			return
		}
		a, err := i.factory(i.remote)
		if err != nil {
			i.log.Error("build provider adapter failed", "op", "detect_provider", "provider", string(i.remote.Kind), "error", err)
			return
		}
		i.adapter = a
	})
	return i.remote, i.adapter
}

// Provider returns the detected remote.
func (i *Integration) Provider() models.Remote {
	r, _ := i.active()
	return r
}

// OpenPullRequests lists open pull requests; unknown providers yield none.
func (i *Integration) OpenPullRequests(ctx context.Context) ([]models.PullRequestSummary, error) {
	_, a := i.active()
	if a == nil {
		return []models.PullRequestSummary{}, nil
	}
	prs, err := a.OpenPullRequests(ctx)
	if err != nil {
		i.log.Error("list pull requests failed", "op", "open_pull_requests", "provider", string(a.Kind()), "error", err)
		return nil, err
	}
	return prs, nil
}

// CreatePullRequest opens a pull request. It returns nil, nil for an unknown
// provider.
func (i *Integration) CreatePullRequest(ctx context.Context, title, description, sourceBranch, targetBranch string) (*models.CreatedPullRequest, error) {
	_, a := i.active()
	if a == nil {
		return nil, nil
	}
	created, err := a.CreatePullRequest(ctx, models.NewPullRequest{
		Title:        title,
		Description:  description,
		SourceBranch: sourceBranch,
		TargetBranch: targetBranch,
	})
	if err != nil {
		i.log.Error("create pull request failed", "op", "create_pull_request", "provider", string(a.Kind()), "source", sourceBranch, "error", err)
		return nil, err
	}
	return created, nil
}

// AddReviewComment is best effort: failures are logged and reported as false.
func (i *Integration) AddReviewComment(ctx context.Context, prID int, filePath string, line int, comment string) bool {
	_, a := i.active()
	if a == nil {
		return false
	}
	if err := a.AddReviewComment(ctx, prID, filePath, line, comment); err != nil {
		i.log.Error("add review comment failed", "op", "add_review_comment", "pr_id", prID, "path", filePath, "error", err)
		return false
	}
	return true
}

// SubmitReview is best effort: failures are logged and reported as false.
func (i *Integration) SubmitReview(ctx context.Context, prID int, decision models.ReviewDecision, comment string) bool {
	_, a := i.active()
	if a == nil {
		return false
	}
	if !decision.Valid() {
		i.log.Error("submit review rejected", "op", "submit_review", "pr_id", prID, "decision", string(decision))
		return false
	}
	if err := a.SubmitReview(ctx, prID, decision, comment); err != nil {
		i.log.Error("submit review failed", "op", "submit_review", "pr_id", prID, "decision", string(decision), "error", err)
		return false
	}
	return true
}

// ChangedFiles lists the paths touched by a pull request.
func (i *Integration) ChangedFiles(ctx context.Context, prID int) ([]string, error) {
	_, a := i.active()
	if a == nil {
		return []string{}, nil
	}
	files, err := a.ChangedFiles(ctx, prID)
	if err != nil {
		i.log.Error("list changed files failed", "op", "changed_files", "pr_id", prID, "error", err)
		return nil, err
	}
	return files, nil
}

// CheckFileQuality scores one file, degrading to a neutral result.
func (i *Integration) CheckFileQuality(ctx context.Context, path string) models.FileQuality {
	q, err := i.checker.CheckFile(ctx, path)
	if err != nil {
		i.log.Error("check file quality failed", "op", "check_file_quality", "path", path, "error", err)
		return models.FileQuality{Path: path, Suggestions: []string{}}
	}
	if q.Suggestions == nil {
		q.Suggestions = []string{}
	}
	return q
}

// CheckPullRequestQuality scores every changed file concurrently and sums
// the results in ChangedFiles order. Any failure, including a panic, yields
// the neutral report.
func (i *Integration) CheckPullRequestQuality(ctx context.Context, prID int) (report models.QualityReport) {
	defer func() {
		if r := recover(); r != nil {
			i.log.Error("pull request quality panicked", "op", "check_pull_request_quality", "pr_id", prID, "panic", fmt.Sprint(r))
			report = models.NeutralQuality()
		}
	}()

	files, err := i.ChangedFiles(ctx, prID)
	if err != nil {
		return models.NeutralQuality()
	}

	mapper := iter.Mapper[string, models.FileQuality]{MaxGoroutines: i.concurrency}
	results, err := mapper.MapErr(files, func(path *string) (models.FileQuality, error) {
		return i.checker.CheckFile(ctx, *path)
	})
	if err != nil {
		i.log.Error("pull request quality failed", "op", "check_pull_request_quality", "pr_id", prID, "error", err)
		return models.NeutralQuality()
	}

	report = models.NeutralQuality()
	for _, q := range results {
		report.TotalIssues += q.Issues
		report.FileCount++
		report.Suggestions = append(report.Suggestions, q.Suggestions...)
	}
	return report
}
