package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/provider/common"
)

type countingDetector struct {
	remote models.Remote
	calls  atomic.Int32
}

func (d *countingDetector) Detect() models.Remote {
	d.calls.Add(1)
	return d.remote
}

// fakeAdapter records calls and fails when err is set.
type fakeAdapter struct {
	mu    sync.Mutex
	calls []string
	err   error
	files []string
	prs   []models.PullRequestSummary
}

func (f *fakeAdapter) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.err
}

func (f *fakeAdapter) Kind() models.ProviderKind { return models.ProviderGitHub }

func (f *fakeAdapter) OpenPullRequests(context.Context) ([]models.PullRequestSummary, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	return f.prs, nil
}

func (f *fakeAdapter) CreatePullRequest(_ context.Context, pr models.NewPullRequest) (*models.CreatedPullRequest, error) {
	if err := f.record("create:" + pr.Title); err != nil {
		return nil, err
	}
	return &models.CreatedPullRequest{ID: 1, URL: "https://example/pr/1"}, nil
}

func (f *fakeAdapter) AddReviewComment(_ context.Context, prID int, path string, line int, _ string) error {
	return f.record(fmt.Sprintf("comment:%d:%s:%d", prID, path, line))
}

func (f *fakeAdapter) SubmitReview(_ context.Context, prID int, d models.ReviewDecision, _ string) error {
	return f.record(fmt.Sprintf("review:%d:%s", prID, d))
}

func (f *fakeAdapter) ChangedFiles(context.Context, int) ([]string, error) {
	if err := f.record("files"); err != nil {
		return nil, err
	}
	return f.files, nil
}

// fakeChecker returns canned results; a "panic" result panics.
type fakeChecker struct {
	results map[string]models.FileQuality
	errs    map[string]error
	delay   map[string]time.Duration
}

func (c *fakeChecker) CheckFile(_ context.Context, path string) (models.FileQuality, error) {
	if d := c.delay[path]; d > 0 {
		time.Sleep(d)
	}
	if err := c.errs[path]; err != nil {
		return models.FileQuality{}, err
	}
	q, ok := c.results[path]
	if !ok {
		panic("unexpected path " + path)
	}
	return q, nil
}

func newTestIntegration(kind models.ProviderKind, a *fakeAdapter, c FileChecker) (*Integration, *countingDetector, *atomic.Int32) {
	det := &countingDetector{remote: models.Remote{Kind: kind, Owner: "o", Repo: "r"}}
	built := &atomic.Int32{}
	factory := func(models.Remote) (Adapter, error) {
		built.Add(1)
		return a, nil
	}
	if c == nil {
		c = &fakeChecker{}
	}
	return NewIntegration(det, factory, c, WithLogger(discardLogger)), det, built
}

func TestIntegration_UnknownProviderIsNeutral(t *testing.T) {
	a := &fakeAdapter{}
	i, _, built := newTestIntegration(models.ProviderUnknown, a, nil)
	ctx := context.Background()

	prs, err := i.OpenPullRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.PullRequestSummary{}, prs)

	created, err := i.CreatePullRequest(ctx, "t", "d", "s", "main")
	require.NoError(t, err)
	assert.Nil(t, created)

	assert.False(t, i.AddReviewComment(ctx, 1, "a.go", 1, "x"))
	assert.False(t, i.SubmitReview(ctx, 1, models.ReviewApprove, ""))

	files, err := i.ChangedFiles(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{}, files)

	assert.Equal(t, models.NeutralQuality(), i.CheckPullRequestQuality(ctx, 1))
	assert.Equal(t, models.ProviderUnknown, i.Provider().Kind)

	assert.Empty(t, a.calls)
	assert.Equal(t, int32(0), built.Load())
}

func TestIntegration_UnknownProviderMakesNoHTTPCalls(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	det := NewDetector(&staticReader{ok: false})
	factory := NewAdapterFactory(FactoryConfig{Client: common.NewRESTClient(srv.Client()), Log: discardLogger})
	i := NewIntegration(det, factory, &fakeChecker{}, WithLogger(discardLogger))

	prs, err := i.OpenPullRequests(context.Background())
	require.NoError(t, err)
	assert.Empty(t, prs)
	assert.Equal(t, int32(0), hits.Load())
}

func TestIntegration_DetectionCachedPerInstance(t *testing.T) {
	a := &fakeAdapter{}
	i, det, built := newTestIntegration(models.ProviderGitHub, a, nil)
	ctx := context.Background()

	_, _ = i.OpenPullRequests(ctx)
	_, _ = i.ChangedFiles(ctx, 1)
	_ = i.Provider()
	assert.Equal(t, int32(1), det.calls.Load())
	assert.Equal(t, int32(1), built.Load())

	// A new instance detects again.
	j := NewIntegration(det, func(models.Remote) (Adapter, error) { return a, nil }, &fakeChecker{}, WithLogger(discardLogger))
	_ = j.Provider()
	assert.Equal(t, int32(2), det.calls.Load())
}

func TestIntegration_DetectionCachedUnderConcurrency(t *testing.T) {
	i, det, _ := newTestIntegration(models.ProviderGitHub, &fakeAdapter{}, nil)

	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = i.Provider()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), det.calls.Load())
}

func TestIntegration_Dispatch(t *testing.T) {
	a := &fakeAdapter{prs: []models.PullRequestSummary{{ID: 3, Title: "x", Author: "y"}}, files: []string{"a.go"}}
	i, _, _ := newTestIntegration(models.ProviderGitHub, a, nil)
	ctx := context.Background()

	prs, err := i.OpenPullRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.prs, prs)

	created, err := i.CreatePullRequest(ctx, "Add", "desc", "feat", "main")
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)

	assert.True(t, i.AddReviewComment(ctx, 3, "a.go", 10, "hm"))
	assert.True(t, i.SubmitReview(ctx, 3, models.ReviewRequestChanges, "fix"))
	assert.False(t, i.SubmitReview(ctx, 3, "merge", ""))

	assert.Equal(t, []string{"list", "create:Add", "comment:3:a.go:10", "review:3:request_changes"}, a.calls)
}

func TestIntegration_BestEffortFailures(t *testing.T) {
	a := &fakeAdapter{err: &common.HTTPError{Method: "POST", URL: "u", StatusCode: 500}}
	i, _, _ := newTestIntegration(models.ProviderGitLab, a, nil)
	ctx := context.Background()

	assert.False(t, i.AddReviewComment(ctx, 1, "a.go", 1, "x"))
	assert.False(t, i.SubmitReview(ctx, 1, models.ReviewApprove, ""))

	_, err := i.OpenPullRequests(ctx)
	assert.ErrorIs(t, err, common.ErrRequestFailed)
	_, err = i.CreatePullRequest(ctx, "t", "", "s", "t")
	assert.ErrorIs(t, err, common.ErrRequestFailed)
	_, err = i.ChangedFiles(ctx, 1)
	assert.Error(t, err)
}

func TestIntegration_FactoryFailure(t *testing.T) {
	det := &countingDetector{remote: models.Remote{Kind: models.ProviderGitHub}}
	i := NewIntegration(det, func(models.Remote) (Adapter, error) { return nil, errors.New("no token") }, &fakeChecker{}, WithLogger(discardLogger))

	prs, err := i.OpenPullRequests(context.Background())
	require.NoError(t, err)
	assert.Empty(t, prs)
	assert.Equal(t, models.ProviderGitHub, i.Provider().Kind)
}

func TestCheckPullRequestQuality_Aggregates(t *testing.T) {
	a := &fakeAdapter{files: []string{"one.ts", "two.ts"}}
	c := &fakeChecker{
		results: map[string]models.FileQuality{
			"one.ts": {Path: "one.ts", Issues: 2, Suggestions: []string{"a", "b"}},
			"two.ts": {Path: "two.ts", Issues: 1, Suggestions: []string{"c"}},
		},
		// The first file finishes last; order must still follow ChangedFiles.
		delay: map[string]time.Duration{"one.ts": 20 * time.Millisecond},
	}
	i, _, _ := newTestIntegration(models.ProviderGitHub, a, c)

	got := i.CheckPullRequestQuality(context.Background(), 5)
	assert.Equal(t, models.QualityReport{TotalIssues: 3, FileCount: 2, Suggestions: []string{"a", "b", "c"}}, got)
}

func TestCheckPullRequestQuality_NoFiles(t *testing.T) {
	i, _, _ := newTestIntegration(models.ProviderGitHub, &fakeAdapter{files: []string{}}, nil)
	assert.Equal(t, models.NeutralQuality(), i.CheckPullRequestQuality(context.Background(), 5))
}

func TestCheckPullRequestQuality_Failures(t *testing.T) {
	t.Run("changed files error", func(t *testing.T) {
		a := &fakeAdapter{err: errors.New("boom")}
		i, _, _ := newTestIntegration(models.ProviderGitHub, a, nil)
		assert.Equal(t, models.QualityReport{TotalIssues: 0, FileCount: 0, Suggestions: []string{}}, i.CheckPullRequestQuality(context.Background(), 1))
	})

	t.Run("checker error", func(t *testing.T) {
		a := &fakeAdapter{files: []string{"ok.go", "bad.go"}}
		c := &fakeChecker{
			results: map[string]models.FileQuality{"ok.go": {Issues: 4, Suggestions: []string{"x"}}},
			errs:    map[string]error{"bad.go": context.Canceled},
		}
		i, _, _ := newTestIntegration(models.ProviderGitHub, a, c)
		assert.Equal(t, models.NeutralQuality(), i.CheckPullRequestQuality(context.Background(), 1))
	})

	t.Run("checker panic", func(t *testing.T) {
		a := &fakeAdapter{files: []string{"ok.go", "boom.go"}}
		c := &fakeChecker{results: map[string]models.FileQuality{"ok.go": {Issues: 1, Suggestions: []string{"x"}}}}
		i, _, _ := newTestIntegration(models.ProviderGitHub, a, c)
		assert.Equal(t, models.NeutralQuality(), i.CheckPullRequestQuality(context.Background(), 1))
	})
}

func TestCheckFileQuality(t *testing.T) {
	c := &fakeChecker{
		results: map[string]models.FileQuality{"a.go": {Path: "a.go", Issues: 1}},
		errs:    map[string]error{"b.go": errors.New("cancelled")},
	}
	i, _, _ := newTestIntegration(models.ProviderUnknown, &fakeAdapter{}, c)

	got := i.CheckFileQuality(context.Background(), "a.go")
	assert.Equal(t, 1, got.Issues)
	assert.Equal(t, []string{}, got.Suggestions)

	got = i.CheckFileQuality(context.Background(), "b.go")
	assert.Equal(t, models.FileQuality{Path: "b.go", Suggestions: []string{}}, got)
}
