package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/provider/common"
)

var testRemote = models.Remote{Kind: models.ProviderBitbucket, Host: "bitbucket.org", Owner: "team", Repo: "svc"}

type call struct {
	Method string
	Path   string
	Body   map[string]any
}

func newTestAdapter(t *testing.T, h func(w http.ResponseWriter, r *http.Request, base string)) (*Adapter, *[]call) {
	t.Helper()
	var calls []call
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{Method: r.Method, Path: r.URL.Path}
		if r.ContentLength > 0 {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&c.Body))
		}
		calls = append(calls, c)
		h(w, r, srv.URL)
	}))
	t.Cleanup(srv.Close)
	return New(testRemote, common.NewRESTClient(srv.Client()), srv.URL), &calls
}

func TestOpenPullRequests_UnwrapsValuesAndFollowsNext(t *testing.T) {
	a, calls := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request, base string) {
		assert.Equal(t, "/repositories/team/svc/pullrequests", r.URL.Path)
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"values": [{"id": 2, "title": "Second", "author": {"display_name": "Erin"}}]}`))
			return
		}
		assert.Equal(t, "OPEN", r.URL.Query().Get("state"))
		fmt.Fprintf(w, `{"values": [{"id": 1, "title": "First", "author": {"display_name": "Dan"},
			"links": {"html": {"href": "https://bitbucket.org/team/svc/pull-requests/1"}},
			"source": {"branch": {"name": "feat"}}, "destination": {"branch": {"name": "main"}}}],
			"next": "%s/repositories/team/svc/pullrequests?state=OPEN&page=2"}`, base)
	})

	prs, err := a.OpenPullRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.PullRequestSummary{
		{ID: 1, Title: "First", Author: "Dan", URL: "https://bitbucket.org/team/svc/pull-requests/1", SourceBranch: "feat", TargetBranch: "main"},
		{ID: 2, Title: "Second", Author: "Erin"},
	}, prs)
	assert.Len(t, *calls, 2)
}

func TestOpenPullRequests_MissingValues(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request, base string) {
		_, _ = w.Write([]byte(`{"size": 0}`))
	})
	prs, err := a.OpenPullRequests(context.Background())
	require.NoError(t, err)
	assert.Empty(t, prs)
}

func TestCreatePullRequest(t *testing.T) {
	a, calls := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request, base string) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 17, "links": {"html": {"href": "https://bitbucket.org/team/svc/pull-requests/17"}}}`))
	})

	created, err := a.CreatePullRequest(context.Background(), models.NewPullRequest{
		Title: "Add retries", Description: "Backoff", SourceBranch: "retries", TargetBranch: "main",
	})
	require.NoError(t, err)
	assert.Equal(t, &models.CreatedPullRequest{ID: 17, URL: "https://bitbucket.org/team/svc/pull-requests/17"}, created)

	body := (*calls)[0].Body
	assert.Equal(t, "Add retries", body["title"])
	assert.Equal(t, "Backoff", body["description"])
	assert.Equal(t, "retries", body["source"].(map[string]any)["branch"].(map[string]any)["name"])
	assert.Equal(t, "main", body["destination"].(map[string]any)["branch"].(map[string]any)["name"])
}

func TestAddReviewComment(t *testing.T) {
	a, calls := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request, base string) {
		_, _ = w.Write([]byte(`{"id": 1}`))
	})

	require.NoError(t, a.AddReviewComment(context.Background(), 17, "svc/retry.py", 8, "Cap the delay"))
	c := (*calls)[0]
	assert.Equal(t, "/repositories/team/svc/pullrequests/17/comments", c.Path)
	assert.Equal(t, "Cap the delay", c.Body["content"].(map[string]any)["raw"])
	in := c.Body["inline"].(map[string]any)
	assert.Equal(t, "svc/retry.py", in["path"])
	assert.Equal(t, float64(8), in["to"])
}

func TestSubmitReview(t *testing.T) {
	tests := []struct {
		name      string
		decision  models.ReviewDecision
		body      string
		wantPaths []string
	}{
		{"approve", models.ReviewApprove, "", []string{"/approve"}},
		{"approve with comment", models.ReviewApprove, "Ship it", []string{"/approve", "/comments"}},
		{"request changes", models.ReviewRequestChanges, "Add tests", []string{"/request-changes", "/comments"}},
		{"comment only", models.ReviewComment, "Looks odd", []string{"/comments"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, calls := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request, base string) {
				_, _ = w.Write([]byte(`{}`))
			})
			require.NoError(t, a.SubmitReview(context.Background(), 17, tt.decision, tt.body))
			require.Len(t, *calls, len(tt.wantPaths))
			for i, p := range tt.wantPaths {
				assert.Equal(t, "/repositories/team/svc/pullrequests/17"+p, (*calls)[i].Path)
			}
			last := (*calls)[len(*calls)-1]
			if tt.body != "" {
				assert.Nil(t, last.Body["inline"])
				assert.Equal(t, tt.body, last.Body["content"].(map[string]any)["raw"])
			}
		})
	}
}

func TestSubmitReview_Failure(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request, base string) {
		w.WriteHeader(http.StatusConflict)
	})
	err := a.SubmitReview(context.Background(), 17, models.ReviewApprove, "")
	assert.ErrorIs(t, err, common.ErrRequestFailed)
	assert.Error(t, a.SubmitReview(context.Background(), 17, models.ReviewComment, ""))
}

func TestChangedFiles(t *testing.T) {
	a, calls := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request, base string) {
		assert.Equal(t, "/repositories/team/svc/pullrequests/17/diffstat", r.URL.Path)
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"values": [{"old": {"path": "removed.py"}, "new": null}]}`))
			return
		}
		fmt.Fprintf(w, `{"values": [
			{"old": null, "new": {"path": "added.py"}},
			{"old": {"path": "a.py"}, "new": {"path": "b.py"}}
		], "next": "%s/repositories/team/svc/pullrequests/17/diffstat?page=2"}`, base)
	})

	files, err := a.ChangedFiles(context.Background(), 17)
	require.NoError(t, err)
	assert.Equal(t, []string{"added.py", "b.py", "removed.py"}, files)
	assert.Len(t, *calls, 2)
}

func TestPagingIsBounded(t *testing.T) {
	a, calls := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request, base string) {
		fmt.Fprintf(w, `{"values": [], "next": "%s/repositories/team/svc/pullrequests/1/diffstat"}`, base)
	})

	files, err := a.ChangedFiles(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Len(t, *calls, maxPages)
}
