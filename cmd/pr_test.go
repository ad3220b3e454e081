package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/provider"
)

// githubRepo writes a git config with a GitHub origin into dir and points
// the GitHub API at a test server.
func githubRepo(t *testing.T, dir string, handler http.Handler) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	cfg := "[remote \"origin\"]\n\turl = https://github.com/octo/hello.git\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "config"), []byte(cfg), 0o644))

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	viper.Set("github.api_url", srv.URL)
	viper.Set("github.token", "test-token")
}

func TestParsePRID(t *testing.T) {
	id, err := parsePRID("#12")
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parsePRID(bad)
		assert.Error(t, err, bad)
	}
}

func TestProviderRun_Unknown(t *testing.T) {
	testEnv(t)
	var buf bytes.Buffer
	ui.Out = &buf

	require.NoError(t, providerRun())
	assert.Contains(t, buf.String(), "unknown")
}

func TestPRCommands_NoProvider(t *testing.T) {
	testEnv(t)

	assert.ErrorIs(t, prCreateRun(), provider.ErrNoProvider)
	assert.ErrorIs(t, prCommentRun(1, "a.go", 1, "x"), provider.ErrNoProvider)
	assert.ErrorIs(t, prReviewRun(1, models.ReviewApprove, ""), provider.ErrNoProvider)

	// Listing degrades to an empty result.
	assert.NoError(t, prListRun())
}

func TestPRCommands_GitHub(t *testing.T) {
	dir := testEnv(t)

	var (
		mu      sync.Mutex
		auth    []string
		reviews []map[string]any
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/hello/pulls", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		_, _ = w.Write([]byte(`[{"number": 3, "title": "Fix login", "user": {"login": "bob"}, "head": {"ref": "fix"}, "base": {"ref": "main"}}]`))
	})
	mux.HandleFunc("GET /repos/octo/hello/pulls/3/files", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"filename": "main.go"}]`))
	})
	mux.HandleFunc("POST /repos/octo/hello/pulls/3/reviews", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		reviews = append(reviews, body)
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /repos/octo/hello/pulls/4/reviews", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	githubRepo(t, dir, mux)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {\n\tpanic(\"todo\")\n}\n"), 0o644))

	var buf bytes.Buffer
	ui.Out = &buf

	require.NoError(t, providerRun())
	assert.Contains(t, buf.String(), "octo/hello")

	buf.Reset()
	require.NoError(t, prListRun())
	assert.Contains(t, buf.String(), "Fix login")
	assert.Contains(t, buf.String(), "fix -> main")
	assert.Equal(t, []string{"Bearer test-token"}, auth)

	buf.Reset()
	require.NoError(t, prFilesRun(3))
	assert.Equal(t, "main.go\n", buf.String())

	buf.Reset()
	require.NoError(t, prQualityRun(3))
	assert.Contains(t, buf.String(), "Files checked: 1")
	assert.Contains(t, buf.String(), "main.go: panic call; prefer returning an error (1 occurrence(s))")

	require.NoError(t, prReviewRun(3, models.ReviewApprove, "LGTM"))
	require.Len(t, reviews, 1)
	assert.Equal(t, "APPROVE", reviews[0]["event"])
	assert.Equal(t, "LGTM", reviews[0]["body"])

	err := prReviewRun(4, models.ReviewRequestChanges, "no")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to submit review on PR 4")
}

func TestPRCreateRun_DryRun(t *testing.T) {
	dir := testEnv(t)
	githubRepo(t, dir, http.NotFoundHandler())
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()

	prTitle, prSource, prTarget = "New", "feat", "main"
	t.Cleanup(func() { prTitle, prSource, prTarget = "", "", "main" })

	// The handler would fail any request, so success means nothing was sent.
	require.NoError(t, prCreateRun())
}

func TestQualityRun_LocalFiles(t *testing.T) {
	dir := testEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("print('x')\nprint('y')\n"), 0o644))

	var buf bytes.Buffer
	ui.Out = &buf
	require.NoError(t, qualityRun([]string{"app.py", "missing.py"}))

	assert.Contains(t, buf.String(), "Files checked: 2")
	assert.Contains(t, buf.String(), "app.py: print call left in code (2 occurrence(s))")
}

func TestPRCreateRun_DefaultSourceBranch(t *testing.T) {
	dir := testEnv(t)
	useFakeGit(t, &fakeGit{branch: "feature/login"})

	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/octo/hello/pulls", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number": 9, "html_url": "https://github.com/octo/hello/pull/9"}`))
	})
	githubRepo(t, dir, mux)

	prTitle, prSource, prTarget = "Login", "", "main"
	t.Cleanup(func() { prTitle, prSource, prTarget = "", "", "main" })

	var buf bytes.Buffer
	ui.Out = &buf
	require.NoError(t, prCreateRun())
	assert.Equal(t, "feature/login", body["head"])
	assert.Equal(t, "main", body["base"])
	assert.Contains(t, buf.String(), "https://github.com/octo/hello/pull/9")
}
