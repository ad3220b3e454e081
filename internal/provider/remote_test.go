package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/reviewkit/internal/models"
)

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		url                    string
		wantHost, owner, repo string
	}{
		{"https://github.com/user/repo.git", "github.com", "user", "repo"},
		{"https://github.com/user/repo", "github.com", "user", "repo"},
		{"git@github.com:user/repo.git", "github.com", "user", "repo"},
		{"ssh://git@gitlab.com:2222/group/sub/app.git", "gitlab.com", "group/sub", "app"},
		{"https://gitlab.com/group/sub/app.git/", "gitlab.com", "group/sub", "app"},
		{"https://jdoe@bitbucket.org/team/svc.git", "bitbucket.org", "team", "svc"},
		{"git@bitbucket.org:team/svc.git", "bitbucket.org", "team", "svc"},
		{"https://GitHub.com/User/Repo", "github.com", "User", "Repo"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			host, owner, repo, err := ParseRemoteURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestParseRemoteURL_Invalid(t *testing.T) {
	for _, u := range []string{"", "not a url", "https://github.com/onlyowner", "git@github.com", "/local/path/repo"} {
		_, _, _, err := ParseRemoteURL(u)
		assert.Error(t, err, u)
	}
}

func TestClassifyURL(t *testing.T) {
	extra := HostMap{"git.example.com": models.ProviderGitLab}

	assert.Equal(t, models.ProviderGitHub, ClassifyURL("https://github.com/user/repo.git", nil))
	assert.Equal(t, models.ProviderGitLab, ClassifyURL("git@gitlab.com:g/r.git", nil))
	assert.Equal(t, models.ProviderBitbucket, ClassifyURL("https://bitbucket.org/t/r", nil))
	assert.Equal(t, models.ProviderUnknown, ClassifyURL("https://example.org/t/r", nil))
	assert.Equal(t, models.ProviderGitLab, ClassifyURL("https://git.example.com/t/r.git", extra))
	assert.Equal(t, models.ProviderUnknown, ClassifyURL("https://git.example.com/t/r.git", nil))
	// Priority when several hosts appear in the text
	assert.Equal(t, models.ProviderGitHub, ClassifyURL("https://gitlab.com/mirror/github.com-repo", nil))
}
