package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/reviewkit/internal/models"
)

func TestNewAdapterFactory_Kinds(t *testing.T) {
	factory := NewAdapterFactory(FactoryConfig{Log: discardLogger})

	for _, kind := range []models.ProviderKind{models.ProviderGitHub, models.ProviderGitLab, models.ProviderBitbucket} {
		a, err := factory(models.Remote{Kind: kind, Owner: "o", Repo: "r"})
		require.NoError(t, err)
		assert.Equal(t, kind, a.Kind())
	}

	_, err := factory(models.Remote{Kind: models.ProviderUnknown})
	assert.Error(t, err)
}

func TestNewAdapterFactory_UsesTokenAndBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer glpat-123", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v4/projects/g%2Fr/merge_requests", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`[{"iid": 1, "title": "t", "author": {"username": "u"}}]`))
	}))
	defer srv.Close()

	factory := NewAdapterFactory(FactoryConfig{
		Providers: map[models.ProviderKind]Credentials{
			models.ProviderGitLab: {Token: "glpat-123", BaseURL: srv.URL + "/api/v4"},
		},
		Log: discardLogger,
	})
	det := &countingDetector{remote: models.Remote{Kind: models.ProviderGitLab, Owner: "g", Repo: "r"}}
	i := NewIntegration(det, factory, &fakeChecker{}, WithLogger(discardLogger))

	prs, err := i.OpenPullRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, "u", prs[0].Author)
}
