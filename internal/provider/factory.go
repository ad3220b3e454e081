package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/provider/bitbucket"
	"github.com/joescharf/reviewkit/internal/provider/common"
	"github.com/joescharf/reviewkit/internal/provider/github"
	"github.com/joescharf/reviewkit/internal/provider/gitlab"
)

// Credentials holds the token and optional API root for one provider.
type Credentials struct {
	Token   string
	BaseURL string
}

// FactoryConfig configures the default adapter factory.
type FactoryConfig struct {
	Providers map[models.ProviderKind]Credentials
	Timeout   time.Duration
	Log       *slog.Logger

	// Client overrides the authenticated REST client, mainly for tests.
	Client common.HTTPClient
}

// NewAdapterFactory returns a factory that builds the GitHub, GitLab or
// Bitbucket adapter with an authenticated HTTP client.
func NewAdapterFactory(cfg FactoryConfig) AdapterFactory {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return func(remote models.Remote) (Adapter, error) {
		creds := cfg.Providers[remote.Kind]
		client := cfg.Client
		if client == nil {
			hc := common.NewAuthenticatedClient(context.Background(), creds.Token, cfg.Timeout, log.With("provider", string(remote.Kind)))
			client = common.NewRESTClient(hc)
		}

		switch remote.Kind {
		case models.ProviderGitHub:
			return github.New(remote, client, creds.BaseURL), nil
		case models.ProviderGitLab:
			return gitlab.New(remote, client, creds.BaseURL), nil
		case models.ProviderBitbucket:
			return bitbucket.New(remote, client, creds.BaseURL), nil
		}
		return nil, fmt.Errorf("no adapter for provider %q", remote.Kind)
	}
}
