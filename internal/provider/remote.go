package provider

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/joescharf/reviewkit/internal/models"
)

// HostMap maps a remote host name to the provider serving it.
type HostMap map[string]models.ProviderKind

// defaultHosts are checked in priority order.
var defaultHosts = []struct {
	host string
	kind models.ProviderKind
}{
	{"github.com", models.ProviderGitHub},
	{"gitlab.com", models.ProviderGitLab},
	{"bitbucket.org", models.ProviderBitbucket},
}

// ClassifyURL returns the provider for a remote URL. Exact host matches in
// extra win; otherwise the well-known hosts are searched for in the text
// with github before gitlab before bitbucket.
func ClassifyURL(remoteURL string, extra HostMap) models.ProviderKind {
	if host, _, _, err := ParseRemoteURL(remoteURL); err == nil {
		if kind, ok := extra[host]; ok {
			return kind
		}
	}
	return classifyText(remoteURL, extra)
}

func classifyText(text string, extra HostMap) models.ProviderKind {
	lower := strings.ToLower(text)
	for _, h := range defaultHosts {
		if strings.Contains(lower, h.host) {
			return h.kind
		}
	}
	for host, kind := range extra {
		if host != "" && strings.Contains(lower, strings.ToLower(host)) {
			return kind
		}
	}
	return models.ProviderUnknown
}

// ParseRemoteURL splits a git remote URL into host and owner/repo. It accepts
// scp-like SSH (git@host:owner/repo.git), ssh://, git:// and http(s) forms.
// Owner keeps every path segment but the last, so GitLab subgroups survive.
func ParseRemoteURL(remoteURL string) (host, owner, repo string, err error) {
	raw := strings.TrimSpace(remoteURL)
	if raw == "" {
		return "", "", "", fmt.Errorf("empty remote URL")
	}

	var path string
	if !strings.Contains(raw, "://") {
		// scp-like: [user@]host:path
		at := strings.LastIndex(raw, "@")
		rest := raw[at+1:]
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return "", "", "", fmt.Errorf("cannot parse SSH remote: %s", remoteURL)
		}
		host, path = parts[0], parts[1]
	} else {
		u, perr := url.Parse(raw)
		if perr != nil {
			return "", "", "", fmt.Errorf("cannot parse remote %s: %w", remoteURL, perr)
		}
		host, path = u.Hostname(), u.Path
	}

	host = strings.ToLower(host)
	path = strings.Trim(strings.TrimSuffix(strings.Trim(path, "/"), ".git"), "/")
	i := strings.LastIndex(path, "/")
	if host == "" || i <= 0 || i == len(path)-1 {
		return "", "", "", fmt.Errorf("cannot parse owner/repo from: %s", remoteURL)
	}
	return host, path[:i], path[i+1:], nil
}
