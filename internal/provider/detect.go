package provider

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/joescharf/reviewkit/internal/models"
)

// ConfigReader returns the text of a repository's git configuration. ok is
// false when the repository has no config.
type ConfigReader interface {
	ReadGitConfig() (text string, ok bool, err error)
}

// FSConfigReader reads <repo>/.git/config through an afero filesystem. When
// .git is a worktree pointer file it follows the gitdir to the shared config.
type FSConfigReader struct {
	fs   afero.Fs
	repo string
}

// NewFSConfigReader creates a reader for the repository rooted at repoPath.
func NewFSConfigReader(fsys afero.Fs, repoPath string) *FSConfigReader {
	return &FSConfigReader{fs: fsys, repo: repoPath}
}

func (r *FSConfigReader) ReadGitConfig() (string, bool, error) {
	dotGit := filepath.Join(r.repo, ".git")
	info, err := r.fs.Stat(dotGit)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("stat %s: %w", dotGit, err)
	}

	gitDir := dotGit
	if !info.IsDir() {
		gitDir, err = r.followGitDir(dotGit)
		if err != nil {
			return "", false, err
		}
	}

	for _, candidate := range r.configCandidates(gitDir) {
		data, err := afero.ReadFile(r.fs, candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("read %s: %w", candidate, err)
		}
		return string(data), true, nil
	}
	return "", false, nil
}

// followGitDir resolves a "gitdir: <path>" pointer file.
func (r *FSConfigReader) followGitDir(pointer string) (string, error) {
	data, err := afero.ReadFile(r.fs, pointer)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pointer, err)
	}
	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", fmt.Errorf("%s: not a gitdir pointer", pointer)
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(r.repo, target)
	}
	return target, nil
}

// configCandidates lists gitDir/config then the commondir config used by
// linked worktrees.
func (r *FSConfigReader) configCandidates(gitDir string) []string {
	out := []string{filepath.Join(gitDir, "config")}
	data, err := afero.ReadFile(r.fs, filepath.Join(gitDir, "commondir"))
	if err != nil {
		return out
	}
	common := strings.TrimSpace(string(data))
	if common == "" {
		return out
	}
	if !filepath.IsAbs(common) {
		common = filepath.Join(gitDir, common)
	}
	return append(out, filepath.Join(common, "config"))
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithHosts adds self-hosted hosts to classification.
func WithHosts(h HostMap) DetectorOption {
	return func(d *Detector) {
		for host, kind := range h {
			d.hosts[strings.ToLower(host)] = kind
		}
	}
}

// WithDetectorLogger sets the logger for tolerated read failures.
func WithDetectorLogger(l *slog.Logger) DetectorOption {
	return func(d *Detector) { d.log = l }
}

// Detector classifies a repository's remote. It performs no network I/O.
type Detector struct {
	reader ConfigReader
	hosts  HostMap
	log    *slog.Logger
}

// NewDetector creates a detector over reader.
func NewDetector(reader ConfigReader, opts ...DetectorOption) *Detector {
	d := &Detector{reader: reader, hosts: HostMap{}, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect never fails: a missing, unreadable or unrecognized config yields a
// Remote of kind unknown.
func (d *Detector) Detect() models.Remote {
	unknown := models.Remote{Kind: models.ProviderUnknown}

	text, ok, err := d.reader.ReadGitConfig()
	if err != nil {
		d.log.Warn("read git config failed", "op", "detect_provider", "error", err)
		return unknown
	}
	if !ok {
		return unknown
	}

	remotes := parseRemotes(text)
	kind := models.ProviderUnknown
	for _, r := range remotes {
		if k := ClassifyURL(r.url, d.hosts); kindRank(k) < kindRank(kind) {
			kind = k
		}
	}
	if kind == models.ProviderUnknown {
		unknown.Kind = classifyText(text, d.hosts)
		return unknown
	}

	// remotes are ordered origin first, so the first match of the winning
	// kind supplies owner/repo.
	for _, r := range remotes {
		if ClassifyURL(r.url, d.hosts) != kind {
			continue
		}
		out := models.Remote{Kind: kind, URL: r.url}
		if host, owner, repo, err := ParseRemoteURL(r.url); err == nil {
			out.Host, out.Owner, out.Repo = host, owner, repo
		} else {
			d.log.Debug("remote url not parseable", "op", "detect_provider", "url", r.url, "error", err)
		}
		return out
	}
	return unknown
}

// kindRank orders provider kinds by detection priority.
func kindRank(k models.ProviderKind) int {
	for i, h := range defaultHosts {
		if h.kind == k {
			return i
		}
	}
	return len(defaultHosts)
}

type remoteEntry struct {
	name string
	url  string
}

// parseRemotes extracts url and pushurl values from git config text, origin
// first, then in file order. Lines outside a remote section are kept after
// those.
func parseRemotes(text string) []remoteEntry {
	var named, loose []remoteEntry
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			section = strings.Trim(line, "[] ")
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found || !isURLKey(strings.TrimSpace(key)) {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if value == "" {
			continue
		}

		name, isRemote := remoteName(section)
		e := remoteEntry{name: name, url: value}
		switch {
		case isRemote && name == "origin":
			named = append([]remoteEntry{e}, named...)
		case isRemote:
			named = append(named, e)
		default:
			loose = append(loose, e)
		}
	}
	return append(named, loose...)
}

func isURLKey(key string) bool {
	return strings.EqualFold(key, "url") || strings.EqualFold(key, "pushurl")
}

func remoteName(section string) (string, bool) {
	rest, ok := strings.CutPrefix(section, "remote")
	if !ok {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(rest), `"`), true
}
