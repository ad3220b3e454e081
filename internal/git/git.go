// Package git reads working-tree state through the git binary.
package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Client answers the questions the CLI asks about a local checkout.
type Client interface {
	RepoRoot(path string) (string, error)
	CurrentBranch(path string) (string, error)
	ChangedFiles(path, base string) ([]string, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// RepoRoot returns the top-level directory of the checkout containing path.
func (c *RealClient) RepoRoot(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--show-toplevel")
}

// CurrentBranch returns the checked-out branch name.
func (c *RealClient) CurrentBranch(path string) (string, error) {
	branch, err := gitCmd(path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if branch == "HEAD" {
		return "", fmt.Errorf("detached HEAD in %s", path)
	}
	return branch, nil
}

// ChangedFiles lists files that differ between base and the working tree,
// relative to the repository root. An empty base compares against HEAD.
func (c *RealClient) ChangedFiles(path, base string) ([]string, error) {
	if base == "" {
		base = "HEAD"
	}
	out, err := gitCmd(path, "diff", "--name-only", base)
	if err != nil {
		return nil, err
	}
	return ParseNameOnly(out), nil
}

// ParseNameOnly splits `git diff --name-only` output, dropping blank lines.
func ParseNameOnly(out string) []string {
	files := []string{}
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files
}
