// Package git reads repository metadata from a local checkout so CLI
// commands can default to the current repository.
package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoRemote is returned when the checkout has no origin remote.
var ErrNoRemote = errors.New("no origin remote")

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

// RemoteURL returns the origin URL of the checkout at path.
func RemoteURL(path string) (string, error) {
	out, err := gitCmd(path, "remote", "get-url", "origin")
	if err != nil || out == "" {
		return "", ErrNoRemote
	}
	return out, nil
}

// RepoFromDir resolves the GitHub owner and repository of the checkout at
// path from its origin remote.
func RepoFromDir(path string) (owner, repo string, err error) {
	url, err := RemoteURL(path)
	if err != nil {
		return "", "", err
	}
	return ExtractOwnerRepo(url)
}

// ExtractOwnerRepo parses a GitHub remote URL and returns owner/repo.
func ExtractOwnerRepo(remoteURL string) (owner, repo string, err error) {
	// git@github.com:owner/repo.git
	if strings.HasPrefix(remoteURL, "git@") {
		_, path, ok := strings.Cut(remoteURL, ":")
		if !ok {
			return "", "", fmt.Errorf("cannot parse SSH remote: %s", remoteURL)
		}
		return splitOwnerRepo(strings.TrimSuffix(path, ".git"), remoteURL)
	}

	trimmed := strings.TrimSuffix(remoteURL, ".git")
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "ssh://git@github.com/"} {
		trimmed = strings.TrimPrefix(trimmed, prefix)
	}
	return splitOwnerRepo(trimmed, remoteURL)
}

func splitOwnerRepo(path, remoteURL string) (string, string, error) {
	owner, repo, ok := strings.Cut(path, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("cannot parse owner/repo from: %s", remoteURL)
	}
	return owner, repo, nil
}
