package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Hub-Signature-256"

// EventHeader names the webhook event type.
const EventHeader = "X-GitHub-Event"

// Sign returns the header value GitHub sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC of body. An empty secret
// disables verification.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(header))
}

// PullRequestEvent is the payload of a pull_request webhook.
type PullRequestEvent struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		State  string `json:"state"`
		Head   struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository Repository `json:"repository"`
}

// PRNumber returns the pull request number from either location.
func (e *PullRequestEvent) PRNumber() int {
	if e.PullRequest.Number != 0 {
		return e.PullRequest.Number
	}
	return e.Number
}

// ParsePullRequestEvent decodes a pull_request webhook body.
func ParsePullRequestEvent(body []byte) (*PullRequestEvent, error) {
	var ev PullRequestEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("parse pull_request event: %w", err)
	}
	return &ev, nil
}

// SplitFullName splits "owner/repo".
func SplitFullName(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("cannot parse owner/repo from: %s", fullName)
	}
	return owner, repo, nil
}

// ParsePullRef parses "owner/repo#123".
func ParsePullRef(ref string) (owner, repo string, number int, err error) {
	name, num, ok := strings.Cut(ref, "#")
	if !ok {
		return "", "", 0, fmt.Errorf("expected owner/repo#number, got %q", ref)
	}
	number, err = strconv.Atoi(num)
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("invalid pull request number in %q", ref)
	}
	owner, repo, err = SplitFullName(name)
	if err != nil {
		return "", "", 0, err
	}
	return owner, repo, number, nil
}
