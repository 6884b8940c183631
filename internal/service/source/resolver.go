package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/service/common"
)

// ErrNoVersionFound is returned when the remote exposes no usable version tags.
var ErrNoVersionFound = errors.New("no version tags found")

const tagRefPrefix = "refs/tags/"

// Resolver queries the git remote for the highest-sorted version tag.
// The query subprocess runs under the unprivileged identity so elevated
// credentials are never exposed to a third-party host.
type Resolver struct {
	// repoURL is the git remote holding release tags.
	repoURL string
	// runAs is the identity the tag query executes under.
	runAs common.Identity
	// timeout bounds the remote query.
	timeout time.Duration
}

// NewResolver creates a resolver for the given remote running as runAs.
func NewResolver(repoURL string, runAs common.Identity, timeout time.Duration) *Resolver {
	return &Resolver{
		repoURL: repoURL,
		runAs:   runAs,
		timeout: timeout,
	}
}

// LatestTag resolves the target version for this run.
func (r *Resolver) LatestTag(ctx context.Context) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "git", "ls-remote", "--tags", "--refs", r.repoURL)

	// Credential switching is only possible (and only needed) when running
	// privileged; tests and dry runs already are the unprivileged user.
	if os.Geteuid() == 0 && !r.runAs.IsRoot() {
		cmd.SysProcAttr = r.runAs.SysProcAttr()
	}

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("list remote tags for %s: %w", r.repoURL, err)
	}

	tag, err := LatestVersion(parseTagRefs(output))
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Resolved target version", "tag", tag, "repo", r.repoURL)

	return tag, nil
}

// parseTagRefs extracts tag names from `git ls-remote --tags --refs` output,
// which lists one "<sha>\trefs/tags/<name>" pair per line.
func parseTagRefs(output []byte) []string {
	var tags []string

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		_, ref, found := strings.Cut(scanner.Text(), "\t")
		if !found {
			continue
		}

		tag := strings.TrimPrefix(strings.TrimSpace(ref), tagRefPrefix)
		if tag != "" && tag != ref {
			tags = append(tags, tag)
		}
	}

	return tags
}

// LatestVersion sorts tags by semantic-version order and returns the highest.
// Tags that do not parse as versions are ignored. Duplicate tags sort
// stably, so the last occurrence wins.
func LatestVersion(tags []string) (string, error) {
	valid := make([]string, 0, len(tags))

	for _, tag := range tags {
		if semver.IsValid(canonicalTag(tag)) {
			valid = append(valid, tag)
		}
	}

	if len(valid) == 0 {
		return "", ErrNoVersionFound
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return semver.Compare(canonicalTag(valid[i]), canonicalTag(valid[j])) < 0
	})

	return valid[len(valid)-1], nil
}

// canonicalTag normalizes a tag for comparison: semver requires the "v" prefix
// that some repositories omit.
func canonicalTag(tag string) string {
	if strings.HasPrefix(tag, "v") {
		return tag
	}

	return "v" + tag
}
