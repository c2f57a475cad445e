// Package feed checks GitHub releases for updates and drives the update
// lifecycle controller with what it finds.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/adamancini/actionstatus/internal/types"
	"github.com/adamancini/actionstatus/internal/update"
)

// ErrNoRelease is returned when the repository has no published release.
var ErrNoRelease = errors.New("no published release")

// GitHubChecker checks for updates via GitHub API
type GitHubChecker struct {
	currentVersion string
	githubToken    string // Optional, for rate limiting
	owner          string // Repository owner
	repo           string // Repository name
	client         *http.Client
	baseURL        string // Base URL for GitHub API (for testing)
	platform       Platform
	newBackOff     func() backoff.BackOff
}

var _ Checker = (*GitHubChecker)(nil)

// GitHubRelease represents a GitHub release response
type GitHubRelease struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []struct {
		Name               string `json:"name"`
		Size               uint64 `json:"size"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Result is the outcome of one update check.
type Result struct {
	Available bool
	Current   *semver.Version
	Latest    *semver.Version
	Item      update.AppcastItem
	// Kind is FoundInformational when no asset is published for this platform.
	Kind  types.FoundKind
	Notes string // release body, markdown
}

// NewGitHubChecker creates a new GitHub checker
func NewGitHubChecker(currentVersion, owner, repo string) *GitHubChecker {
	return &GitHubChecker{
		currentVersion: currentVersion,
		owner:          owner,
		repo:           repo,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:  "https://api.github.com",
		platform: Detect(),
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ExponentialBackOff{
				InitialInterval:     time.Second,
				RandomizationFactor: backoff.DefaultRandomizationFactor,
				Multiplier:          backoff.DefaultMultiplier,
				MaxInterval:         10 * time.Second,
				MaxElapsedTime:      time.Minute,
				Stop:                backoff.Stop,
				Clock:               backoff.SystemClock,
			}, 3)
		},
	}
}

// WithToken sets an optional GitHub token for authentication
func (c *GitHubChecker) WithToken(token string) *GitHubChecker {
	c.githubToken = token
	return c
}

// CheckForUpdate checks if an update is available
func (c *GitHubChecker) CheckForUpdate(ctx context.Context) (*Result, error) {
	currentVer, err := ParseVersion(c.currentVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid current version: %w", err)
	}

	release, err := c.getLatestRelease(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest release: %w", err)
	}

	latestVer, err := ParseVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("invalid latest version: %w", err)
	}

	item := c.appcastItem(release, latestVer)
	kind := types.FoundStandard
	if item.DownloadURL == "" {
		kind = types.FoundInformational
	}

	return &Result{
		Available: latestVer.GreaterThan(currentVer),
		Current:   currentVer,
		Latest:    latestVer,
		Item:      item,
		Kind:      kind,
		Notes:     release.Body,
	}, nil
}

// getLatestRelease fetches the latest release from GitHub API, retrying
// transport errors and server errors with exponential backoff.
func (c *GitHubChecker) getLatestRelease(ctx context.Context) (*GitHubRelease, error) {
	var release *GitHubRelease
	operation := func() error {
		r, err := c.fetchLatestRelease(ctx)
		if err != nil {
			return err
		}
		release = r
		return nil
	}

	notify := func(err error, next time.Duration) {
		log.WithField("repo", c.owner+"/"+c.repo).Debugf("release fetch failed, retrying in %s: %v", next, err)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return release, nil
}

func (c *GitHubChecker) fetchLatestRelease(ctx context.Context) (*GitHubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	if c.githubToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.githubToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(ErrNoRelease)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("GitHub API returned status %d", resp.StatusCode))
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}

	return &release, nil
}

// appcastItem describes release for the update lifecycle, pointing at the
// asset built for the checker's platform.
func (c *GitHubChecker) appcastItem(release *GitHubRelease, version *semver.Version) update.AppcastItem {
	item := update.AppcastItem{
		Version:         version.String(),
		DisplayVersion:  release.TagName,
		Title:           release.Name,
		ReleaseNotesURL: release.HTMLURL,
		InfoURL:         release.HTMLURL,
		PublishedAt:     release.PublishedAt,
	}
	if item.Title == "" {
		item.Title = release.TagName
	}

	if !c.platform.IsSupported() {
		log.WithFields(log.Fields{
			"os":   c.platform.OS,
			"arch": c.platform.Arch,
		}).Debug("no release assets are published for this platform")
		return item
	}

	binaryName := c.platform.BinaryName()
	for _, asset := range release.Assets {
		switch asset.Name {
		case binaryName:
			item.DownloadURL = asset.BrowserDownloadURL
			item.ContentLength = asset.Size
		case "checksums.txt":
			item.Extra = map[string]string{"checksums_url": asset.BrowserDownloadURL}
		}
	}

	return item
}
