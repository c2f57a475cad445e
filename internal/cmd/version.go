package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/actionstatus/internal/feed"
)

// versionInfo is what version reports.
type versionInfo struct {
	Version      string `json:"version" yaml:"version"`
	Latest       string `json:"latest,omitempty" yaml:"latest,omitempty"`
	Available    bool   `json:"update_available" yaml:"update_available"`
	ReleaseURL   string `json:"release_url,omitempty" yaml:"release_url,omitempty"`
	ReleaseNotes string `json:"release_notes,omitempty" yaml:"release_notes,omitempty"`
	checked      bool
}

func (v versionInfo) String() string {
	if !v.checked {
		return "actionstatus version " + v.Version
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current version: %s\n", v.Version)
	if !v.Available {
		b.WriteString("Already running latest version")
		return b.String()
	}
	fmt.Fprintf(&b, "Latest version: %s available\n", v.Latest)
	if v.ReleaseNotes != "" {
		fmt.Fprintf(&b, "\nRelease notes:\n%s\n", v.ReleaseNotes)
	}
	fmt.Fprintf(&b, "\nRun 'actionstatus check' to update, or see %s", v.ReleaseURL)
	return b.String()
}

func newVersionCmd() *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information and check for updates",
		Long: `Display the current actionstatus version and optionally check for updates.

Examples:
  actionstatus version              # Show current version
  actionstatus version --check      # Check if update is available`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd, checkOnly)
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Check for updates without prompting")

	return cmd
}

func runVersion(cmd *cobra.Command, checkOnly bool) error {
	w := newWriter()
	info := versionInfo{Version: appVersion}
	if !checkOnly {
		return w.Write(info)
	}

	checker := feed.NewGitHubChecker(appVersion, cfg.Feed.Owner, cfg.Feed.Repo)

	// Use GITHUB_TOKEN if available
	token := cfg.Feed.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token != "" {
		checker = checker.WithToken(token)
	}

	result, err := checker.CheckForUpdate(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	info.checked = true
	info.Version = result.Current.String()
	info.Available = result.Available
	info.Latest = result.Latest.String()
	info.ReleaseURL = result.Item.InfoURL
	if result.Available {
		info.ReleaseNotes = result.Notes
	}
	return w.Write(info)
}
