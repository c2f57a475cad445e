package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/actionstatus/internal/types"
)

// CommandRunner runs an external command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ghRun is the subset of `gh run list --json` output we use.
type ghRun struct {
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	URL        string `json:"url"`
}

// CLIReader reads the latest GitHub Actions run of each repository by
// invoking the gh CLI.
type CLIReader struct {
	Repos  []string
	Branch string // empty means all branches
	run    CommandRunner
}

// NewCLIReader creates a reader for repos given as owner/repo.
func NewCLIReader(repos []string, branch string) *CLIReader {
	return &CLIReader{Repos: repos, Branch: branch, run: execRunner}
}

// Read implements Reader. A repository whose runs cannot be listed is
// reported with unknown status rather than failing the whole read.
func (r *CLIReader) Read(ctx context.Context) ([]Item, error) {
	items := make([]Item, 0, len(r.Repos))
	for _, repo := range r.Repos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := Item{
			Name:   repo,
			Status: types.StatusUnknown,
			URL:    fmt.Sprintf("https://github.com/%s/actions", repo),
		}

		output, err := r.run(ctx, "gh", r.args(repo)...)
		if err != nil {
			log.WithField("repo", repo).Warnf("failed to run gh run list: %v", err)
			items = append(items, item)
			continue
		}

		status, url, err := parseRunList(output)
		if err != nil {
			log.WithField("repo", repo).Warnf("failed to parse gh run list: %v", err)
		} else {
			item.Status = status
			if url != "" {
				item.URL = url
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *CLIReader) args(repo string) []string {
	args := []string{"run", "list", "--repo", repo, "--limit", "1", "--json", "status,conclusion,url"}
	if r.Branch != "" {
		args = append(args, "--branch", r.Branch)
	}
	return args
}

// parseRunList maps the most recent run to an item status.
// Runs that have not completed yet are unknown.
func parseRunList(output []byte) (types.ItemStatus, string, error) {
	var runs []ghRun
	if err := json.Unmarshal(output, &runs); err != nil {
		return types.StatusUnknown, "", fmt.Errorf("invalid gh output: %w", err)
	}
	if len(runs) == 0 {
		return types.StatusUnknown, "", nil
	}

	latest := runs[0]
	if latest.Status != "completed" {
		return types.StatusUnknown, latest.URL, nil
	}

	switch latest.Conclusion {
	case "success", "neutral", "skipped":
		return types.StatusSucceeded, latest.URL, nil
	case "failure", "cancelled", "timed_out", "startup_failure", "action_required":
		return types.StatusFailed, latest.URL, nil
	default:
		return types.StatusUnknown, latest.URL, nil
	}
}
