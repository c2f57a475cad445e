package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adamancini/actionstatus/internal/interactive"
	"github.com/adamancini/actionstatus/internal/metrics"
	"github.com/adamancini/actionstatus/internal/output"
)

// checkResult is the structured outcome of a check.
type checkResult struct {
	Current   string `json:"current" yaml:"current"`
	Latest    string `json:"latest,omitempty" yaml:"latest,omitempty"`
	Available bool   `json:"available" yaml:"available"`
	Choice    string `json:"choice,omitempty" yaml:"choice,omitempty"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	Canceled  bool   `json:"canceled,omitempty" yaml:"canceled,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check for updates now",
		Long: `Check looks for a newer release on GitHub, the same as "Check For Updates…" in the menu.

Press Ctrl-C while checking to cancel the check. When an update is accepted, the
download URL for this platform is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), assumeYes)
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Accept the update without prompting")

	return cmd
}

func runCheck(ctx context.Context, assumeYes bool) error {
	w := newWriter()

	// Prompts go to stderr when stdout carries structured output.
	var promptOut io.Writer = os.Stdout
	if w.Format() != output.FormatText {
		promptOut = os.Stderr
	}
	prompter := interactive.NewPrompterWithIO(os.Stdin, promptOut)
	if assumeYes {
		prompter.ApproveAll()
	}
	presenter := interactive.NewPresenter(prompter, interactive.Options{
		Interactive: assumeYes || interactive.IsTerminal(),
		Permission:  permissionDefaults(),
	})

	session, err := newSession(presenter, metrics.Nop())
	if err != nil {
		return fmt.Errorf("updater failed to start: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for {
			select {
			case <-interrupts:
				if !presenter.Cancel() {
					cancel()
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	report, err := session.CheckNow(ctx)
	presenter.Wait()
	if err != nil {
		return err
	}

	result := checkResult{Current: appVersion, Canceled: report.Canceled}
	if report.Err != nil {
		result.Error = report.Err.Error()
	}
	if r := report.Result; r != nil {
		result.Current = r.Current.String()
		result.Available = r.Available
		if r.Latest != nil {
			result.Latest = r.Latest.String()
		}
	}
	if result.Available {
		result.Choice = report.Choice.String()
	}

	if report.InstallRequested() {
		item := report.Result.Item
		result.URL = item.DownloadURL
		if result.URL == "" {
			result.URL = item.InfoURL
		}
		log.WithField("version", item.Version).Debug("update accepted")
		w.Notice("Download %s from %s", item.Label(), result.URL)
	}

	if w.Format() != output.FormatText {
		return w.Write(result)
	}
	if report.Err != nil {
		return report.Err
	}
	return nil
}
