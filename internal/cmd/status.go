package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/actionstatus/internal/bridge"
	"github.com/adamancini/actionstatus/internal/state"
)

var errFailing = errors.New("at least one monitored item has failed")

// selection is what status --select reports for the chosen item.
type selection struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
	URL   string `json:"url" yaml:"url"`
}

func (s selection) String() string {
	return s.URL
}

func newStatusCmd() *cobra.Command {
	var (
		selectIndex int
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status menu",
		Long: `Status reads the monitored items once and prints the status menu.

With --select N the item tagged N is selected instead, which prints the URL of its
latest run. With --strict the command exits non-zero when any item has failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, selectIndex, cmd.Flags().Changed("select"), strict)
		},
	}

	cmd.Flags().IntVar(&selectIndex, "select", 0, "Select the item with this tag")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any item has failed")

	return cmd
}

func runStatus(cmd *cobra.Command, selectIndex int, selected, strict bool) error {
	src, err := openSource(cmd.Context())
	if err != nil {
		return err
	}

	w := newWriter()
	src.provider.OnSelect(func(index int, item state.Item) error {
		if item.URL == "" {
			return fmt.Errorf("%s has no URL", item.Name)
		}
		return w.Write(selection{Index: index, Name: item.Name, URL: item.URL})
	})

	b := bridge.New(src.provider)
	snap, err := b.Snapshot()
	if err != nil {
		return err
	}

	if selected {
		return snap.Select(selectIndex)
	}

	if err := w.Write(snap.Menu(cfg.AppName)); err != nil {
		return err
	}
	if strict && !snap.AggregatePassing() {
		return errFailing
	}
	return nil
}
