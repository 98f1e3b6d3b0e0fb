package main

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/callfocus/internal/dbus"
	"github.com/jmylchreest/callfocus/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch focus changes interactively",
	Long: `Launch a terminal view of the focus state and its recent history.

The view updates on every FocusChanged signal from callfocusd.

Key bindings:
  j/k, ↑/↓    Navigate history
  enter       View transition details
  d           Dismiss the call notification
  x           Release focus
  c           Copy state as JSON
  C           Copy history as YAML
  /           Filter history
  r           Refresh
  ?           Show help
  q           Quit`,
	Aliases: []string{"tui"},
	Args:    exactArgs(0),
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := dbus.Connect(logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	changes := make(chan struct{}, 1)
	stop, err := client.WatchFocusChanged(func(dbus.FocusChange) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	if err != nil {
		logger.Warn("failed to watch focus changes, polling instead", "error", err)
		changes = nil
	} else {
		defer stop()
	}

	return tui.Run(tui.RunOptions{
		Config:  getConfig(),
		Source:  client,
		Changes: changes,
	})
}
