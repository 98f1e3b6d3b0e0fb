package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/callfocus/internal/adapter/output"
	"github.com/jmylchreest/callfocus/internal/core"
	"github.com/jmylchreest/callfocus/internal/dbus"
)

var errNegativeLimit = errors.New("limit must not be negative")

var statusOpts struct {
	format string
	exact  bool // Absolute times instead of relative ones
}

var historyOpts struct {
	format string
	limit  int
	exact  bool
	since  string
	filter string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current focus state",
	Long: `Show the focus state held by callfocusd.

Output formats:
  plain   human readable (default)
  json    machine readable
  yaml    machine readable
  waybar  one line of Waybar custom module JSON

For a Waybar module:

  "custom/callfocus": {
    "exec": "callfocus status -o waybar",
    "interval": 2,
    "return-type": "json"
  }`,
	Args: exactArgs(0),
	RunE: runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent focus changes",
	Long: `Show the focus transitions recorded by callfocusd, oldest first.
The daemon keeps a bounded history configured by [history] length.

Filter expressions are comma-separated conditions, all of which must match:
  command=playIncomingRing   exact command
  to=ringtone, from!=none    mode by name or code
  caller~ali                 substring, case-insensitive
  command~=^play             regular expression
  time>30m                   within the last 30 minutes`,
	Example: `  callfocus history --since 1h
  callfocus history --filter "to=in-communication,caller~alice" -o json`,
	Args: exactArgs(0),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)

	statusCmd.Flags().StringVarP(&statusOpts.format, "output", "o", "",
		"Output format (plain, json, yaml, waybar; default from config)")
	statusCmd.Flags().BoolVar(&statusOpts.exact, "exact", false,
		"Print absolute times")

	historyCmd.Flags().StringVarP(&historyOpts.format, "output", "o", "",
		"Output format (plain, json, yaml; default from config)")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Only show the last N transitions (0 = all)")
	historyCmd.Flags().BoolVar(&historyOpts.exact, "exact", false,
		"Print absolute times")
	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Only show transitions newer than this (e.g. 30m, 2h, 1d)")
	historyCmd.Flags().StringVarP(&historyOpts.filter, "filter", "f", "",
		"Filter expression (e.g. \"to=ringtone,caller~alice\")")
}

// formatter resolves the output format flag against the config default.
func formatter(flag string, opts output.FormatterOptions) (output.Formatter, error) {
	name := flag
	if name == "" {
		name = getConfig().Output.Format
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, invalidArgument(err)
	}
	return output.NewFormatter(format, opts), nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	opts := output.DefaultFormatterOptions()
	opts.ShowTime = !statusOpts.exact

	f, err := formatter(statusOpts.format, opts)
	if err != nil {
		return err
	}

	return withClient(cmd, func(ctx context.Context, client *dbus.Client) error {
		state, err := client.State(ctx)
		if err != nil {
			return err
		}
		return f.FormatState(cmd.OutOrStdout(), state)
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyOpts.limit < 0 {
		return invalidArgument(errNegativeLimit)
	}

	since, err := core.ParseDuration(historyOpts.since)
	if err != nil {
		return invalidArgument(err)
	}
	expr, err := core.ParseFilter(historyOpts.filter)
	if err != nil {
		return invalidArgument(err)
	}

	opts := output.DefaultFormatterOptions()
	opts.ShowTime = !historyOpts.exact

	f, err := formatter(historyOpts.format, opts)
	if err != nil {
		return err
	}

	return withClient(cmd, func(ctx context.Context, client *dbus.Client) error {
		transitions, err := client.History(ctx)
		if err != nil {
			return err
		}
		transitions = core.FilterWithExpr(transitions, expr)
		transitions = core.Filter(transitions, core.FilterOptions{
			Since: since,
			Limit: historyOpts.limit,
		})
		return f.FormatHistory(cmd.OutOrStdout(), transitions)
	})
}
