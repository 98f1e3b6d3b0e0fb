package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/callfocus/internal/dbus"
	"github.com/jmylchreest/callfocus/internal/model"
)

var requestCmd = &cobra.Command{
	Use:     "request <mode>",
	Aliases: []string{model.CommandRequestFocus},
	Short:   "Acquire audio focus in a mode",
	Long: `Acquire audio focus in the given mode, replacing any focus already held.

Modes may be given by name or by code:
  in-communication  100
  normal            101
  ringtone          102`,
	Example: `  callfocus request normal
  callfocus requestFocus 100`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := model.ParseMode(args[0])
		if err != nil {
			return invalidArgument(err)
		}
		return runCommand(cmd, model.CommandRequestFocus, func(c *dbus.Client, ctx context.Context) (string, error) {
			return c.RequestFocus(ctx, mode)
		})
	},
}

var dumpCmd = &cobra.Command{
	Use:     "dump",
	Aliases: []string{model.CommandDumpFocus, "release"},
	Short:   "Release audio focus",
	Long: `Release audio focus, stopping any ring tone and withdrawing a pending
call notification. Releasing when no focus is held succeeds.

A mode argument is accepted for compatibility with older callers and ignored.`,
	Args: maximumArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			logger.Debug("ignoring legacy mode argument", "arg", args[0])
		}
		return runCommand(cmd, model.CommandDumpFocus, (*dbus.Client).DumpFocus)
	},
}

var communicationCmd = &cobra.Command{
	Use:     "communication",
	Aliases: []string{model.CommandSetModeInCommunication},
	Short:   "Switch to call audio routing",
	Long:    `Acquire focus in in-communication mode with call routing and the speakerphone off.`,
	Args:    exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, model.CommandSetModeInCommunication, (*dbus.Client).SetModeInCommunication)
	},
}

var ringCmd = &cobra.Command{
	Use:   "ring",
	Short: "Play a looping ring tone",
	Long: `Acquire focus for a call and loop a tone.

  incoming  ringtone mode, the ring tone for a call being received
  outgoing  in-communication mode, the ring-back tone while a placed call connects`,
}

var ringIncomingCmd = &cobra.Command{
	Use:   "incoming",
	Short: "Play the incoming ring tone",
	Args:  exactArgs(0),
	RunE:  runIncomingRing,
}

var ringOutgoingCmd = &cobra.Command{
	Use:   "outgoing",
	Short: "Play the outgoing ring-back tone",
	Args:  exactArgs(0),
	RunE:  runOutgoingRing,
}

// Top-level spellings of the ring commands for existing callers.
var (
	playIncomingRingCmd = &cobra.Command{
		Use:    model.CommandPlayIncomingRing,
		Short:  "Play the incoming ring tone",
		Hidden: true,
		Args:   exactArgs(0),
		RunE:   runIncomingRing,
	}
	playOutgoingRingCmd = &cobra.Command{
		Use:    model.CommandPlayOutgoingRing,
		Short:  "Play the outgoing ring-back tone",
		Hidden: true,
		Args:   exactArgs(0),
		RunE:   runOutgoingRing,
	}
)

var notifyCmd = &cobra.Command{
	Use:     "notify <caller-id>",
	Aliases: []string{model.CommandShowCallNotification},
	Short:   "Show the incoming call notification",
	Long: `Show the call notification for caller-id. A call mode (in-communication
or ringtone) must be held, and a later notify replaces the earlier one.`,
	Example: `  callfocus ring incoming && callfocus notify "Alice"`,
	Args:    exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		callerID := args[0]
		return runCommand(cmd, model.CommandShowCallNotification, func(c *dbus.Client, ctx context.Context) (string, error) {
			return c.ShowCallNotification(ctx, callerID)
		})
	},
}

var dismissCmd = &cobra.Command{
	Use:     "dismiss",
	Aliases: []string{model.CommandDismissCallNotification},
	Short:   "Dismiss the call notification",
	Long:    `Dismiss the pending call notification. This never fails once delivered to the daemon.`,
	Args:    exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, model.CommandDismissCallNotification, (*dbus.Client).DismissCallNotification)
	},
}

func init() {
	ringCmd.AddCommand(ringIncomingCmd)
	ringCmd.AddCommand(ringOutgoingCmd)

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(communicationCmd)
	rootCmd.AddCommand(ringCmd)
	rootCmd.AddCommand(playIncomingRingCmd)
	rootCmd.AddCommand(playOutgoingRingCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(dismissCmd)
}

func runIncomingRing(cmd *cobra.Command, args []string) error {
	return runCommand(cmd, model.CommandPlayIncomingRing, (*dbus.Client).PlayIncomingRing)
}

func runOutgoingRing(cmd *cobra.Command, args []string) error {
	return runCommand(cmd, model.CommandPlayOutgoingRing, (*dbus.Client).PlayOutgoingRing)
}

// clientCall is a Client command method; method expressions such as
// (*dbus.Client).DumpFocus satisfy it.
type clientCall func(c *dbus.Client, ctx context.Context) (string, error)

// runCommand issues one focus command and prints its request id.
func runCommand(cmd *cobra.Command, name string, call clientCall) error {
	return withClient(cmd, func(ctx context.Context, client *dbus.Client) error {
		requestID, err := call(client, ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		logger.Debug("command applied", "command", name, "request_id", requestID)
		if !globalOpts.quiet {
			fmt.Fprintln(cmd.OutOrStdout(), requestID)
		}
		return nil
	})
}
