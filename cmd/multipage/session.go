package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/multipage/internal/cli"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved sessions",
	Long:  `List, inspect, and remove sessions saved by run --session or serve.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b *cli.Backend) error {
			sessions, err := b.Store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing sessions: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No saved sessions found.")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintln(out, "- "+s)
			}
			return nil
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the snapshot of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b *cli.Backend) error {
			snap, err := b.Store.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", args[0], err)
			}
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		})
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b *cli.Backend) error {
			var errs []error
			for _, sessionID := range args {
				if err := b.Store.Delete(cmd.Context(), sessionID); err != nil {
					errs = append(errs, fmt.Errorf("error removing '%s': %w", sessionID, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", sessionID)
			}
			return errors.Join(errs...)
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.PersistentFlags().String("store", "", "Session store (see run --store)")
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}

func withBackend(cmd *cobra.Command, fn func(*cli.Backend) error) error {
	b, err := openBackend(cmd, flagOrEnv(cmd, "store", "store"))
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}
