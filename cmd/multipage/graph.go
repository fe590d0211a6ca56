package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/multipage/internal/presentation/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [graph]",
	Short: "Export the page graph as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart of the pages and their successors. With --session
the pages visited by that session are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		eng, err := newEngine(cmd, args, logger)
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			backend, err := openBackend(cmd, flagOrEnv(cmd, "store", "store"))
			if err != nil {
				return err
			}
			defer backend.Close()
			snap, err := backend.Store.Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("load session %s: %w", sessionID, err)
			}
			overlay = graph.OverlayFromSnapshot(*snap)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(eng.Graph(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the history of this session")
	graphCmd.Flags().String("store", "", "Session store (see run --store)")
}
