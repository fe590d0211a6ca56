package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [graph]",
	Short: "Check the page graph for consistency",
	Long: `Loads the page definitions and builds the graph, reporting duplicate ids,
dangling successors, incomplete branches and unknown task references.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		eng, err := newEngine(cmd, args, logger)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		g := eng.Graph()
		fmt.Fprintf(cmd.OutOrStdout(), "Graph is valid: %d pages, %d edges, starting at '%s'.\n", g.Len(), len(g.Edges()), g.Start())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
