package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/multipage/pkg/monolith"
)

var exportCmd = &cobra.Command{
	Use:   "export [graph]",
	Short: "Export a saved session together with its graph",
	Long: `Writes a monolith: one compressed file holding the page graph and the session
snapshot, which can be inspected or replayed elsewhere.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")
		output, _ := cmd.Flags().GetString("output")
		assets, _ := cmd.Flags().GetStringArray("asset")

		eng, err := newEngine(cmd, args, logger)
		if err != nil {
			return err
		}
		backend, err := openBackend(cmd, flagOrEnv(cmd, "store", "store"))
		if err != nil {
			return err
		}
		defer backend.Close()

		snap, err := backend.Store.Load(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("load session %s: %w", sessionID, err)
		}
		ctrl, err := eng.Resume(cmd.Context(), *snap)
		if err != nil {
			return err
		}

		var opts []monolith.Option
		for _, path := range assets {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read asset: %w", err)
			}
			opts = append(opts, monolith.WithAsset(path, data))
		}
		blob, err := eng.Export(ctrl, opts...)
		if err != nil {
			return err
		}

		if output == "" || output == "-" {
			_, err = cmd.OutOrStdout().Write(blob)
			return err
		}
		if err := os.WriteFile(output, blob, 0644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported session '%s' to %s (%d bytes).\n", sessionID, output, len(blob))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("session", "", "Session id to export")
	exportCmd.Flags().String("store", "", "Session store (see run --store)")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringArray("asset", nil, "Embed a file in the export (repeatable)")
	_ = exportCmd.MarkFlagRequired("session")
}
