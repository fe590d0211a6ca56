package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/multipage"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of multipage",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "multipage version %s\n", strings.TrimSpace(multipage.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
