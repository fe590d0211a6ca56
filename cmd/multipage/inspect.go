package main

import (
	"fmt"
	"os"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/multipage/internal/presentation/graph"
	"github.com/aretw0/multipage/pkg/monolith"
)

type inspection struct {
	Version   string         `yaml:"version"`
	Name      string         `yaml:"name,omitempty"`
	Generator string         `yaml:"generator,omitempty"`
	Created   string         `yaml:"created"`
	Pages     int            `yaml:"pages"`
	Session   string         `yaml:"session"`
	Status    string         `yaml:"status"`
	Current   string         `yaml:"current"`
	History   []string       `yaml:"history"`
	Values    map[string]any `yaml:"values,omitempty"`
	Assets    []string       `yaml:"assets,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Describe an exported monolith",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		var opts []monolith.Option
		if force {
			opts = append(opts, monolith.AllowVersionMismatch())
		}
		m, err := monolith.Import(blob, opts...)
		if err != nil {
			return err
		}

		if mermaid, _ := cmd.Flags().GetBool("graph"); mermaid {
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(m.Graph, graph.OverlayFromSnapshot(m.Snapshot)))
			return nil
		}

		out := inspection{
			Version:   m.Version.String(),
			Name:      m.Meta.Name,
			Generator: m.Meta.Generator,
			Created:   m.Meta.Created.Format("2006-01-02 15:04:05Z07:00"),
			Pages:     m.Graph.Len(),
			Session:   m.Snapshot.SessionID,
			Status:    string(m.Snapshot.Status),
			Current:   m.Snapshot.Current,
			History:   m.Snapshot.History,
			Values:    m.Snapshot.Values,
			Assets:    slices.Sorted(maps.Keys(m.Assets)),
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("graph", false, "Print the Mermaid diagram with the session history")
	inspectCmd.Flags().Bool("force", false, "Read exports written by another format version")
}
