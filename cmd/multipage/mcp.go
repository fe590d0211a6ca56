package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/multipage"
	"github.com/aretw0/multipage/internal/cli"
	"github.com/aretw0/multipage/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp [graph]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the wizard as an MCP server, so that AI agents can open sessions,
fill in pages and advance through them as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		addr := flagOrEnv(cmd, "addr", "mcp_addr")

		eng, err := newEngine(cmd, args, logger)
		if err != nil {
			return err
		}
		backend, err := openBackend(cmd, flagOrEnv(cmd, "store", "store"))
		if err != nil {
			return err
		}
		defer backend.Close()

		srv := mcp.NewServer(eng.Sessions(backend.Store), eng.Graph(),
			mcp.WithInfo("multipage", strings.TrimSpace(multipage.Version)),
			mcp.WithLogger(logger),
		)

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			return srv.ServeStdio()
		case "sse":
			sigCtx := cli.NewSignalContext(cmd.Context())
			defer sigCtx.Cancel()
			return srv.ServeSSE(sigCtx, addr)
		}
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", "localhost:8081", "Address to listen on, only for SSE (env MULTIPAGE_MCP_ADDR)")
	mcpCmd.Flags().String("store", "memory", "Session store (see run --store)")
}
