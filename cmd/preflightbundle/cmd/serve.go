package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/preflightbundle/preflightbundle/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string
	var root string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server exposing the preflight_* tool surface",
		Long: `Starts an MCP server that an AI coding assistant connects to over
stdio (or, once implemented, SSE) to list, search, and read evidence
bundles through the preflight_* tool surface.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, 0, root)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio|sse")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.amanmcp/logs/")
	cmd.Flags().StringVar(&root, "root", "", "Storage root override")

	return cmd
}

// runServe starts the MCP server. The bundle manager is built with its
// embedder construction deferred (offline=true) so startup never blocks
// on network/Ollama detection before the stdio handshake completes -
// preflight_create_bundle and preflight_update_bundle build their own
// embedder lazily, per call, instead.
func runServe(ctx context.Context, transport string, port int, root string) error {
	if transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			return err
		}
	}

	mgr, err := newManager(ctx, root, true)
	if err != nil {
		return fmt.Errorf("failed to initialize bundle manager: %w", err)
	}

	server, err := mcp.NewServer(mgr, root)
	if err != nil {
		return err
	}

	return server.Serve(ctx, transport, port)
}

// verifyStdinForMCP refuses a stdio transport against an interactive
// terminal: the MCP protocol expects a piped JSON-RPC byte stream from a
// host process, not a human typing at a prompt.
func verifyStdinForMCP() error {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("stdin is a terminal; the stdio transport expects a piped MCP client")
	}
	return nil
}
