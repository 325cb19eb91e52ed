// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-podcast/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve podcast sessions as MCP tools over stdio",
	Long: `MCP runs a Model Context Protocol server on stdin/stdout with the tools
start_session, advance_session, get_session, cancel_session, and
list_sessions. Logs go to stderr so they never mix with the protocol.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return mcpserver.New(a.mgr, version, cfg.Pipeline.WordsPerMinute).Run(ctx)
}
