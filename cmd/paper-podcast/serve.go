// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-podcast/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve podcast sessions over HTTP",
	Long: `Serve exposes the session API:

  POST   /v1/sessions              create a session, optionally with {"query": ...}
  GET    /v1/sessions              list sessions
  GET    /v1/sessions/:id          session state
  POST   /v1/sessions/:id/events   send query, select, configure, cancel, or restart
  DELETE /v1/sessions/:id          delete a session and its audio
  GET    /v1/sessions/:id/audio    download the finished WAV
  GET    /healthz                  liveness`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default server.addr)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return api.New(a.mgr).Run(ctx, addr)
}
