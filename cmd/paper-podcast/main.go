// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-podcast CLI.
package main

import (
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/internal/secrets"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is decoded once in PersistentPreRunE and read-only afterwards.
var cfg types.Config

// logCloser flushes the rotated log file, if any.
var logCloser io.Closer

// rootCmd is the base command for the paper-podcast CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-podcast",
	Short: "Turn academic papers into narrated multi-speaker podcasts",
	Long: `paper-podcast finds an academic paper, extracts its text, has a language
model write a conversation about it, and synthesizes that conversation into
audio.

Run "podcast" for the interactive flow, "batch" for several arXiv papers at
once, "serve" for the HTTP API, or "mcp" to let an assistant drive sessions
over the Model Context Protocol.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		secrets.Apply(&c, s, os.Getenv)
		cfg = c

		logCloser, err = logging.Init(cfg.Log)
		if err != nil {
			return err
		}
		log := logging.New("cli")
		if used := viper.ConfigFileUsed(); used != "" {
			log.WithField("file", used).Debug("using config file")
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.WithField("keys", keys).Debug("loaded secrets")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-podcast.yaml or ~/.config/paper-podcast/paper-podcast.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of API key files")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().String("store", "", "session database path (empty string in config disables persistence)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
