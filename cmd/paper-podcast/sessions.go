// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-podcast/internal/audio"
	"github.com/pdiddy/paper-podcast/internal/display"
	"github.com/pdiddy/paper-podcast/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and delete stored sessions",
}

// --- list subcommand ---

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No sessions.")
		return nil
	}
	return display.Sessions(os.Stdout, list, tableMode(cmd))
}

// --- show subcommand ---

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the state of a session",
	Long: `Show prints the stage, selected paper, parameters, and audio of a
session. Use --script and --memory for the dialogue and the conversation log,
or --export-script to write the script as YAML.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsShow,
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(snap)
	}

	mode := tableMode(cmd)
	wpm := cfg.Pipeline.WordsPerMinute
	if err := display.Session(os.Stdout, snap, wpm, mode); err != nil {
		return err
	}
	if showScript, _ := cmd.Flags().GetBool("script"); showScript && len(snap.Context.Script) > 0 {
		var names []string
		if p := snap.Context.PodcastParams; p != nil {
			names = p.SpeakerNames
		}
		if err := display.Script(os.Stdout, snap.Context.Script, names, wpm, mode); err != nil {
			return err
		}
	}
	if showMemory, _ := cmd.Flags().GetBool("memory"); showMemory {
		if err := display.Memory(os.Stdout, snap.Memory, mode); err != nil {
			return err
		}
	}
	if path, _ := cmd.Flags().GetString("export-script"); path != "" {
		return exportScript(path, snap, cfg.Pipeline)
	}
	return nil
}

// --- delete subcommand ---

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>...",
	Short: "Delete sessions and their audio",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSessionsDelete,
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	files := audio.NewFileStore(cfg.Synthesis.OutputDir)
	var errs []error
	for _, id := range args {
		if err := st.Delete(cmd.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				errs = append(errs, fmt.Errorf("session %s not found", id))
				continue
			}
			errs = append(errs, err)
			continue
		}
		if err := files.Remove(id); err != nil {
			errs = append(errs, err)
		}
		fmt.Printf("Deleted %s\n", id)
	}
	return errors.Join(errs...)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	sessionsListCmd.Flags().Bool("json", false, "output as JSON")
	sessionsListCmd.Flags().Bool("markdown", false, "print a Markdown table")

	sessionsShowCmd.Flags().Bool("json", false, "output the stored record as JSON")
	sessionsShowCmd.Flags().Bool("markdown", false, "print Markdown tables")
	sessionsShowCmd.Flags().Bool("script", false, "print the script")
	sessionsShowCmd.Flags().Bool("memory", false, "print the conversation log")
	sessionsShowCmd.Flags().String("export-script", "", "write the script as YAML to this path (- for stdout)")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
