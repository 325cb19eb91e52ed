// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-podcast/internal/display"
	"github.com/pdiddy/paper-podcast/internal/httputil"
	"github.com/pdiddy/paper-podcast/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search academic APIs for candidate papers",
	Long: `Search queries arXiv and, when enabled, Semantic Scholar for papers
matching a free-text query. A query holding an arXiv identifier is looked up
directly. Results are deduplicated across sources and ranked.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum number of results (default search.max_results)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Bool("markdown", false, "output a Markdown table")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	sc := cfg.Search
	if n, _ := cmd.Flags().GetInt("max-results"); n > 0 {
		sc.MaxResults = n
	}
	svc := search.New(sc, httputil.NewClient(sc.HTTPConfig))

	papers, err := svc.Search(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(papers)
	}
	if len(papers) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	return display.Candidates(os.Stdout, papers, sc.AbstractLimit, tableMode(cmd))
}

// tableMode reads the --markdown flag of commands that print tables.
func tableMode(cmd *cobra.Command) display.Mode {
	if md, _ := cmd.Flags().GetBool("markdown"); md {
		return display.Markdown
	}
	return display.ASCII
}
