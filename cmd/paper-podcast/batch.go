// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

var batchCmd = &cobra.Command{
	Use:   "batch [arxiv-ids...]",
	Short: "Produce one podcast per arXiv paper, several at a time",
	Long: `Batch runs an independent session for each arXiv identifier: look the
paper up, select it, and generate a podcast with the same parameters for all.
A failed paper does not stop the others. Ctrl-C cancels every running session.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().Int("jobs", 2, "sessions to run concurrently")
	batchCmd.Flags().Int("duration", 10, "podcast length in minutes: 5, 10, 15, 20, or 30")
	batchCmd.Flags().String("genders", "male,female", "speaker genders, comma separated")

	rootCmd.AddCommand(batchCmd)
}

// batchResult is the outcome of one paper.
type batchResult struct {
	ID      string
	Session string
	Stage   pipeline.Stage
	Audio   string
	Err     error
}

func runBatch(cmd *cobra.Command, args []string) error {
	jobs, _ := cmd.Flags().GetInt("jobs")
	duration, _ := cmd.Flags().GetInt("duration")
	g, _ := cmd.Flags().GetString("genders")
	genders, err := types.ParseGenders(g)
	if err != nil {
		return err
	}
	params := types.PodcastParams{DurationMinutes: duration, SpeakerCount: len(genders), SpeakerGenders: genders}
	if err := pipeline.ValidateParams(params, cfg.Pipeline.MaxSpeakers); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	results := make([]batchResult, len(args))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(jobs, 1))
	for i, id := range args {
		eg.Go(func() error {
			results[i] = podcastFor(egCtx, a, id, params)
			// Failures are reported per paper; the group only stops on interrupt.
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	failed := printBatch(results)
	if failed > 0 {
		return fmt.Errorf("%d paper(s) failed", failed)
	}
	return nil
}

// podcastFor runs one session for the arXiv paper id to completion.
func podcastFor(ctx context.Context, a *app, id string, params types.PodcastParams) batchResult {
	log := logging.New("batch").WithField("paper", id)
	res := batchResult{ID: id}

	snap, err := a.mgr.Create(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.Session = snap.SessionID

	// An identifier query lists the paper itself first.
	for _, ev := range []pipeline.Event{pipeline.Query(id), pipeline.Select(0), pipeline.Configure(params)} {
		if snap.State.Stage == pipeline.StageAwaitingSelection && len(snap.Context.CandidatePapers) == 0 {
			res.Err = fmt.Errorf("no paper found for %s", id)
			return res
		}
		snap, err = a.mgr.Advance(ctx, snap.SessionID, ev)
		res.Stage = snap.State.Stage
		if err != nil {
			log.WithError(err).Warn("session stopped")
			res.Err = err
			return res
		}
	}
	if art := snap.Context.AudioArtifact; art != nil {
		res.Audio = art.Handle
		if art.Partial {
			res.Err = fmt.Errorf("partial audio: %d of %d utterances", art.Utterances, len(snap.Context.Script))
		}
	}
	log.WithField("audio", res.Audio).Info("podcast done")
	return res
}

func printBatch(results []batchResult) int {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Paper", "Session", "Stage", "Audio", "Error"})
	failed := 0
	for _, r := range results {
		msg := ""
		if r.Err != nil {
			failed++
			msg = r.Err.Error()
		}
		t.AppendRow(table.Row{r.ID, r.Session, r.Stage, r.Audio, msg})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 5, WidthMax: 60}})
	t.AppendFooter(table.Row{"", "", "", "Failed", failed})
	fmt.Println(t.Render())
	return failed
}
