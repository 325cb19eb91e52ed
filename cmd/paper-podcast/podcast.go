// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-podcast/internal/display"
	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/internal/script"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// errQuit ends the interactive loop without an error exit.
var errQuit = errors.New("quit")

var podcastCmd = &cobra.Command{
	Use:   "podcast",
	Short: "Turn one paper into a podcast, interactively or from flags",
	Long: `Podcast walks through one session: search, pick a paper, choose the
length and the speakers, then wait while the script is written and voiced.
Any step whose answer is given by a flag is not asked. Ctrl-C cancels the
running step; the session keeps what it has so far and can be resumed with
--session when a session database is configured.`,
	RunE: runPodcast,
}

func init() {
	podcastCmd.Flags().String("query", "", "search query or arXiv identifier")
	podcastCmd.Flags().Int("pick", 0, "candidate to select, numbered from 1")
	podcastCmd.Flags().String("paper-id", "", "candidate to select, by paper ID")
	podcastCmd.Flags().Int("duration", 0, "podcast length in minutes: 5, 10, 15, 20, or 30")
	podcastCmd.Flags().String("genders", "", "speaker genders, comma separated (e.g. male,female)")
	podcastCmd.Flags().String("session", "", "resume a stored session by ID")
	podcastCmd.Flags().String("export-script", "", "write the finished script as YAML to this path (- for stdout)")
	podcastCmd.Flags().Bool("show-script", false, "print the finished script")
	podcastCmd.Flags().Bool("markdown", false, "print Markdown tables")

	rootCmd.AddCommand(podcastCmd)
}

// podcastOptions are the answers given up front. Each is used once.
type podcastOptions struct {
	query      string
	pick       int
	paperID    string
	params     *types.PodcastParams
	export     string
	showScript bool
}

func runPodcast(cmd *cobra.Command, args []string) error {
	opts, err := podcastFlags(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, progress(os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	defer signal.Stop(sigc)

	id, _ := cmd.Flags().GetString("session")
	if id == "" {
		snap, err := a.mgr.Create(ctx)
		if err != nil {
			return err
		}
		id = snap.SessionID
	}

	r := &podcastRun{
		app:  a,
		id:   id,
		opts: opts,
		sigc: sigc,
		in:   &prompter{lines: readLines(os.Stdin), sigc: sigc, out: os.Stdout},
		out:  os.Stdout,
		mode: tableMode(cmd),
		log:  logging.New("cli").WithField("session", id),
	}
	err = r.loop(ctx)
	if errors.Is(err, errQuit) {
		if a.store != nil {
			fmt.Fprintf(os.Stderr, "Session %s saved. Resume with: paper-podcast podcast --session %s\n", id, id)
		}
		return nil
	}
	return err
}

func podcastFlags(cmd *cobra.Command) (podcastOptions, error) {
	var o podcastOptions
	o.query, _ = cmd.Flags().GetString("query")
	o.pick, _ = cmd.Flags().GetInt("pick")
	o.paperID, _ = cmd.Flags().GetString("paper-id")
	o.export, _ = cmd.Flags().GetString("export-script")
	o.showScript, _ = cmd.Flags().GetBool("show-script")

	if cmd.Flags().Changed("duration") || cmd.Flags().Changed("genders") {
		p := types.DefaultPodcastParams()
		if d, _ := cmd.Flags().GetInt("duration"); d != 0 {
			p.DurationMinutes = d
		}
		if g, _ := cmd.Flags().GetString("genders"); g != "" {
			genders, err := types.ParseGenders(g)
			if err != nil {
				return o, err
			}
			p.SpeakerGenders = genders
			p.SpeakerCount = len(genders)
		}
		o.params = &p
	}
	return o, nil
}

// progress prints the status of every working stage as it starts.
func progress(w io.Writer) func(pipeline.Snapshot) {
	return func(s pipeline.Snapshot) {
		if s.State.Stage.Working() && s.Status != "" {
			fmt.Fprintf(w, "[%s] %s\n", s.State.Stage, s.Status)
		}
	}
}

// podcastRun drives one session from the terminal.
type podcastRun struct {
	*app
	id   string
	opts podcastOptions
	sigc <-chan os.Signal
	in   *prompter
	out  io.Writer
	mode display.Mode
	log  *logrus.Entry
}

// loop answers whatever the session waits for until it completes or the user
// quits.
func (r *podcastRun) loop(ctx context.Context) error {
	snap, err := r.mgr.Snapshot(ctx, r.id)
	if err != nil {
		return err
	}
	for {
		var ev pipeline.Event
		switch stage := snap.State.Stage; {
		case stage == pipeline.StageComplete:
			return r.finish(snap)

		case stage == pipeline.StageFailed:
			if e := snap.State.LastError; e != nil {
				fmt.Fprintln(r.out, e.Message)
			}
			ok, err := r.in.confirm("Restart the session")
			if err != nil {
				return err
			}
			if !ok {
				return errQuit
			}
			ev = pipeline.Restart()

		case stage == pipeline.StageIdle && !snap.Context.Empty():
			ok, err := r.in.confirm("The session holds earlier results. Restart")
			if err != nil {
				return err
			}
			if !ok {
				return errQuit
			}
			ev = pipeline.Restart()

		case stage == pipeline.StageIdle:
			q := r.opts.query
			r.opts.query = ""
			if q == "" {
				if q, err = r.in.ask("Search query or arXiv ID", ""); err != nil {
					return err
				}
			}
			ev = pipeline.Query(q)

		case stage == pipeline.StageAwaitingSelection:
			if ev, err = r.selection(snap); err != nil {
				return err
			}

		case stage == pipeline.StageAwaitingParams:
			p, err := r.params()
			if err != nil {
				return err
			}
			ev = pipeline.Configure(p)

		default:
			// Restored in a working stage: the process that ran it is gone.
			fmt.Fprintf(r.out, "The session was interrupted while %s.\n", stage)
			ev = pipeline.Cancel()
		}

		snap, err = r.advance(ctx, ev)
		if err != nil {
			var pe *pipeline.Error
			if !errors.As(err, &pe) {
				return err
			}
			r.log.WithError(err).Debug("event rejected")
			fmt.Fprintln(r.out, snap.Status)
		}
	}
}

// advance applies ev. An interrupt while it runs cancels the running stage.
func (r *podcastRun) advance(ctx context.Context, ev pipeline.Event) (pipeline.Snapshot, error) {
	type result struct {
		snap pipeline.Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := r.mgr.Advance(ctx, r.id, ev)
		done <- result{snap, err}
	}()
	for {
		select {
		case res := <-done:
			return res.snap, res.err
		case <-r.sigc:
			fmt.Fprintln(r.out, "\nCancelling...")
			if _, err := r.mgr.Advance(ctx, r.id, pipeline.Cancel()); err != nil {
				r.log.WithError(err).Debug("cancel")
			}
		}
	}
}

func (r *podcastRun) selection(snap pipeline.Snapshot) (pipeline.Event, error) {
	cands := snap.Context.CandidatePapers
	if len(cands) == 0 {
		fmt.Fprintln(r.out, snap.Status)
		ok, err := r.in.confirm("Restart with a different query")
		if err != nil {
			return pipeline.Event{}, err
		}
		if !ok {
			return pipeline.Event{}, errQuit
		}
		return pipeline.Restart(), nil
	}

	if id := r.opts.paperID; id != "" {
		r.opts.paperID = ""
		return pipeline.SelectID(id), nil
	}
	if k := r.opts.pick; k > 0 {
		r.opts.pick = 0
		return pipeline.Select(k - 1), nil
	}

	if err := display.Candidates(r.out, cands, r.cfg.Search.AbstractLimit, r.mode); err != nil {
		return pipeline.Event{}, err
	}
	answer, err := r.in.ask(fmt.Sprintf("Pick a paper (1-%d, a paper ID, or r to restart)", len(cands)), "1")
	if err != nil {
		return pipeline.Event{}, err
	}
	if strings.EqualFold(answer, "r") {
		return pipeline.Restart(), nil
	}
	if k, err := strconv.Atoi(answer); err == nil {
		return pipeline.Select(k - 1), nil
	}
	return pipeline.SelectID(answer), nil
}

func (r *podcastRun) params() (types.PodcastParams, error) {
	if p := r.opts.params; p != nil {
		r.opts.params = nil
		return *p, nil
	}
	def := types.DefaultPodcastParams()
	for {
		d, err := r.in.ask(fmt.Sprintf("Duration in minutes (%s)", durations()), strconv.Itoa(def.DurationMinutes))
		if err != nil {
			return types.PodcastParams{}, err
		}
		minutes, err := strconv.Atoi(d)
		if err != nil {
			fmt.Fprintf(r.out, "%q is not a number.\n", d)
			continue
		}
		g, err := r.in.ask("Speaker genders, comma separated (male, female, neutral)", "male,female")
		if err != nil {
			return types.PodcastParams{}, err
		}
		genders, err := types.ParseGenders(g)
		if err != nil {
			fmt.Fprintln(r.out, err)
			continue
		}
		return types.PodcastParams{DurationMinutes: minutes, SpeakerCount: len(genders), SpeakerGenders: genders}, nil
	}
}

func (r *podcastRun) finish(snap pipeline.Snapshot) error {
	wpm := r.cfg.Pipeline.WordsPerMinute
	if err := display.Session(r.out, snap, wpm, r.mode); err != nil {
		return err
	}
	c := snap.Context
	if r.opts.showScript && c.PodcastParams != nil {
		if err := display.Script(r.out, c.Script, c.PodcastParams.SpeakerNames, wpm, r.mode); err != nil {
			return err
		}
	}
	if r.opts.export != "" {
		return exportScript(r.opts.export, snap, r.cfg.Pipeline)
	}
	return nil
}

// exportScript writes the script of a completed session as YAML to path, or
// to stdout when path is "-".
func exportScript(path string, snap pipeline.Snapshot, pc types.PipelineConfig) error {
	c := snap.Context
	if c.SelectedPaper == nil || c.PodcastParams == nil || len(c.Script) == 0 {
		return fmt.Errorf("session %s has no script to export", snap.SessionID)
	}
	p := *c.PodcastParams
	doc := script.NewDocument(*c.SelectedPaper, p, c.Script,
		pipeline.AssignVoices(p.SpeakerGenders, pc.Voices),
		pipeline.EstimateMinutes(c.Script, pc.WordsPerMinute))

	if path == "-" {
		return script.WriteYAML(os.Stdout, doc)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := script.WriteYAML(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func durations() string {
	parts := make([]string, len(types.AllowedDurations))
	for i, d := range types.AllowedDurations {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ", ")
}

// prompter asks questions on the terminal. An interrupt or the end of input
// while waiting for an answer returns errQuit.
type prompter struct {
	lines <-chan string
	sigc  <-chan os.Signal
	out   io.Writer
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// ask prints question and returns the trimmed answer, or def for an empty
// line.
func (p *prompter) ask(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}
	select {
	case line, ok := <-p.lines:
		if !ok {
			fmt.Fprintln(p.out)
			return "", errQuit
		}
		if line = strings.TrimSpace(line); line == "" {
			return def, nil
		}
		return line, nil
	case <-p.sigc:
		fmt.Fprintln(p.out)
		return "", errQuit
	}
}

// confirm asks a yes/no question that defaults to no.
func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.ask(question+"? (y/N)", "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
