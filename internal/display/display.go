// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package display renders sessions, candidates, and scripts as terminal or
// Markdown tables.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/internal/store"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

const timeLayout = "2006-01-02 15:04"

func newTable(m Mode) table.Writer {
	t := table.NewWriter()
	if m == ASCII {
		t.SetStyle(table.StyleLight)
	}
	return t
}

func render(w io.Writer, t table.Writer, m Mode) error {
	var out string
	if m == Markdown {
		out = t.RenderMarkdown()
	} else {
		out = t.Render()
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

// Candidates lists search results, numbered from 1 as the user picks them.
func Candidates(w io.Writer, papers []types.Paper, abstractLimit int, m Mode) error {
	t := newTable(m)
	t.AppendHeader(table.Row{"#", "ID", "Title", "Authors", "Abstract"})
	for i, p := range papers {
		t.AppendRow(table.Row{i + 1, p.ID, p.Title, authors(p.Authors), p.ShortAbstract(abstractLimit)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, WidthMax: 50},
		{Number: 4, WidthMax: 30},
		{Number: 5, WidthMax: 60},
	})
	return render(w, t, m)
}

// Sessions lists stored sessions.
func Sessions(w io.Writer, list []store.Summary, m Mode) error {
	t := newTable(m)
	t.AppendHeader(table.Row{"ID", "Stage", "Query", "Paper", "Updated"})
	for _, s := range list {
		updated := ""
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Local().Format(timeLayout)
		}
		t.AppendRow(table.Row{s.ID, s.Stage, s.Query, s.Title, updated})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 30},
		{Number: 4, WidthMax: 40},
	})
	t.AppendFooter(table.Row{"", "", "", "Total", len(list)})
	return render(w, t, m)
}

// Script prints the dialogue with speaker names and the estimated length.
func Script(w io.Writer, script []types.Utterance, names []string, wpm int, m Mode) error {
	t := newTable(m)
	t.AppendHeader(table.Row{"#", "Speaker", "Line"})
	for i, u := range script {
		t.AppendRow(table.Row{i + 1, speaker(u.SpeakerIndex, names), u.Text})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, WidthMax: 80},
	})
	t.AppendFooter(table.Row{"", "Estimate", fmt.Sprintf("%.1f min", pipeline.EstimateMinutes(script, wpm))})
	return render(w, t, m)
}

// Memory prints the conversation log of a session.
func Memory(w io.Writer, turns []pipeline.Turn, m Mode) error {
	t := newTable(m)
	t.AppendHeader(table.Row{"Time", "Role", "Stage", "Content"})
	for _, turn := range turns {
		t.AppendRow(table.Row{turn.Timestamp.Local().Format(timeLayout), turn.Role, turn.Stage, turn.Content})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 4, WidthMax: 70}})
	return render(w, t, m)
}

// Session prints the state of a session as a key/value table.
func Session(w io.Writer, snap pipeline.Snapshot, wpm int, m Mode) error {
	t := newTable(m)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Session", snap.SessionID})
	t.AppendRow(table.Row{"Stage", snap.State.Stage})
	t.AppendRow(table.Row{"Revision", snap.State.Revision})
	c := snap.Context
	if c.Query != "" {
		t.AppendRow(table.Row{"Query", c.Query})
	}
	if len(c.CandidatePapers) > 0 {
		t.AppendRow(table.Row{"Candidates", len(c.CandidatePapers)})
	}
	if p := c.SelectedPaper; p != nil {
		t.AppendRow(table.Row{"Paper", fmt.Sprintf("%s (%s)", p.Title, p.ID)})
	}
	if x := c.ExtractedText; x != nil {
		t.AppendRow(table.Row{"Text", fmt.Sprintf("%d words, %d pages", x.WordCount, x.PageCount)})
	}
	if p := c.PodcastParams; p != nil {
		t.AppendRow(table.Row{"Duration", fmt.Sprintf("%d min", p.DurationMinutes)})
		t.AppendRow(table.Row{"Speakers", strings.Join(p.SpeakerNames, ", ")})
	}
	if len(c.Script) > 0 {
		t.AppendRow(table.Row{"Script", fmt.Sprintf("%d lines, about %.1f min", len(c.Script), pipeline.EstimateMinutes(c.Script, wpm))})
	}
	if a := c.AudioArtifact; a != nil {
		audio := fmt.Sprintf("%s (%s)", a.Handle, a.Duration.Round(1e9))
		if a.Partial {
			audio += fmt.Sprintf(", partial: %d utterances", a.Utterances)
		}
		t.AppendRow(table.Row{"Audio", audio})
	}
	if e := snap.State.LastError; e != nil {
		t.AppendRow(table.Row{"Last error", e.Message})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 80}})
	return render(w, t, m)
}

func authors(list []string) string {
	switch len(list) {
	case 0:
		return ""
	case 1, 2:
		return strings.Join(list, ", ")
	default:
		return list[0] + " et al."
	}
}

func speaker(i int, names []string) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("Speaker %d", i+1)
}
