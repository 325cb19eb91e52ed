// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package script writes the podcast dialogue: it renders the generation
// prompt, calls a hosted model, and parses the reply into utterances.
package script

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Generator implements pipeline.Generator on top of a Backend.
type Generator struct {
	backend Backend
	budget  *Budget
	cfg     types.GenerationConfig
	wpm     int
	log     *logrus.Entry
}

// NewGenerator builds a generator. wpm is the speaking rate used to turn the
// requested duration into a word target.
func NewGenerator(backend Backend, cfg types.GenerationConfig, wpm int) (*Generator, error) {
	budget, err := NewBudget()
	if err != nil {
		return nil, err
	}
	if wpm <= 0 {
		wpm = 160
	}
	return &Generator{backend: backend, budget: budget, cfg: cfg, wpm: wpm, log: logging.New("script")}, nil
}

// Generate renders the prompt for req, calls the backend, and parses the
// reply. The simplified variant gets half the paper budget and no focus
// guidance.
func (g *Generator) Generate(ctx context.Context, req pipeline.GenerationRequest) ([]types.Utterance, error) {
	names := Names(req.Params)

	paperBudget := g.cfg.MaxPaperTokens
	if req.Simplified && paperBudget > 1 {
		paperBudget /= 2
	}
	text, truncated := g.budget.Truncate(req.Text.Text, paperBudget)
	history := g.budget.Tail(req.History, g.cfg.HistoryTokenBudget)

	prompt, err := renderPrompt(req, names, g.wpm, text, history)
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"backend":    g.backend.Name(),
		"attempt":    req.Attempt,
		"simplified": req.Simplified,
		"truncated":  truncated,
		"history":    len(history),
	}).Info("generating script")

	reply, err := g.backend.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	script, err := Parse(reply, names)
	if err != nil {
		return nil, fmt.Errorf("parsing %s reply: %w", g.backend.Name(), err)
	}
	g.log.WithField("lines", len(script)).Debug("script parsed")
	return script, nil
}

// Names returns the speaker names of p, deriving them from the genders when
// the parameters carry none.
func Names(p types.PodcastParams) []string {
	if len(p.SpeakerNames) == p.SpeakerCount && p.SpeakerCount > 0 {
		return p.SpeakerNames
	}
	return pipeline.SpeakerNames(p.SpeakerGenders)
}
