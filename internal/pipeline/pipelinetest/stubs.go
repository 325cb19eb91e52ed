// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipelinetest provides in-memory collaborators for tests of the
// packages that drive sessions.
package pipelinetest

import (
	"context"
	"strings"
	"sync"

	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Papers returns three well-known candidates.
func Papers() []types.Paper {
	return []types.Paper{
		{ID: "1706.03762", Title: "Attention Is All You Need", Authors: []string{"Vaswani"}, Abstract: "Transformers."},
		{ID: "2005.14165", Title: "Language Models are Few-Shot Learners", Authors: []string{"Brown"}, Abstract: "GPT-3."},
		{ID: "1810.04805", Title: "BERT", Authors: []string{"Devlin"}, Abstract: "Bidirectional encoders."},
	}
}

// Searcher returns Papers for every query and resolves their ids.
type Searcher struct {
	Err error
}

func (s *Searcher) Search(context.Context, string) ([]types.Paper, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return Papers(), nil
}

func (s *Searcher) Lookup(_ context.Context, id string) (types.Paper, bool, error) {
	for _, p := range Papers() {
		if p.ID == id {
			return p, true, nil
		}
	}
	return types.Paper{}, false, nil
}

// Extractor returns a fixed 4000-word text.
type Extractor struct {
	Err error
}

func (e *Extractor) Extract(context.Context, types.Paper) (types.ExtractedText, error) {
	if e.Err != nil {
		return types.ExtractedText{}, e.Err
	}
	return types.ExtractedText{Text: Words(4000), WordCount: 4000, PageCount: 10}, nil
}

// Generator writes ten alternating lines whose length matches the requested
// duration at 160 words per minute.
type Generator struct {
	Err error

	// Block, when set, holds every call until it is closed or the context
	// is done.
	Block chan struct{}
}

func (g *Generator) Generate(ctx context.Context, req pipeline.GenerationRequest) ([]types.Utterance, error) {
	if g.Block != nil {
		select {
		case <-g.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.Err != nil {
		return nil, g.Err
	}
	perLine := req.Params.DurationMinutes * 16
	out := make([]types.Utterance, 10)
	for i := range out {
		out[i] = types.Utterance{SpeakerIndex: i % req.Params.SpeakerCount, Text: Words(perLine)}
	}
	return out, nil
}

// Synthesizer returns a 100 ms clip per utterance.
type Synthesizer struct {
	mu     sync.Mutex
	Voices []string
}

func (s *Synthesizer) Synthesize(_ context.Context, _ types.Utterance, voice string) (types.AudioClip, error) {
	s.mu.Lock()
	s.Voices = append(s.Voices, voice)
	s.mu.Unlock()
	return types.AudioClip{Format: types.PCM16, SampleRate: 1000, Channels: 1, Data: make([]byte, 200)}, nil
}

// Artifacts keeps audio in memory.
type Artifacts struct {
	mu    sync.Mutex
	clips map[string]types.AudioClip
}

func (a *Artifacts) Put(_ context.Context, id string, clip types.AudioClip) (types.AudioArtifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.clips == nil {
		a.clips = make(map[string]types.AudioClip)
	}
	a.clips[id] = clip
	return types.AudioArtifact{Handle: "mem://" + id, Format: "wav"}, nil
}

// Get returns the stored audio of id.
func (a *Artifacts) Get(id string) (types.AudioClip, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.clips[id]
	return c, ok
}

// Collaborators returns a fresh set of stubs.
func Collaborators() pipeline.Collaborators {
	return pipeline.Collaborators{
		Search:     &Searcher{},
		Extract:    &Extractor{},
		Generate:   &Generator{},
		Synthesize: &Synthesizer{},
		Artifacts:  &Artifacts{},
	}
}

// Config is the default pipeline policy without retry delays.
func Config() types.PipelineConfig {
	cfg := types.DefaultConfig().Pipeline
	cfg.RetryDelay = 0
	return cfg
}

// Words returns n space-separated words.
func Words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}
