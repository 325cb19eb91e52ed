// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// --- fakes ---

type fakeSearcher struct {
	mu       sync.Mutex
	results  []types.Paper
	err      error
	lookup   map[string]types.Paper
	queries  []string
	lookups  []string
	block    chan struct{}
}

func (f *fakeSearcher) Search(ctx context.Context, q string) ([]types.Paper, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.results, f.err
}

func (f *fakeSearcher) Lookup(_ context.Context, id string) (types.Paper, bool, error) {
	f.mu.Lock()
	f.lookups = append(f.lookups, id)
	f.mu.Unlock()
	p, ok := f.lookup[id]
	return p, ok, nil
}

type fakeExtractor struct {
	text types.ExtractedText
	err  error
}

func (f *fakeExtractor) Extract(context.Context, types.Paper) (types.ExtractedText, error) {
	return f.text, f.err
}

// fakeGenerator returns responses in order; the last one repeats.
type fakeGenerator struct {
	mu        sync.Mutex
	responses []genResponse
	requests  []GenerationRequest
	started   chan struct{}
}

type genResponse struct {
	script []types.Utterance
	err    error
	// wait blocks the call until closed, ignoring cancellation.
	wait chan struct{}
	// honorCtx blocks until the context is done.
	honorCtx bool
}

func (f *fakeGenerator) Generate(ctx context.Context, req GenerationRequest) ([]types.Utterance, error) {
	f.mu.Lock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	r := f.responses[min(i, len(f.responses)-1)]
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if r.wait != nil {
		<-r.wait
	}
	if r.honorCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return r.script, r.err
}

func (f *fakeGenerator) calls() []GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GenerationRequest(nil), f.requests...)
}

// fakeSynth returns one 100ms clip per utterance. failAt maps a call number
// (zero-based, counting retries) to an error.
type fakeSynth struct {
	mu     sync.Mutex
	calls  int
	failAt map[int]error
	voices []string
}

func (f *fakeSynth) Synthesize(_ context.Context, u types.Utterance, voice string) (types.AudioClip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls
	f.calls++
	if err, ok := f.failAt[n]; ok {
		return types.AudioClip{}, err
	}
	f.voices = append(f.voices, voice)
	return types.AudioClip{Format: types.PCM16, SampleRate: 1000, Channels: 1, Data: make([]byte, 200)}, nil
}

type memArtifacts struct {
	mu   sync.Mutex
	puts map[string]types.AudioClip
	err  error
}

func (m *memArtifacts) Put(_ context.Context, sessionID string, audio types.AudioClip) (types.AudioArtifact, error) {
	if m.err != nil {
		return types.AudioArtifact{}, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.puts == nil {
		m.puts = make(map[string]types.AudioClip)
	}
	m.puts[sessionID] = audio
	return types.AudioArtifact{Handle: "mem://" + sessionID, Format: "wav"}, nil
}

// --- fixtures ---

func threePapers() []types.Paper {
	return []types.Paper{
		{ID: "1706.03762", Title: "Attention Is All You Need", Authors: []string{"Vaswani"}, Abstract: "Transformers."},
		{ID: "2005.14165", Title: "Language Models are Few-Shot Learners", Authors: []string{"Brown"}, Abstract: "GPT-3."},
		{ID: "1810.04805", Title: "BERT", Authors: []string{"Devlin"}, Abstract: "Bidirectional encoders."},
	}
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

// alternating builds a script of lines utterances alternating between
// speakers 0 and 1, each perLine words long.
func alternating(lines, perLine int) []types.Utterance {
	out := make([]types.Utterance, lines)
	for i := range out {
		out[i] = types.Utterance{SpeakerIndex: i % 2, Text: words(perLine)}
	}
	return out
}

func testConfig() types.PipelineConfig {
	cfg := types.DefaultConfig().Pipeline
	cfg.RetryDelay = 0
	return cfg
}

type harness struct {
	search  *fakeSearcher
	extract *fakeExtractor
	gen     *fakeGenerator
	synth   *fakeSynth
	store   *memArtifacts
	commits []Snapshot
	mu      sync.Mutex
	logs    *test.Hook
}

func newHarness() *harness {
	return &harness{
		search:  &fakeSearcher{results: threePapers()},
		extract: &fakeExtractor{text: types.ExtractedText{Text: words(4000), WordCount: 4000}},
		gen:     &fakeGenerator{responses: []genResponse{{script: alternating(16, 100)}}},
		synth:   &fakeSynth{},
		store:   &memArtifacts{},
	}
}

func (h *harness) collaborators() Collaborators {
	return Collaborators{Search: h.search, Extract: h.extract, Generate: h.gen, Synthesize: h.synth, Artifacts: h.store}
}

func (h *harness) options() Options {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	h.logs = hook
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var tick sync.Mutex
	return Options{
		Logger: logrus.NewEntry(logger),
		Now: func() time.Time {
			tick.Lock()
			defer tick.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
		OnCommit: func(s Snapshot) {
			h.mu.Lock()
			h.commits = append(h.commits, s)
			h.mu.Unlock()
		},
	}
}

func (h *harness) orchestrator(cfg types.PipelineConfig) *Orchestrator {
	return New("s-1", cfg, h.collaborators(), h.options())
}

func (h *harness) stages() []Stage {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Stage
	for _, s := range h.commits {
		if len(out) == 0 || out[len(out)-1] != s.State.Stage {
			out = append(out, s.State.Stage)
		}
	}
	return out
}

func maleFemale(d int) types.PodcastParams {
	return types.PodcastParams{DurationMinutes: d, SpeakerCount: 2, SpeakerGenders: []types.Gender{types.GenderMale, types.GenderFemale}}
}

// toParams drives a fresh orchestrator to AwaitingParams.
func toParams(o *Orchestrator) error {
	if _, err := o.Advance(context.Background(), Query("transformer attention")); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if _, err := o.Advance(context.Background(), Select(1)); err != nil {
		return fmt.Errorf("select: %w", err)
	}
	return nil
}
