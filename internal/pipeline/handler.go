// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"time"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Searcher finds candidate papers.
type Searcher interface {
	// Search runs a free-text query. An empty result is not an error.
	Search(ctx context.Context, query string) ([]types.Paper, error)

	// Lookup resolves an explicit identifier. found is false when the
	// identifier is unknown.
	Lookup(ctx context.Context, id string) (paper types.Paper, found bool, err error)
}

// Extractor turns a paper into plain text.
type Extractor interface {
	Extract(ctx context.Context, paper types.Paper) (types.ExtractedText, error)
}

// GenerationRequest carries everything the generation collaborator may use
// to build its prompt.
type GenerationRequest struct {
	Paper  types.Paper
	Text   types.ExtractedText
	Params types.PodcastParams

	// History is the windowed tail of Memory, oldest first.
	History []Turn

	// Simplified asks for the reduced prompt used on the retry.
	Simplified bool

	// Attempt is 1 for the first call and 2 for the retry.
	Attempt int
}

// Generator writes the dialogue script.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) ([]types.Utterance, error)
}

// Synthesizer voices one utterance.
type Synthesizer interface {
	Synthesize(ctx context.Context, u types.Utterance, voice string) (types.AudioClip, error)
}

// ArtifactStore keeps the finished audio and returns where it lives.
type ArtifactStore interface {
	Put(ctx context.Context, sessionID string, audio types.AudioClip) (types.AudioArtifact, error)
}

// Collaborators bundles the external services a session calls.
type Collaborators struct {
	Search     Searcher
	Extract    Extractor
	Generate   Generator
	Synthesize Synthesizer
	Artifacts  ArtifactStore
}

// Input is the read-only view a handler receives.
type Input struct {
	SessionID string
	Context   Context
	Memory    Memory
	Event     Event
}

// Output is what a handler asks the orchestrator to commit.
type Output struct {
	Context Context
	Turns   []Turn
	Status  string
	Next    Stage

	// Degraded is set when the handler succeeded with a reduced result; it
	// becomes the session's LastError without failing the pipeline.
	Degraded *Error
}

// Handler runs one pipeline stage. Run must not mutate its Input; turns it
// returns are appended after the ones already in Memory.
type Handler interface {
	// Name is the handler's stage name (Search, Select, ...).
	Name() string

	// Stage is the pipeline stage occupied while Run executes.
	Stage() Stage

	Run(ctx context.Context, in Input) (Output, error)
}

// validator is implemented by handlers that can reject an event before the
// orchestrator enters their working stage.
type validator interface {
	Validate(in Input) error
}

// await runs call and returns as soon as either it finishes or ctx is done.
// A result arriving after cancellation is dropped.
func await[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := call(ctx)
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
