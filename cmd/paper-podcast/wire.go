// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"

	"github.com/pdiddy/paper-podcast/internal/acquire"
	"github.com/pdiddy/paper-podcast/internal/audio"
	"github.com/pdiddy/paper-podcast/internal/convert"
	"github.com/pdiddy/paper-podcast/internal/httputil"
	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/internal/script"
	"github.com/pdiddy/paper-podcast/internal/search"
	"github.com/pdiddy/paper-podcast/internal/session"
	"github.com/pdiddy/paper-podcast/internal/store"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// app holds the wired collaborators of one command run.
type app struct {
	cfg   types.Config
	mgr   *session.Manager
	files *audio.FileStore
	store *store.Store
}

// newApp builds every collaborator from c and a session manager over them.
// onCommit, when set, sees every committed session change.
func newApp(ctx context.Context, c types.Config, onCommit func(pipeline.Snapshot)) (*app, error) {
	searcher := search.New(c.Search, httputil.NewClient(c.Search.HTTPConfig))

	conv, err := convert.New(ctx, c.Conversion)
	if err != nil {
		return nil, err
	}
	fetcher := acquire.NewFetcher(httputil.NewClient(c.Acquisition.HTTPConfig), c.Acquisition)
	extractor := convert.NewExtractor(fetcher, conv, c.Acquisition.PapersDir)

	backend, err := script.NewBackend(c.Generation, nil)
	if err != nil {
		return nil, err
	}
	gen, err := script.NewGenerator(backend, c.Generation, c.Pipeline.WordsPerMinute)
	if err != nil {
		return nil, err
	}

	if c.Synthesis.APIKey == "" {
		return nil, errors.New("speech synthesis: no API key (set synthesis.api_key or OPENAI_API_KEY)")
	}
	synth := audio.NewOpenAISynthesizer(c.Synthesis, nil)
	files := audio.NewFileStore(c.Synthesis.OutputDir)

	a := &app{cfg: c, files: files}
	opts := session.Options{
		OnDelete: files.Remove,
		Pipeline: pipeline.Options{OnCommit: onCommit},
	}
	if c.Store.Path != "" {
		st, err := store.Open(c.Store.Path)
		if err != nil {
			return nil, err
		}
		a.store = st
		opts.Store = st
	}

	a.mgr = session.NewManager(c.Pipeline, pipeline.Collaborators{
		Search:     searcher,
		Extract:    extractor,
		Generate:   gen,
		Synthesize: synth,
		Artifacts:  files,
	}, opts)
	return a, nil
}

// Close releases the session database.
func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// openStore opens the session database for commands that only read or
// delete records and need no collaborators.
func openStore(c types.Config) (*store.Store, error) {
	if c.Store.Path == "" {
		return nil, errors.New("no session database configured (store.path)")
	}
	return store.Open(c.Store.Path)
}
