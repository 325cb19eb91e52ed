// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session keeps the live orchestrators of a process, keyed by
// session id, and mirrors every committed change into the session store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/internal/store"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = store.ErrNotFound

// Store is the persistence the manager needs. *store.Store implements it.
type Store interface {
	Save(ctx context.Context, snap pipeline.Snapshot) error
	Load(ctx context.Context, id string) (pipeline.Snapshot, error)
	List(ctx context.Context) ([]store.Summary, error)
	Delete(ctx context.Context, id string) error
}

// Options holds optional manager dependencies.
type Options struct {
	// Store persists sessions. Nil keeps them in memory only.
	Store Store

	// NewID defaults to uuid.NewString.
	NewID func() string

	// OnDelete is called after a session is deleted, e.g. to remove its
	// audio.
	OnDelete func(id string) error

	// Pipeline is passed to every orchestrator; its OnCommit is wrapped.
	Pipeline pipeline.Options
}

// Manager creates, restores, and drives sessions.
type Manager struct {
	cfg    types.PipelineConfig
	collab pipeline.Collaborators
	opts   Options
	log    *logrus.Entry

	mu       sync.Mutex
	sessions map[string]*pipeline.Orchestrator
}

// NewManager returns a manager whose sessions share cfg and collab.
func NewManager(cfg types.PipelineConfig, collab pipeline.Collaborators, opts Options) *Manager {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Manager{
		cfg:      cfg,
		collab:   collab,
		opts:     opts,
		log:      logging.New("session"),
		sessions: make(map[string]*pipeline.Orchestrator),
	}
}

// Create starts a new Idle session and persists it.
func (m *Manager) Create(ctx context.Context) (pipeline.Snapshot, error) {
	id := m.opts.NewID()
	o := pipeline.New(id, m.cfg, m.collab, m.pipelineOptions(id))
	snap := o.Snapshot()
	if m.opts.Store != nil {
		if err := m.opts.Store.Save(ctx, snap); err != nil {
			return pipeline.Snapshot{}, err
		}
	}

	m.mu.Lock()
	m.sessions[id] = o
	m.mu.Unlock()
	m.log.WithField("session", id).Info("session created")
	return snap, nil
}

// Get returns the live orchestrator of id, restoring it from the store when
// this process has not seen it yet.
func (m *Manager) Get(ctx context.Context, id string) (*pipeline.Orchestrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.sessions[id]; ok {
		return o, nil
	}
	if m.opts.Store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	snap, err := m.opts.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	o, err := pipeline.Restore(snap, m.cfg, m.collab, m.pipelineOptions(id))
	if err != nil {
		return nil, fmt.Errorf("restoring session %s: %w", id, err)
	}
	m.sessions[id] = o
	m.log.WithFields(logrus.Fields{"session": id, "stage": snap.State.Stage}).Info("session restored")
	return o, nil
}

// Snapshot returns the current state of id.
func (m *Manager) Snapshot(ctx context.Context, id string) (pipeline.Snapshot, error) {
	o, err := m.Get(ctx, id)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	return o.Snapshot(), nil
}

// Advance applies ev to session id.
func (m *Manager) Advance(ctx context.Context, id string, ev pipeline.Event) (pipeline.Snapshot, error) {
	o, err := m.Get(ctx, id)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	return o.Advance(ctx, ev)
}

// List returns a summary of every known session, most recently updated
// first.
func (m *Manager) List(ctx context.Context) ([]store.Summary, error) {
	if m.opts.Store != nil {
		return m.opts.Store.List(ctx)
	}
	m.mu.Lock()
	out := make([]store.Summary, 0, len(m.sessions))
	for id, o := range m.sessions {
		snap := o.Snapshot()
		sum := store.Summary{ID: id, Stage: snap.State.Stage, Revision: snap.State.Revision, Query: snap.Context.Query}
		if p := snap.Context.SelectedPaper; p != nil {
			sum.Title = p.Title
		}
		if n := len(snap.Memory); n > 0 {
			sum.CreatedAt = snap.Memory[0].Timestamp
			sum.UpdatedAt = snap.Memory[n-1].Timestamp
		}
		out = append(out, sum)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete cancels any running stage of id and forgets the session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	o, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Snapshot().State.Stage.Working() {
		if _, err := o.Advance(ctx, pipeline.Cancel()); err != nil {
			m.log.WithError(err).WithField("session", id).Warn("cancel before delete")
		}
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	var errs []error
	if m.opts.Store != nil {
		if err := m.opts.Store.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if m.opts.OnDelete != nil {
		if err := m.opts.OnDelete(id); err != nil {
			errs = append(errs, err)
		}
	}
	m.log.WithField("session", id).Info("session deleted")
	return errors.Join(errs...)
}

// pipelineOptions wraps the configured OnCommit with persistence.
func (m *Manager) pipelineOptions(id string) pipeline.Options {
	opts := m.opts.Pipeline
	next := opts.OnCommit
	st := m.opts.Store
	log := m.log.WithField("session", id)
	opts.OnCommit = func(s pipeline.Snapshot) {
		if st != nil {
			if err := st.Save(context.Background(), s); err != nil {
				log.WithError(err).Error("persisting session")
			}
		}
		if next != nil {
			next(s)
		}
	}
	return opts
}
