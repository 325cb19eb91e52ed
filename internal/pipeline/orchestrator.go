// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline is the paper-to-podcast state machine. An Orchestrator
// owns one session's Context, Memory, and PipelineState and moves them
// forward in response to Events by running a fixed set of stage handlers:
// Search, Select, Extract, Configure, GenerateScript, and SynthesizeAudio.
//
// The orchestrator performs no I/O of its own. Papers, text, scripts, and
// audio come from the Collaborators it is constructed with, and persistence
// hooks in through Options.OnCommit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// SnapshotVersion is the version written into every Snapshot.
const SnapshotVersion = 1

const statusReady = "Enter a search query or an arXiv identifier."

// Snapshot is a deep copy of a session: the value returned by Advance and the
// record persisted between process runs.
type Snapshot struct {
	Version   int           `json:"version"`
	SessionID string        `json:"session_id"`
	Status    string        `json:"status"`
	State     PipelineState `json:"state"`
	Context   Context       `json:"context"`
	Memory    []Turn        `json:"memory"`

	// LastEvent is the last event that was handled, if any.
	LastEvent *EventRecord `json:"last_event,omitempty"`
}

// Options holds optional orchestrator dependencies.
type Options struct {
	// Logger defaults to the "pipeline" component logger.
	Logger *logrus.Entry

	// Now defaults to time.Now.
	Now func() time.Time

	// OnCommit is called with a fresh Snapshot after every committed change,
	// in commit order, while the session lock is held.
	OnCommit func(Snapshot)
}

// chain is the handler sequence an event kind triggers and the stage in
// which the event is accepted.
type chain struct {
	accepts  Stage
	handlers []Handler
}

// flight tracks the handler chain currently running.
type flight struct {
	cancel  context.CancelFunc
	done    chan struct{}
	aborted bool
}

// handled remembers the outcome of the last accepted event.
type handled struct {
	key      string
	revision int64
	moved    bool
	snap     Snapshot
	err      error
}

func (h *handled) record() *EventRecord {
	r := &EventRecord{Key: h.key, Revision: h.revision, Moved: h.moved}
	var pe *Error
	if errors.As(h.err, &pe) {
		r.Error = pe.Record()
	}
	return r
}

// pending is the event being handled. Commits made on its behalf carry it
// as their LastEvent.
type pending struct {
	key  string
	from Stage
	err  *Error
}

// change is one atomic update of the session.
type change struct {
	stage      Stage
	ctx        *Context
	turns      []Turn
	status     string
	lastError  *ErrorRecord
	clearError bool
	restart    bool
}

// Orchestrator runs one session. It is safe for concurrent use; events are
// processed one at a time, and only a cancel event is honored while a
// collaborator call is in flight.
type Orchestrator struct {
	id       string
	env      *env
	log      *logrus.Entry
	onCommit func(Snapshot)
	chains   map[EventKind]chain

	mu     sync.Mutex
	state  PipelineState
	ctx    Context
	mem    Memory
	status string
	busy   bool
	flight *flight
	last   *handled
	cur    *pending
}

// New creates an Idle session.
func New(id string, cfg types.PipelineConfig, collab Collaborators, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("pipeline")
	}
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = 160
	}
	if cfg.MaxSpeakers <= 0 {
		cfg.MaxSpeakers = 6
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	e := &env{cfg: cfg, collab: collab, now: opts.Now}
	o := &Orchestrator{
		id:       id,
		env:      e,
		log:      opts.Logger.WithField("session", id),
		onCommit: opts.OnCommit,
		state:    PipelineState{Stage: StageIdle},
		status:   statusReady,
	}
	o.chains = map[EventKind]chain{
		EventQuery:     {accepts: StageIdle, handlers: []Handler{searchHandler{e}}},
		EventSelect:    {accepts: StageAwaitingSelection, handlers: []Handler{selectHandler{e}, extractHandler{e}}},
		EventConfigure: {accepts: StageAwaitingParams, handlers: []Handler{configureHandler{e}, generateHandler{e}, synthesizeHandler{e}}},
	}
	return o
}

// Restore rebuilds a session from a persisted Snapshot.
func Restore(snap Snapshot, cfg types.PipelineConfig, collab Collaborators, opts Options) (*Orchestrator, error) {
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d (want %d)", snap.Version, SnapshotVersion)
	}
	if !snap.State.Stage.Valid() {
		return nil, fmt.Errorf("snapshot has unknown stage %q", snap.State.Stage)
	}
	if err := snap.Context.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot context: %w", err)
	}
	o := New(snap.SessionID, cfg, collab, opts)
	o.state = snap.State
	o.ctx = snap.Context.Clone()
	o.mem = NewMemory(snap.Memory)
	if snap.Status != "" {
		o.status = snap.Status
	}
	if r := snap.LastEvent; r != nil {
		h := &handled{key: r.Key, revision: r.Revision, moved: r.Moved}
		if r.Error != nil {
			h.err = r.Error.AsError()
		}
		o.last = h
		h.snap = o.snapshotLocked()
	}
	return o, nil
}

// ID returns the session identifier.
func (o *Orchestrator) ID() string { return o.id }

// Snapshot returns the current session state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Advance applies ev and returns the resulting snapshot. It blocks while the
// stages triggered by ev call their collaborators, and returns once the
// pipeline needs user input again or has finished. Events that do not fit the
// current stage fail with ErrStateViolation and change nothing.
func (o *Orchestrator) Advance(ctx context.Context, ev Event) (Snapshot, error) {
	o.mu.Lock()
	if ev.Kind == EventCancel {
		return o.cancel()
	}
	if o.busy {
		defer o.mu.Unlock()
		return o.reject(ev, "a %s call is still running", o.state.Stage)
	}

	key := ev.key()
	if l := o.last; l != nil && l.key == key && l.revision == o.state.Revision && !l.moved {
		defer o.mu.Unlock()
		o.log.WithField("event", ev.Kind).Debug("duplicate event ignored")
		return l.snap, l.err
	}

	if ev.Kind == EventRestart {
		defer o.mu.Unlock()
		return o.restart(ev, key)
	}

	c, ok := o.chains[ev.Kind]
	switch {
	case !ok:
		defer o.mu.Unlock()
		return o.reject(ev, "unknown event %q", ev.Kind)
	case o.state.Stage != c.accepts:
		defer o.mu.Unlock()
		return o.reject(ev, "%s is not accepted while %s", ev.Kind, o.state.Stage)
	case ev.Kind == EventQuery && !o.ctx.Empty():
		defer o.mu.Unlock()
		return o.reject(ev, "the session already holds results; restart before a new query")
	}

	before := o.state.Stage
	runCtx, cancel := context.WithCancel(ctx)
	fl := &flight{cancel: cancel, done: make(chan struct{})}
	o.busy, o.flight = true, fl
	o.cur = &pending{key: key, from: before}
	err := o.commitLocked(change{turns: []Turn{o.env.turn(RoleUser, before, "%s", ev.describe())}})
	o.mu.Unlock()

	if err == nil {
		err = o.run(runCtx, ev, c.handlers)
	}
	cancel()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy, o.flight, o.cur = false, nil, nil
	close(fl.done)
	o.last = &handled{key: key, revision: o.state.Revision, moved: before != o.state.Stage, err: err}
	snap := o.snapshotLocked()
	o.last.snap = snap
	return snap, err
}

// run executes handlers in order, committing after each one.
func (o *Orchestrator) run(ctx context.Context, ev Event, handlers []Handler) error {
	for _, h := range handlers {
		if ctx.Err() != nil {
			return o.abort(ctx)
		}
		in, stage := o.input(ev)
		if h.Stage() != stage {
			if v, ok := h.(validator); ok {
				if err := v.Validate(in); err != nil {
					return o.fail(h, nil, err)
				}
			}
			if err := o.commit(change{stage: h.Stage(), status: fmt.Sprintf("Running %s...", h.Name())}); err != nil {
				return err
			}
			in, _ = o.input(ev)
		}

		o.log.WithFields(logrus.Fields{"handler": h.Name(), "stage": h.Stage()}).Debug("running stage")
		out, err := h.Run(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				return o.abort(ctx)
			}
			return o.fail(h, out.Turns, err)
		}

		next := out.Context
		ch := change{stage: out.Next, ctx: &next, turns: out.Turns, status: out.Status}
		if out.Degraded != nil {
			ch.lastError = out.Degraded.Record()
			o.log.WithError(out.Degraded).Warn("stage degraded")
		}
		if err := o.commit(ch); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) input(ev Event) (Input, Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Input{SessionID: o.id, Context: o.ctx, Memory: o.mem, Event: ev}, o.state.Stage
}

// fail records a handler error. Validation errors leave the stage as it is;
// anything else moves the session to Failed.
func (o *Orchestrator) fail(h Handler, turns []Turn, err error) error {
	var pe *Error
	if !errors.As(err, &pe) {
		pe = &Error{Kind: failureKind(h.Stage()), Stage: h.Stage(), Err: err}
	}
	msg := userMessage(pe)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cur != nil {
		o.cur.err = pe
	}
	turns = append(turns, o.env.turn(RoleSystem, o.state.Stage, "%s", msg))
	if pe.Validation() {
		o.log.WithError(pe).Info("input rejected")
		if cerr := o.commitLocked(change{turns: turns, status: msg}); cerr != nil {
			return cerr
		}
		return pe
	}
	o.log.WithError(pe).WithField("retried", pe.Retried).Error("stage failed")
	if cerr := o.commitLocked(change{stage: StageFailed, turns: turns, status: msg, lastError: pe.Record()}); cerr != nil {
		return cerr
	}
	return pe
}

// abort commits the cancellation of the running chain. Committed Context
// fields are kept.
func (o *Orchestrator) abort(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	stage := o.state.Stage
	if o.flight != nil {
		o.flight.aborted = true
	}
	to := stage
	msg := "Cancelled."
	if stage.Working() {
		to = StageIdle
		msg = fmt.Sprintf("Cancelled while %s. Results so far are kept; restart to begin again.", stage)
	}
	o.log.WithField("stage", stage).Info("cancelled")
	cerr := &Error{Kind: ErrCancelled, Stage: stage, Err: ctx.Err()}
	if o.cur != nil {
		o.cur.err = cerr
	}
	if err := o.commitLocked(change{stage: to, turns: []Turn{o.env.turn(RoleSystem, stage, "%s", msg)}, status: msg}); err != nil {
		return err
	}
	return cerr
}

// cancel handles a cancel event. The caller holds o.mu; cancel releases it.
func (o *Orchestrator) cancel() (Snapshot, error) {
	if o.busy {
		fl := o.flight
		o.mu.Unlock()
		fl.cancel()
		<-fl.done

		o.mu.Lock()
		defer o.mu.Unlock()
		if !fl.aborted {
			return o.snapshotLocked(), violation(o.state.Stage, "nothing to cancel: the pipeline already reached %s", o.state.Stage)
		}
		return o.snapshotLocked(), nil
	}

	defer o.mu.Unlock()
	stage := o.state.Stage
	if !stage.Working() {
		return o.reject(Cancel(), "cancel is only accepted while a stage is running, not while %s", stage)
	}
	// Restored from storage mid-call: nothing is running, so just settle.
	msg := fmt.Sprintf("Cancelled interrupted %s. Restart to begin again.", stage)
	err := o.commitLocked(change{
		stage:  StageIdle,
		turns:  []Turn{o.env.turn(RoleUser, stage, "cancel"), o.env.turn(RoleSystem, stage, "%s", msg)},
		status: msg,
	})
	return o.snapshotLocked(), err
}

// restart clears the Context and returns to Idle. Memory is kept.
func (o *Orchestrator) restart(ev Event, key string) (Snapshot, error) {
	before := o.state.Stage
	if before.Working() {
		return o.reject(ev, "restart is not accepted while %s; cancel first", before)
	}
	empty := Context{}
	o.cur = &pending{key: key, from: before}
	err := o.commitLocked(change{
		stage: StageIdle,
		ctx:   &empty,
		turns: []Turn{
			o.env.turn(RoleUser, before, "%s", ev.describe()),
			o.env.turn(RoleSystem, before, "Session restarted."),
		},
		status:     statusReady,
		clearError: true,
		restart:    true,
	})
	o.cur = nil
	o.last = &handled{key: key, revision: o.state.Revision, moved: before != StageIdle, err: err}
	snap := o.snapshotLocked()
	o.last.snap = snap
	return snap, err
}

func (o *Orchestrator) reject(ev Event, format string, args ...any) (Snapshot, error) {
	err := violation(o.state.Stage, format, args...)
	o.log.WithFields(logrus.Fields{"event": ev.Kind, "stage": o.state.Stage}).Warn(err.Error())
	return o.snapshotLocked(), err
}

func (o *Orchestrator) commit(ch change) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.commitLocked(ch)
}

// commitLocked applies ch after checking the transition table and the
// Context invariants.
func (o *Orchestrator) commitLocked(ch change) error {
	from := o.state.Stage
	to := ch.stage
	if to == "" {
		to = from
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("undocumented transition %s -> %s", from, to)
	}
	if ch.ctx != nil {
		if !ch.restart {
			if err := ch.ctx.Extends(o.ctx); err != nil {
				return err
			}
		}
		if err := ch.ctx.Validate(); err != nil {
			return err
		}
		o.ctx = *ch.ctx
	}
	o.mem = o.mem.Append(ch.turns...)
	o.state.Stage = to
	switch {
	case ch.lastError != nil:
		o.state.LastError = ch.lastError
	case ch.clearError:
		o.state.LastError = nil
	}
	if ch.status != "" {
		o.status = ch.status
	}
	o.state.Revision++

	if from != to {
		o.log.WithFields(logrus.Fields{"from": from, "to": to}).Info("transition")
	}
	if o.onCommit != nil {
		o.onCommit(o.snapshotLocked())
	}
	return nil
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	state := o.state
	if state.LastError != nil {
		rec := *state.LastError
		state.LastError = &rec
	}
	snap := Snapshot{
		Version:   SnapshotVersion,
		SessionID: o.id,
		Status:    o.status,
		State:     state,
		Context:   o.ctx.Clone(),
		Memory:    o.mem.Turns(),
	}
	switch {
	case o.cur != nil:
		snap.LastEvent = &EventRecord{Key: o.cur.key, Revision: state.Revision, Moved: state.Stage != o.cur.from}
		if o.cur.err != nil {
			snap.LastEvent.Error = o.cur.err.Record()
		}
	case o.last != nil:
		snap.LastEvent = o.last.record()
	}
	return snap
}

func failureKind(s Stage) error {
	switch s {
	case StageSearching:
		return ErrSearchFailed
	case StageExtracting:
		return ErrExtractionFailed
	case StageGeneratingScript:
		return ErrGenerationFailed
	case StageSynthesizingAudio:
		return ErrSynthesisFailed
	}
	return ErrStateViolation
}
