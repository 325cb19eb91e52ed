// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

func TestEndToEnd(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	ctx := context.Background()

	snap, err := o.Advance(ctx, Query("transformer attention"))
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingSelection, snap.State.Stage)
	assert.Len(t, snap.Context.CandidatePapers, 3)
	assert.Equal(t, []string{"transformer attention"}, h.search.queries)

	snap, err = o.Advance(ctx, Select(1))
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingParams, snap.State.Stage)
	assert.Equal(t, "2005.14165", snap.Context.SelectedPaper.ID)
	assert.Equal(t, 4000, snap.Context.ExtractedText.WordCount)

	snap, err = o.Advance(ctx, Configure(maleFemale(10)))
	require.NoError(t, err)
	assert.Equal(t, StageComplete, snap.State.Stage)
	assert.Nil(t, snap.State.LastError)

	require.Len(t, snap.Context.Script, 16)
	for i, u := range snap.Context.Script {
		assert.Equal(t, i%2, u.SpeakerIndex)
	}
	assert.InDelta(t, 10.0, EstimateMinutes(snap.Context.Script, 160), 0.01)

	art := snap.Context.AudioArtifact
	require.NotNil(t, art)
	assert.Equal(t, "mem://s-1", art.Handle)
	assert.Equal(t, 16, art.Utterances)
	assert.False(t, art.Partial)
	// 16 clips of 100ms plus 15 pauses of 300ms.
	assert.Equal(t, 1600*time.Millisecond+15*300*time.Millisecond, art.Duration)
	assert.Equal(t, []string{"David", "Emma"}, snap.Context.PodcastParams.SpeakerNames)
	require.NoError(t, snap.Context.Validate())

	assert.Equal(t, []Stage{
		StageIdle, StageSearching, StageAwaitingSelection, StageExtracting,
		StageAwaitingParams, StageGeneratingScript, StageSynthesizingAudio, StageComplete,
	}, h.stages())
}

func TestCommitsFollowDocumentedEdgesAndOnlyGrow(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	require.NoError(t, toParams(o))
	_, err := o.Advance(context.Background(), Configure(maleFemale(10)))
	require.NoError(t, err)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.commits)
	for i := 1; i < len(h.commits); i++ {
		prev, cur := h.commits[i-1], h.commits[i]
		assert.True(t, CanTransition(prev.State.Stage, cur.State.Stage), "%s -> %s", prev.State.Stage, cur.State.Stage)
		assert.NoError(t, cur.Context.Extends(prev.Context), "commit %d", i)
		assert.GreaterOrEqual(t, len(cur.Memory), len(prev.Memory))
		assert.Greater(t, cur.State.Revision, prev.State.Revision)
		assert.Equal(t, prev.Memory, cur.Memory[:len(prev.Memory)], "memory prefix rewritten at commit %d", i)
	}
}

func TestConfigureValidation(t *testing.T) {
	tests := []struct {
		name      string
		params    types.PodcastParams
		wantField string
	}{
		{"accepted", maleFemale(15), ""},
		{"duration not allowed", maleFemale(7), "duration_minutes"},
		{"genders length mismatch", types.PodcastParams{DurationMinutes: 15, SpeakerCount: 2, SpeakerGenders: []types.Gender{types.GenderMale}}, "speaker_genders"},
		{"no speakers", types.PodcastParams{DurationMinutes: 15, SpeakerCount: 0}, "speaker_count"},
		{"too many speakers", types.PodcastParams{DurationMinutes: 15, SpeakerCount: 7, SpeakerGenders: make([]types.Gender, 7)}, "speaker_count"},
		{"unknown gender", types.PodcastParams{DurationMinutes: 15, SpeakerCount: 1, SpeakerGenders: []types.Gender{"robot"}}, "speaker_genders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.gen.responses = []genResponse{{script: alternating(24, 100)}}
			o := h.orchestrator(testConfig())
			require.NoError(t, toParams(o))
			before := o.Snapshot()

			snap, err := o.Advance(context.Background(), Configure(tt.params))
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, StageComplete, snap.State.Stage)
				return
			}
			require.ErrorIs(t, err, ErrInvalidParameters)
			var pe *Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantField, pe.Field)
			assert.Equal(t, StageAwaitingParams, snap.State.Stage)
			assert.Nil(t, snap.Context.PodcastParams, "parameters must not be partially applied")
			assert.Empty(t, h.gen.calls())
			assert.Greater(t, len(snap.Memory), len(before.Memory))
			assert.Equal(t, RoleSystem, snap.Memory[len(snap.Memory)-1].Role)
		})
	}
}

func TestSelectOutOfRange(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	_, err := o.Advance(context.Background(), Query("transformer attention"))
	require.NoError(t, err)

	snap, err := o.Advance(context.Background(), Select(5))
	require.ErrorIs(t, err, ErrInvalidSelection)
	assert.Equal(t, StageAwaitingSelection, snap.State.Stage)
	assert.Nil(t, snap.Context.SelectedPaper)

	snap, err = o.Advance(context.Background(), SelectID("1810.04805"))
	require.NoError(t, err)
	assert.Equal(t, "BERT", snap.Context.SelectedPaper.Title)
}

func TestDuplicateSelectIsStateViolation(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	_, err := o.Advance(context.Background(), Query("transformer attention"))
	require.NoError(t, err)

	first, err := o.Advance(context.Background(), Select(1))
	require.NoError(t, err)

	second, err := o.Advance(context.Background(), Select(1))
	require.ErrorIs(t, err, ErrStateViolation)
	assert.Equal(t, first.State, second.State)
	assert.Len(t, second.Memory, len(first.Memory))
}

func TestDuplicateInvalidEventHasNoSideEffect(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	require.NoError(t, toParams(o))

	ev := Configure(maleFemale(7))
	first, err1 := o.Advance(context.Background(), ev)
	second, err2 := o.Advance(context.Background(), ev)
	require.ErrorIs(t, err1, ErrInvalidParameters)
	require.ErrorIs(t, err2, ErrInvalidParameters)
	assert.Equal(t, first.State.Revision, second.State.Revision)
	assert.Len(t, second.Memory, len(first.Memory))

	// The same payload under a new delivery id is a new event.
	ev.ID = "retry-2"
	third, err := o.Advance(context.Background(), ev)
	require.ErrorIs(t, err, ErrInvalidParameters)
	assert.Greater(t, len(third.Memory), len(second.Memory))
}

func TestInvalidEventLeavesStateUnchanged(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	before := o.Snapshot()

	for _, ev := range []Event{Select(0), Configure(maleFemale(10)), Cancel(), {Kind: "dance"}} {
		snap, err := o.Advance(context.Background(), ev)
		require.ErrorIs(t, err, ErrStateViolation, "event %s", ev.Kind)
		if diff := cmp.Diff(before, snap); diff != "" {
			t.Errorf("state changed after %s (-before +after):\n%s", ev.Kind, diff)
		}
	}
	assert.Empty(t, h.commits)
}

func TestEmptyQueryRejected(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	snap, err := o.Advance(context.Background(), Query("   "))
	require.ErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, StageIdle, snap.State.Stage)
	assert.Empty(t, h.search.queries)
}

func TestSearchOutcomes(t *testing.T) {
	t.Run("no results is not a failure", func(t *testing.T) {
		h := newHarness()
		h.search.results = nil
		o := h.orchestrator(testConfig())
		snap, err := o.Advance(context.Background(), Query("nothing matches"))
		require.NoError(t, err)
		assert.Equal(t, StageAwaitingSelection, snap.State.Stage)
		assert.Empty(t, snap.Context.CandidatePapers)
		assert.Contains(t, snap.Status, "No papers found")

		_, err = o.Advance(context.Background(), Select(0))
		assert.ErrorIs(t, err, ErrInvalidSelection)
	})

	t.Run("collaborator error fails", func(t *testing.T) {
		h := newHarness()
		h.search.err = errors.New("arxiv unreachable")
		o := h.orchestrator(testConfig())
		snap, err := o.Advance(context.Background(), Query("transformer attention"))
		require.ErrorIs(t, err, ErrSearchFailed)
		assert.Equal(t, StageFailed, snap.State.Stage)
		require.NotNil(t, snap.State.LastError)
		assert.Equal(t, "SearchFailed", snap.State.LastError.Kind)
		assert.Equal(t, StageSearching, snap.State.LastError.Stage)
	})

	t.Run("identifier lookup", func(t *testing.T) {
		h := newHarness()
		h.search.lookup = map[string]types.Paper{"1706.03762": threePapers()[0]}
		o := h.orchestrator(testConfig())
		snap, err := o.Advance(context.Background(), Query("arXiv:1706.03762"))
		require.NoError(t, err)
		require.Len(t, snap.Context.CandidatePapers, 1)
		assert.Equal(t, "Attention Is All You Need", snap.Context.CandidatePapers[0].Title)
		assert.Empty(t, h.search.queries)
	})

	t.Run("unknown identifier falls back to text search", func(t *testing.T) {
		h := newHarness()
		o := h.orchestrator(testConfig())
		snap, err := o.Advance(context.Background(), Query("2401.99999"))
		require.NoError(t, err)
		assert.Equal(t, []string{"2401.99999"}, h.search.lookups)
		assert.Equal(t, []string{"2401.99999"}, h.search.queries)
		assert.Len(t, snap.Context.CandidatePapers, 3)
	})
}

func TestExtractionFailure(t *testing.T) {
	for name, ex := range map[string]*fakeExtractor{
		"collaborator error": {err: errors.New("encrypted PDF")},
		"empty document":     {text: types.ExtractedText{Text: "  \n "}},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			h.extract = ex
			o := h.orchestrator(testConfig())
			_, err := o.Advance(context.Background(), Query("transformer attention"))
			require.NoError(t, err)

			snap, err := o.Advance(context.Background(), Select(0))
			require.ErrorIs(t, err, ErrExtractionFailed)
			assert.Equal(t, StageFailed, snap.State.Stage)
			assert.False(t, snap.State.LastError.Retried)
			assert.NotNil(t, snap.Context.SelectedPaper, "committed selection is kept")

			last := snap.Memory[len(snap.Memory)-1]
			assert.Equal(t, RoleSystem, last.Role)
			assert.Contains(t, last.Content, "pick another paper")
			assert.Contains(t, last.Content, "stage: extracting")
		})
	}
}

func TestGenerationRetry(t *testing.T) {
	t.Run("retry succeeds", func(t *testing.T) {
		h := newHarness()
		h.gen.responses = []genResponse{{err: errors.New("quota exceeded")}, {script: alternating(16, 100)}}
		o := h.orchestrator(testConfig())
		require.NoError(t, toParams(o))

		snap, err := o.Advance(context.Background(), Configure(maleFemale(10)))
		require.NoError(t, err)
		assert.Equal(t, StageComplete, snap.State.Stage)

		calls := h.gen.calls()
		require.Len(t, calls, 2)
		assert.False(t, calls[0].Simplified)
		assert.True(t, calls[1].Simplified)
		assert.Equal(t, 2, calls[1].Attempt)
		last := calls[1].History[len(calls[1].History)-1]
		assert.Equal(t, RoleSystem, last.Role)
		assert.Contains(t, last.Content, "Retrying")
	})

	t.Run("malformed output is retried", func(t *testing.T) {
		h := newHarness()
		bad := alternating(16, 100)
		bad[3].SpeakerIndex = 4
		h.gen.responses = []genResponse{{script: bad}, {script: alternating(16, 100)}}
		o := h.orchestrator(testConfig())
		require.NoError(t, toParams(o))

		snap, err := o.Advance(context.Background(), Configure(maleFemale(10)))
		require.NoError(t, err)
		assert.Equal(t, StageComplete, snap.State.Stage)
		assert.Len(t, h.gen.calls(), 2)
	})

	t.Run("too short is malformed", func(t *testing.T) {
		h := newHarness()
		h.gen.responses = []genResponse{{script: alternating(2, 10)}}
		o := h.orchestrator(testConfig())
		require.NoError(t, toParams(o))

		snap, err := o.Advance(context.Background(), Configure(maleFemale(10)))
		require.ErrorIs(t, err, ErrGenerationFailed)
		assert.Equal(t, StageFailed, snap.State.Stage)
		assert.Contains(t, snap.State.LastError.Cause, "estimated")
	})

	t.Run("retry fails", func(t *testing.T) {
		h := newHarness()
		h.gen.responses = []genResponse{{err: errors.New("quota exceeded")}, {err: errors.New("still exceeded")}}
		o := h.orchestrator(testConfig())
		require.NoError(t, toParams(o))

		snap, err := o.Advance(context.Background(), Configure(maleFemale(10)))
		require.ErrorIs(t, err, ErrGenerationFailed)
		assert.Equal(t, StageFailed, snap.State.Stage)
		rec := snap.State.LastError
		require.NotNil(t, rec)
		assert.True(t, rec.Retried)
		assert.Equal(t, "quota exceeded", rec.Cause)
		assert.Equal(t, "still exceeded", rec.RetryCause)
		assert.Nil(t, snap.Context.Script)
		assert.Equal(t, 0, h.synth.calls)
	})
}

func TestSynthesisRetryAndDegradation(t *testing.T) {
	boom := errors.New("tts unavailable")

	t.Run("one retry recovers", func(t *testing.T) {
		h := newHarness()
		h.synth.failAt = map[int]error{2: boom}
		o := h.orchestrator(testConfig())
		require.NoError(t, toParams(o))
		snap, err := o.Advance(context.Background(), Configure(maleFemale(10)))
		require.NoError(t, err)
		assert.Equal(t, StageComplete, snap.State.Stage)
		assert.Equal(t, 16, snap.Context.AudioArtifact.Utterances)
		assert.Equal(t, 17, h.synth.calls)
	})

	t.Run("second failure is final", func(t *testing.T) {
		h := newHarness()
		h.synth.failAt = map[int]error{2: boom, 6: errors.New("again")}
		o := h.orchestrator(testConfig())
		require.NoError(t, toParams(o))
		snap, err := o.Advance(context.Background(), Configure(maleFemale(10)))
		require.ErrorIs(t, err, ErrSynthesisFailed)
		assert.Equal(t, StageFailed, snap.State.Stage)
		assert.True(t, snap.State.LastError.Retried)
		assert.Nil(t, snap.Context.AudioArtifact)
		assert.NotNil(t, snap.Context.Script, "script survives a synthesis failure")
	})

	t.Run("later failure after a recovered retry keeps both causes", func(t *testing.T) {
		h := newHarness()
		h.synth.failAt = map[int]error{0: boom, 3: errors.New("connection reset")}
		o := h.orchestrator(testConfig())
		require.NoError(t, toParams(o))
		snap, err := o.Advance(context.Background(), Configure(maleFemale(10)))
		require.ErrorIs(t, err, ErrSynthesisFailed)
		assert.Equal(t, StageFailed, snap.State.Stage)
		assert.Equal(t, 4, h.synth.calls, "the retry was already spent on line 1")

		rec := snap.State.LastError
		require.NotNil(t, rec)
		assert.True(t, rec.Retried)
		assert.Equal(t, "tts unavailable", rec.Cause)
		assert.Equal(t, "connection reset", rec.RetryCause)
	})

	t.Run("partial artifact when allowed", func(t *testing.T) {
		h := newHarness()
		h.synth.failAt = map[int]error{5: boom, 6: boom}
		cfg := testConfig()
		cfg.AllowPartialAudio = true
		o := h.orchestrator(cfg)
		require.NoError(t, toParams(o))
		snap, err := o.Advance(context.Background(), Configure(maleFemale(10)))
		require.NoError(t, err)
		assert.Equal(t, StageComplete, snap.State.Stage)
		art := snap.Context.AudioArtifact
		require.NotNil(t, art)
		assert.True(t, art.Partial)
		assert.Equal(t, 5, art.Utterances)
		require.NotNil(t, snap.State.LastError)
		assert.Equal(t, "SynthesisFailed", snap.State.LastError.Kind)
		assert.True(t, snap.State.LastError.Retried)
		assert.Contains(t, snap.Status, "partially")
	})
}

func TestVoicesFollowSpeakers(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	require.NoError(t, toParams(o))
	_, err := o.Advance(context.Background(), Configure(maleFemale(10)))
	require.NoError(t, err)
	require.Len(t, h.synth.voices, 16)
	for i, v := range h.synth.voices {
		if i%2 == 0 {
			assert.Equal(t, "onyx", v)
		} else {
			assert.Equal(t, "nova", v)
		}
	}
}

func TestCancelDuringGeneration(t *testing.T) {
	h := newHarness()
	h.gen.started = make(chan struct{}, 1)
	h.gen.responses = []genResponse{{honorCtx: true}}
	o := h.orchestrator(testConfig())
	require.NoError(t, toParams(o))

	var wg sync.WaitGroup
	var advErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, advErr = o.Advance(context.Background(), Configure(maleFemale(10)))
	}()
	<-h.gen.started

	// Other events are rejected while the call is running.
	_, err := o.Advance(context.Background(), Restart())
	require.ErrorIs(t, err, ErrStateViolation)

	snap, err := o.Advance(context.Background(), Cancel())
	require.NoError(t, err)
	wg.Wait()

	require.ErrorIs(t, advErr, ErrCancelled)
	assert.ErrorIs(t, advErr, context.Canceled)
	assert.Equal(t, StageIdle, snap.State.Stage)
	assert.NotNil(t, snap.Context.PodcastParams, "committed params are kept")
	assert.NotNil(t, snap.Context.ExtractedText)
	assert.Nil(t, snap.Context.Script)
	assert.Contains(t, snap.Memory[len(snap.Memory)-1].Content, "Cancelled while generating_script")
}

func TestCancelDiscardsLateResult(t *testing.T) {
	h := newHarness()
	release := make(chan struct{})
	h.gen.started = make(chan struct{}, 1)
	h.gen.responses = []genResponse{{script: alternating(16, 100), wait: release}}
	o := h.orchestrator(testConfig())
	require.NoError(t, toParams(o))

	done := make(chan Snapshot)
	go func() {
		snap, _ := o.Advance(context.Background(), Configure(maleFemale(10)))
		done <- snap
	}()
	<-h.gen.started

	_, err := o.Advance(context.Background(), Cancel())
	require.NoError(t, err)
	close(release)
	snap := <-done

	assert.Equal(t, StageIdle, snap.State.Stage)
	assert.Nil(t, snap.Context.Script)
	assert.Equal(t, 0, h.synth.calls)
}

func TestCancelDuringSearch(t *testing.T) {
	h := newHarness()
	h.search.block = make(chan struct{})
	o := h.orchestrator(testConfig())

	done := make(chan error)
	go func() {
		_, err := o.Advance(context.Background(), Query("transformer attention"))
		done <- err
	}()
	require.Eventually(t, func() bool { return o.Snapshot().State.Stage == StageSearching }, time.Second, time.Millisecond)

	snap, err := o.Advance(context.Background(), Cancel())
	require.NoError(t, err)
	require.ErrorIs(t, <-done, ErrCancelled)
	assert.Equal(t, StageIdle, snap.State.Stage)
	assert.Empty(t, snap.Context.CandidatePapers)

	// Nothing reached the Context, so a new query needs no restart.
	close(h.search.block)
	snap, err = o.Advance(context.Background(), Query("something else"))
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingSelection, snap.State.Stage)
	assert.Equal(t, "something else", snap.Context.Query)
}

func TestQueryAfterCancelNeedsRestart(t *testing.T) {
	h := newHarness()
	h.gen.started = make(chan struct{}, 1)
	h.gen.responses = []genResponse{{honorCtx: true}}
	o := h.orchestrator(testConfig())
	require.NoError(t, toParams(o))

	go o.Advance(context.Background(), Configure(maleFemale(10)))
	<-h.gen.started
	_, err := o.Advance(context.Background(), Cancel())
	require.NoError(t, err)

	_, err = o.Advance(context.Background(), Query("another"))
	require.ErrorIs(t, err, ErrStateViolation)

	snap, err := o.Advance(context.Background(), Restart())
	require.NoError(t, err)
	assert.True(t, snap.Context.Empty())
	memLen := len(snap.Memory)

	snap, err = o.Advance(context.Background(), Query("another"))
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingSelection, snap.State.Stage)
	assert.Greater(t, len(snap.Memory), memLen)
}

func TestCancelWithNothingRunning(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	_, err := o.Advance(context.Background(), Cancel())
	assert.ErrorIs(t, err, ErrStateViolation)
}

func TestRestartFromFailed(t *testing.T) {
	h := newHarness()
	h.search.err = errors.New("down")
	o := h.orchestrator(testConfig())
	_, err := o.Advance(context.Background(), Query("transformer attention"))
	require.ErrorIs(t, err, ErrSearchFailed)

	_, err = o.Advance(context.Background(), Query("transformer attention"))
	require.ErrorIs(t, err, ErrStateViolation)

	before := o.Snapshot()
	snap, err := o.Advance(context.Background(), Restart())
	require.NoError(t, err)
	assert.Equal(t, StageIdle, snap.State.Stage)
	assert.Nil(t, snap.State.LastError)
	assert.True(t, snap.Context.Empty())
	assert.Greater(t, len(snap.Memory), len(before.Memory))
}

func TestSnapshotRestore(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	require.NoError(t, toParams(o))

	data, err := json.Marshal(o.Snapshot())
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	h2 := newHarness()
	restored, err := Restore(snap, testConfig(), h2.collaborators(), h2.options())
	require.NoError(t, err)
	if diff := cmp.Diff(o.Snapshot().Context, restored.Snapshot().Context); diff != "" {
		t.Errorf("context differs after restore (-want +got):\n%s", diff)
	}

	final, err := restored.Advance(context.Background(), Configure(maleFemale(10)))
	require.NoError(t, err)
	assert.Equal(t, StageComplete, final.State.Stage)
	assert.Greater(t, len(final.Memory), len(snap.Memory))
}

func TestDuplicateRecognizedAfterRestore(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(testConfig())
	require.NoError(t, toParams(o))

	ev := Configure(maleFemale(7))
	first, err := o.Advance(context.Background(), ev)
	require.ErrorIs(t, err, ErrInvalidParameters)
	require.NotNil(t, first.LastEvent)
	assert.False(t, first.LastEvent.Moved)

	// The last commit is what a store would hold.
	h.mu.Lock()
	persisted := h.commits[len(h.commits)-1]
	h.mu.Unlock()
	assert.Equal(t, first.LastEvent, persisted.LastEvent)

	data, err := json.Marshal(persisted)
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	h2 := newHarness()
	restored, err := Restore(snap, testConfig(), h2.collaborators(), h2.options())
	require.NoError(t, err)
	again, err := restored.Advance(context.Background(), ev)
	require.ErrorIs(t, err, ErrInvalidParameters)
	assert.Equal(t, first.State.Revision, again.State.Revision)
	assert.Len(t, again.Memory, len(first.Memory))
	assert.Empty(t, h2.commits)
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	h := newHarness()
	_, err := Restore(Snapshot{Version: 99, State: PipelineState{Stage: StageIdle}}, testConfig(), h.collaborators(), h.options())
	assert.Error(t, err)

	_, err = Restore(Snapshot{Version: SnapshotVersion, State: PipelineState{Stage: "sleeping"}}, testConfig(), h.collaborators(), h.options())
	assert.Error(t, err)

	p := threePapers()[0]
	bad := Snapshot{Version: SnapshotVersion, State: PipelineState{Stage: StageAwaitingParams}, Context: Context{SelectedPaper: &p}}
	_, err = Restore(bad, testConfig(), h.collaborators(), h.options())
	assert.Error(t, err)
}

func TestRestoredWorkingStageAcceptsCancel(t *testing.T) {
	h := newHarness()
	snap := Snapshot{Version: SnapshotVersion, SessionID: "s-9", State: PipelineState{Stage: StageSearching, Revision: 4}, Context: Context{Query: "q"}}
	o, err := Restore(snap, testConfig(), h.collaborators(), h.options())
	require.NoError(t, err)

	_, err = o.Advance(context.Background(), Restart())
	require.ErrorIs(t, err, ErrStateViolation)

	got, err := o.Advance(context.Background(), Cancel())
	require.NoError(t, err)
	assert.Equal(t, StageIdle, got.State.Stage)
	assert.Equal(t, "q", got.Context.Query)
}

func TestHistoryIsWindowed(t *testing.T) {
	h := newHarness()
	cfg := testConfig()
	cfg.HistoryWindow = 3
	o := h.orchestrator(cfg)
	require.NoError(t, toParams(o))
	// Pad the log with rejected parameter attempts.
	for i := 0; i < 4; i++ {
		ev := Configure(maleFemale(7))
		ev.ID = string(rune('a' + i))
		_, _ = o.Advance(context.Background(), ev)
	}
	full := len(o.Snapshot().Memory)

	_, err := o.Advance(context.Background(), Configure(maleFemale(10)))
	require.NoError(t, err)
	calls := h.gen.calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].History, 3)
	assert.Greater(t, full, 3)
}

func TestHistoryWindowDefaults(t *testing.T) {
	h := newHarness()
	cfg := testConfig()
	cfg.HistoryWindow = 0
	o := h.orchestrator(cfg)
	require.NoError(t, toParams(o))
	for i := 0; i < 6; i++ {
		ev := Configure(maleFemale(7))
		ev.ID = string(rune('a' + i))
		_, _ = o.Advance(context.Background(), ev)
	}
	require.Greater(t, len(o.Snapshot().Memory), 10)

	_, err := o.Advance(context.Background(), Configure(maleFemale(10)))
	require.NoError(t, err)
	calls := h.gen.calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].History, 10)
}

func TestSessionsAreIsolated(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]Snapshot, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := newHarness()
			o := New(string(rune('A'+i)), testConfig(), h.collaborators(), h.options())
			if err := toParams(o); err != nil {
				t.Error(err)
				return
			}
			snap, err := o.Advance(context.Background(), Configure(maleFemale(10)))
			if err != nil {
				t.Error(err)
			}
			results[i] = snap
		}(i)
	}
	wg.Wait()
	for i, s := range results {
		assert.Equal(t, StageComplete, s.State.Stage)
		assert.Equal(t, "mem://"+string(rune('A'+i)), s.Context.AudioArtifact.Handle)
	}
}
