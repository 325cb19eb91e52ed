// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

// Stage identifies where a session is in the pipeline.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageSearching         Stage = "searching"
	StageAwaitingSelection Stage = "awaiting_selection"
	StageExtracting        Stage = "extracting"
	StageAwaitingParams    Stage = "awaiting_params"
	StageGeneratingScript  Stage = "generating_script"
	StageSynthesizingAudio Stage = "synthesizing_audio"
	StageComplete          Stage = "complete"
	StageFailed            Stage = "failed"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageIdle,
	StageSearching,
	StageAwaitingSelection,
	StageExtracting,
	StageAwaitingParams,
	StageGeneratingScript,
	StageSynthesizingAudio,
	StageComplete,
	StageFailed,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := edges[s]
	return ok
}

// Working reports whether the stage waits on an external collaborator.
// Only working stages can be cancelled.
func (s Stage) Working() bool {
	switch s {
	case StageSearching, StageExtracting, StageGeneratingScript, StageSynthesizingAudio:
		return true
	}
	return false
}

// Terminal reports whether the stage ends the pipeline.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// edges is the transition table. Working stages fall back to Idle on
// cancellation; settled stages fall back to Idle on restart.
var edges = map[Stage][]Stage{
	StageIdle:              {StageSearching},
	StageSearching:         {StageAwaitingSelection, StageFailed, StageIdle},
	StageAwaitingSelection: {StageExtracting, StageIdle},
	StageExtracting:        {StageAwaitingParams, StageFailed, StageIdle},
	StageAwaitingParams:    {StageGeneratingScript, StageIdle},
	StageGeneratingScript:  {StageSynthesizingAudio, StageFailed, StageIdle},
	StageSynthesizingAudio: {StageComplete, StageFailed, StageIdle},
	StageComplete:          {StageIdle},
	StageFailed:            {StageIdle},
}

// CanTransition reports whether from → to is a documented edge. Staying in
// the same stage is always allowed.
func CanTransition(from, to Stage) bool {
	if from == to {
		return from.Valid()
	}
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PipelineState is the orchestrator-owned position of a session.
type PipelineState struct {
	// Stage is the current stage.
	Stage Stage `json:"stage"`

	// LastError is set in Failed, and in Complete when the audio is partial.
	LastError *ErrorRecord `json:"last_error,omitempty"`

	// Revision increases with every committed change to the session.
	Revision int64 `json:"revision"`
}
