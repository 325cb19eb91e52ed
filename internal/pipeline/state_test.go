// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Stage]bool{
		{StageIdle, StageSearching}:                       true,
		{StageSearching, StageAwaitingSelection}:          true,
		{StageSearching, StageFailed}:                     true,
		{StageSearching, StageIdle}:                       true,
		{StageAwaitingSelection, StageExtracting}:         true,
		{StageAwaitingSelection, StageIdle}:               true,
		{StageExtracting, StageAwaitingParams}:            true,
		{StageExtracting, StageFailed}:                    true,
		{StageExtracting, StageIdle}:                      true,
		{StageAwaitingParams, StageGeneratingScript}:      true,
		{StageAwaitingParams, StageIdle}:                  true,
		{StageGeneratingScript, StageSynthesizingAudio}:   true,
		{StageGeneratingScript, StageFailed}:              true,
		{StageGeneratingScript, StageIdle}:                true,
		{StageSynthesizingAudio, StageComplete}:           true,
		{StageSynthesizingAudio, StageFailed}:             true,
		{StageSynthesizingAudio, StageIdle}:               true,
		{StageComplete, StageIdle}:                        true,
		{StageFailed, StageIdle}:                          true,
	}
	for _, from := range Stages {
		for _, to := range Stages {
			want := from == to || allowed[[2]Stage{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition("bogus", "bogus"))
	assert.False(t, CanTransition(StageIdle, StageComplete))
}

func TestStageClassification(t *testing.T) {
	tests := []struct {
		stage    Stage
		working  bool
		terminal bool
	}{
		{StageIdle, false, false},
		{StageSearching, true, false},
		{StageAwaitingSelection, false, false},
		{StageExtracting, true, false},
		{StageAwaitingParams, false, false},
		{StageGeneratingScript, true, false},
		{StageSynthesizingAudio, true, false},
		{StageComplete, false, true},
		{StageFailed, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			assert.True(t, tt.stage.Valid())
			assert.Equal(t, tt.working, tt.stage.Working())
			assert.Equal(t, tt.terminal, tt.stage.Terminal())
		})
	}
	assert.Len(t, tests, len(Stages))
}
