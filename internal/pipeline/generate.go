// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// generateHandler asks the generation collaborator for a script, retrying
// once with the simplified prompt when the call fails or the output is
// malformed.
type generateHandler struct{ *env }

func (generateHandler) Name() string { return "GenerateScript" }
func (generateHandler) Stage() Stage { return StageGeneratingScript }

func (h generateHandler) Run(ctx context.Context, in Input) (Output, error) {
	params := *in.Context.PodcastParams
	req := GenerationRequest{
		Paper:   *in.Context.SelectedPaper,
		Text:    *in.Context.ExtractedText,
		Params:  params.Clone(),
		History: in.Memory.Window(h.cfg.HistoryWindow),
		Attempt: 1,
	}

	var turns []Turn
	script, err := h.attempt(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		turns = append(turns, h.turn(RoleSystem, StageGeneratingScript,
			"Script generation failed: %v. Retrying with a simplified prompt.", err))
		if serr := sleep(ctx, h.cfg.RetryDelay); serr != nil {
			return Output{}, serr
		}

		req.Simplified = true
		req.Attempt = 2
		req.History = in.Memory.Append(turns...).Window(h.cfg.HistoryWindow)
		var retryErr error
		script, retryErr = h.attempt(ctx, req)
		if retryErr != nil {
			if ctx.Err() != nil {
				return Output{}, ctx.Err()
			}
			return Output{Turns: turns}, &Error{
				Kind:     ErrGenerationFailed,
				Stage:    StageGeneratingScript,
				Retried:  true,
				Err:      err,
				RetryErr: retryErr,
			}
		}
	}

	est := EstimateMinutes(script, h.cfg.WordsPerMinute)
	status := fmt.Sprintf("Script ready: %d lines, about %.1f minutes. Synthesizing audio...", len(script), est)
	turns = append(turns, h.turn(RoleAgent, StageGeneratingScript, "%s", status))
	return Output{
		Context: in.Context.WithScript(script),
		Turns:   turns,
		Status:  status,
		Next:    StageSynthesizingAudio,
	}, nil
}

func (h generateHandler) attempt(ctx context.Context, req GenerationRequest) ([]types.Utterance, error) {
	script, err := await(ctx, func(ctx context.Context) ([]types.Utterance, error) {
		return h.collab.Generate.Generate(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if err := ValidateScript(script, req.Params, h.cfg.WordsPerMinute, h.cfg.DurationTolerance); err != nil {
		return nil, err
	}
	return script, nil
}
