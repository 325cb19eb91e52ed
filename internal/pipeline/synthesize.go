// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// synthesizeHandler voices the script utterance by utterance and joins the
// clips in script order. The stage has a single retry: the first failing
// utterance is tried once more, and any later failure is final. A final
// failure records the first cause and the cause that ended the stage.
type synthesizeHandler struct{ *env }

func (synthesizeHandler) Name() string { return "SynthesizeAudio" }
func (synthesizeHandler) Stage() Stage { return StageSynthesizingAudio }

func (h synthesizeHandler) Run(ctx context.Context, in Input) (Output, error) {
	params := *in.Context.PodcastParams
	script := in.Context.Script
	voices := AssignVoices(params.SpeakerGenders, h.cfg.Voices)

	var (
		turns    []Turn
		clips    []types.AudioClip
		retried  bool
		firstErr error
		degraded *Error
	)
	for i, u := range script {
		clip, err := h.call(ctx, u, voices[u.SpeakerIndex])
		if err != nil && ctx.Err() == nil && !retried {
			retried = true
			firstErr = err
			turns = append(turns, h.turn(RoleSystem, StageSynthesizingAudio,
				"Synthesis of line %d failed: %v. Retrying once.", i+1, err))
			if serr := sleep(ctx, h.cfg.RetryDelay); serr != nil {
				return Output{}, serr
			}
			clip, err = h.call(ctx, u, voices[u.SpeakerIndex])
		}
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		if err != nil {
			serr := &Error{Kind: ErrSynthesisFailed, Stage: StageSynthesizingAudio, Retried: retried, Err: err}
			if firstErr != nil {
				serr.Err, serr.RetryErr = firstErr, err
			}
			if h.cfg.AllowPartialAudio && len(clips) > 0 {
				degraded = serr
				break
			}
			return Output{Turns: turns}, serr
		}
		clips = append(clips, clip)
	}

	joined, err := Concatenate(clips, h.cfg.Pause)
	if err != nil {
		return Output{Turns: turns}, &Error{Kind: ErrSynthesisFailed, Stage: StageSynthesizingAudio, Retried: retried, Err: err}
	}
	art, err := await(ctx, func(ctx context.Context) (types.AudioArtifact, error) {
		return h.collab.Artifacts.Put(ctx, in.SessionID, joined)
	})
	if ctx.Err() != nil {
		return Output{}, ctx.Err()
	}
	if err != nil {
		return Output{Turns: turns}, &Error{Kind: ErrSynthesisFailed, Stage: StageSynthesizingAudio, Retried: retried, Err: fmt.Errorf("storing audio: %w", err)}
	}
	art.Duration = joined.Duration()
	art.Utterances = len(clips)
	art.Partial = degraded != nil

	var status string
	if degraded != nil {
		status = fmt.Sprintf("Podcast partially synthesized: %d of %d lines, %s (%v).",
			len(clips), len(script), art.Duration.Round(time.Second), degraded.Err)
	} else {
		status = fmt.Sprintf("Podcast ready: %s, %d lines, saved to %s.", art.Duration.Round(time.Second), len(clips), art.Handle)
	}
	turns = append(turns, h.turn(RoleAgent, StageSynthesizingAudio, "%s", status))
	return Output{
		Context:  in.Context.WithAudio(art),
		Turns:    turns,
		Status:   status,
		Next:     StageComplete,
		Degraded: degraded,
	}, nil
}

func (h synthesizeHandler) call(ctx context.Context, u types.Utterance, voice string) (types.AudioClip, error) {
	return await(ctx, func(ctx context.Context) (types.AudioClip, error) {
		return h.collab.Synthesize.Synthesize(ctx, u, voice)
	})
}

// Concatenate joins PCM16 clips in order with pause of silence between
// consecutive clips. All clips must share sample rate and channel count.
func Concatenate(clips []types.AudioClip, pause time.Duration) (types.AudioClip, error) {
	if len(clips) == 0 {
		return types.AudioClip{}, fmt.Errorf("no audio to join")
	}
	first := clips[0]
	if first.Format != types.PCM16 {
		return types.AudioClip{}, fmt.Errorf("clip 0 has format %q, want %s", first.Format, types.PCM16)
	}
	frameSize := 2 * first.Channels
	silence := make([]byte, int(pause*time.Duration(first.SampleRate)/time.Second)*frameSize)

	size := 0
	for i, c := range clips {
		if c.Format != first.Format || c.SampleRate != first.SampleRate || c.Channels != first.Channels {
			return types.AudioClip{}, fmt.Errorf("clip %d is %s/%dHz/%dch, want %s/%dHz/%dch",
				i, c.Format, c.SampleRate, c.Channels, first.Format, first.SampleRate, first.Channels)
		}
		size += len(c.Data)
	}
	size += len(silence) * (len(clips) - 1)

	data := make([]byte, 0, size)
	for i, c := range clips {
		if i > 0 {
			data = append(data, silence...)
		}
		data = append(data, c.Data...)
	}
	return types.AudioClip{Format: first.Format, SampleRate: first.SampleRate, Channels: first.Channels, Data: data}, nil
}
