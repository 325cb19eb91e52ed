// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"reflect"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Context accumulates everything the stages have produced for one session.
// Values are never modified in place: the With methods return a new Context
// whose set fields are copies, so an earlier Context stays valid after a
// later stage commits.
type Context struct {
	Query           string               `json:"query,omitempty"`
	CandidatePapers []types.Paper        `json:"candidate_papers,omitempty"`
	SelectedPaper   *types.Paper         `json:"selected_paper,omitempty"`
	ExtractedText   *types.ExtractedText `json:"extracted_text,omitempty"`
	PodcastParams   *types.PodcastParams `json:"podcast_params,omitempty"`
	Script          []types.Utterance    `json:"script,omitempty"`
	AudioArtifact   *types.AudioArtifact `json:"audio_artifact,omitempty"`
}

// Empty reports whether no stage has written to the Context.
func (c Context) Empty() bool {
	return c.Query == "" && len(c.CandidatePapers) == 0 && c.SelectedPaper == nil &&
		c.ExtractedText == nil && c.PodcastParams == nil && len(c.Script) == 0 &&
		c.AudioArtifact == nil
}

// WithSearch records the query and the candidates found for it.
func (c Context) WithSearch(query string, candidates []types.Paper) Context {
	c.Query = query
	c.CandidatePapers = clonePapers(candidates)
	return c
}

// WithSelection records the chosen paper.
func (c Context) WithSelection(p types.Paper) Context {
	p = clonePaper(p)
	c.SelectedPaper = &p
	return c
}

// WithText records the extracted text.
func (c Context) WithText(t types.ExtractedText) Context {
	t.Sections = append([]types.Section(nil), t.Sections...)
	c.ExtractedText = &t
	return c
}

// WithParams records the accepted podcast parameters.
func (c Context) WithParams(p types.PodcastParams) Context {
	p = p.Clone()
	c.PodcastParams = &p
	return c
}

// WithScript records the generated script.
func (c Context) WithScript(script []types.Utterance) Context {
	c.Script = append([]types.Utterance(nil), script...)
	return c
}

// WithAudio records the synthesized artifact.
func (c Context) WithAudio(a types.AudioArtifact) Context {
	c.AudioArtifact = &a
	return c
}

// Clone returns a deep copy.
func (c Context) Clone() Context {
	out := Context{Query: c.Query, CandidatePapers: clonePapers(c.CandidatePapers)}
	if c.SelectedPaper != nil {
		out = out.WithSelection(*c.SelectedPaper)
	}
	if c.ExtractedText != nil {
		out = out.WithText(*c.ExtractedText)
	}
	if c.PodcastParams != nil {
		out = out.WithParams(*c.PodcastParams)
	}
	if c.Script != nil {
		out = out.WithScript(c.Script)
	}
	if c.AudioArtifact != nil {
		out = out.WithAudio(*c.AudioArtifact)
	}
	return out
}

// Validate checks that fields were populated in pipeline order.
func (c Context) Validate() error {
	if c.SelectedPaper != nil && len(c.CandidatePapers) == 0 {
		return fmt.Errorf("selected paper without candidates")
	}
	if c.ExtractedText != nil && c.SelectedPaper == nil {
		return fmt.Errorf("extracted text without a selected paper")
	}
	if len(c.Script) > 0 {
		p := c.PodcastParams
		if p == nil || p.DurationMinutes == 0 || p.SpeakerCount == 0 || len(p.SpeakerGenders) != p.SpeakerCount {
			return fmt.Errorf("script without complete podcast parameters")
		}
	}
	if c.AudioArtifact != nil && len(c.Script) == 0 {
		return fmt.Errorf("audio artifact without a script")
	}
	return nil
}

// Extends reports an error if any field set in prev is missing or different
// in c.
func (c Context) Extends(prev Context) error {
	check := func(name string, set bool, before, after any) error {
		if set && !reflect.DeepEqual(before, after) {
			return fmt.Errorf("context field %s was rewritten", name)
		}
		return nil
	}
	checks := []error{
		check("query", prev.Query != "", prev.Query, c.Query),
		check("candidate_papers", prev.CandidatePapers != nil, prev.CandidatePapers, c.CandidatePapers),
		check("selected_paper", prev.SelectedPaper != nil, prev.SelectedPaper, c.SelectedPaper),
		check("extracted_text", prev.ExtractedText != nil, prev.ExtractedText, c.ExtractedText),
		check("podcast_params", prev.PodcastParams != nil, prev.PodcastParams, c.PodcastParams),
		check("script", prev.Script != nil, prev.Script, c.Script),
		check("audio_artifact", prev.AudioArtifact != nil, prev.AudioArtifact, c.AudioArtifact),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

func clonePaper(p types.Paper) types.Paper {
	p.Authors = append([]string(nil), p.Authors...)
	return p
}

func clonePapers(in []types.Paper) []types.Paper {
	if in == nil {
		return nil
	}
	out := make([]types.Paper, len(in))
	for i, p := range in {
		out[i] = clonePaper(p)
	}
	return out
}
