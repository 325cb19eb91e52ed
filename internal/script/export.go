// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package script

import (
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Document is the exported form of a finished script.
type Document struct {
	Paper   types.Paper         `yaml:"paper"`
	Params  types.PodcastParams `yaml:"params"`
	Minutes float64             `yaml:"estimated_minutes"`
	Lines   []Line              `yaml:"lines"`
}

// Line is one utterance with its speaker resolved.
type Line struct {
	Speaker string `yaml:"speaker"`
	Voice   string `yaml:"voice,omitempty"`
	Text    string `yaml:"text"`
}

// NewDocument pairs every utterance with its speaker name and voice.
func NewDocument(paper types.Paper, params types.PodcastParams, script []types.Utterance, voices []string, minutes float64) Document {
	names := Names(params)
	doc := Document{Paper: paper, Params: params, Minutes: minutes, Lines: make([]Line, len(script))}
	for i, u := range script {
		l := Line{Speaker: fmt.Sprintf("Speaker %d", u.SpeakerIndex+1), Text: u.Text}
		if u.SpeakerIndex >= 0 && u.SpeakerIndex < len(names) {
			l.Speaker = names[u.SpeakerIndex]
		}
		if u.SpeakerIndex >= 0 && u.SpeakerIndex < len(voices) {
			l.Voice = voices[u.SpeakerIndex]
		}
		doc.Lines[i] = l
	}
	return doc
}

// WriteYAML encodes doc to w.
func WriteYAML(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding script: %w", err)
	}
	return enc.Close()
}
