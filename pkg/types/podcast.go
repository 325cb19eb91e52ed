// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
	"time"
)

// Gender selects the voice family for a speaker.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderNeutral Gender = "neutral"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderNeutral:
		return true
	}
	return false
}

// ParseGenders splits a comma-separated list such as "male,female".
func ParseGenders(s string) ([]Gender, error) {
	var out []Gender
	for _, part := range strings.Split(s, ",") {
		g := Gender(strings.ToLower(strings.TrimSpace(part)))
		if g == "" {
			continue
		}
		if !g.Valid() {
			return nil, fmt.Errorf("unknown gender %q (want male, female, or neutral)", part)
		}
		out = append(out, g)
	}
	return out, nil
}

// AllowedDurations lists the podcast lengths, in minutes, that can be requested.
var AllowedDurations = []int{5, 10, 15, 20, 30}

// PodcastParams are the user's choices for the podcast.
type PodcastParams struct {
	// DurationMinutes is the requested length; one of AllowedDurations.
	DurationMinutes int `json:"duration_minutes" yaml:"duration_minutes"`

	// SpeakerCount is the number of distinct speakers.
	SpeakerCount int `json:"speaker_count" yaml:"speaker_count"`

	// SpeakerGenders has exactly SpeakerCount entries.
	SpeakerGenders []Gender `json:"speaker_genders" yaml:"speaker_genders"`

	// SpeakerNames is derived from SpeakerGenders when the parameters are
	// accepted. Callers leave it empty.
	SpeakerNames []string `json:"speaker_names,omitempty" yaml:"speaker_names,omitempty"`
}

// DefaultPodcastParams is a ten minute two-host conversation.
func DefaultPodcastParams() PodcastParams {
	return PodcastParams{
		DurationMinutes: 10,
		SpeakerCount:    2,
		SpeakerGenders:  []Gender{GenderMale, GenderFemale},
	}
}

// Clone returns a deep copy.
func (p PodcastParams) Clone() PodcastParams {
	p.SpeakerGenders = append([]Gender(nil), p.SpeakerGenders...)
	p.SpeakerNames = append([]string(nil), p.SpeakerNames...)
	return p
}

// Utterance is one line of dialogue.
type Utterance struct {
	SpeakerIndex int    `json:"speaker_index" yaml:"speaker_index"`
	Text         string `json:"text" yaml:"text"`
}

// PCM16 is the sample format tag for signed 16-bit little-endian PCM.
const PCM16 = "pcm_s16le"

// AudioClip is the raw audio of one synthesized utterance.
type AudioClip struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Data       []byte `json:"-"`
}

// Duration returns the playback length of a PCM16 clip. Other formats
// report zero.
func (c AudioClip) Duration() time.Duration {
	if c.Format != PCM16 || c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Data) / (2 * c.Channels)
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// AudioArtifact is the finished podcast audio. The bytes live with the
// artifact store; Handle locates them.
type AudioArtifact struct {
	// Handle is the store-specific locator (a file path for the file store).
	Handle string `json:"handle" yaml:"handle"`

	// Format is the container or sample format tag, e.g. "wav".
	Format string `json:"format" yaml:"format"`

	// Duration is the playback length, pauses included.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Utterances is the number of script utterances covered.
	Utterances int `json:"utterances" yaml:"utterances"`

	// Partial is set when synthesis stopped early and the artifact covers
	// only the leading Utterances of the script.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`
}
