// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// errMalformedScript marks generator output that does not satisfy the
// script contract.
var errMalformedScript = errors.New("malformed script")

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// EstimateMinutes is the spoken length of script at wpm words per minute.
func EstimateMinutes(script []types.Utterance, wpm int) float64 {
	if wpm <= 0 {
		wpm = 160
	}
	words := 0
	for _, u := range script {
		words += WordCount(u.Text)
	}
	return float64(words) / float64(wpm)
}

// ValidateScript checks speaker indices, non-empty lines, and that the
// estimated duration lies within tolerance of the requested one.
func ValidateScript(script []types.Utterance, p types.PodcastParams, wpm int, tolerance float64) error {
	if len(script) == 0 {
		return fmt.Errorf("%w: script is empty", errMalformedScript)
	}
	for i, u := range script {
		if u.SpeakerIndex < 0 || u.SpeakerIndex >= p.SpeakerCount {
			return fmt.Errorf("%w: utterance %d has speaker %d, want 0..%d", errMalformedScript, i, u.SpeakerIndex, p.SpeakerCount-1)
		}
		if strings.TrimSpace(u.Text) == "" {
			return fmt.Errorf("%w: utterance %d is empty", errMalformedScript, i)
		}
	}
	if tolerance > 0 {
		est := EstimateMinutes(script, wpm)
		want := float64(p.DurationMinutes)
		if math.Abs(est-want) > want*tolerance {
			return fmt.Errorf("%w: estimated %.1f minutes, requested %d (±%.0f%%)",
				errMalformedScript, est, p.DurationMinutes, tolerance*100)
		}
	}
	return nil
}

// speakerNamePool holds the host names used for each gender.
var speakerNamePool = map[types.Gender][]string{
	types.GenderMale:    {"David", "Michael", "James", "Robert", "Thomas", "William"},
	types.GenderFemale:  {"Emma", "Sarah", "Olivia", "Sophia", "Ava", "Isabella"},
	types.GenderNeutral: {"Alex", "Jordan", "Taylor", "Morgan", "Casey", "Riley"},
}

// SpeakerNames assigns each speaker a name from its gender's pool. Speakers of
// the same gender get successive names, so no name repeats within a podcast
// of up to six speakers.
func SpeakerNames(genders []types.Gender) []string {
	return pick(genders, func(g types.Gender) []string { return speakerNamePool[g] },
		func(i int) string { return fmt.Sprintf("Speaker %d", i+1) })
}

// AssignVoices maps every speaker to a voice. Speaker i of gender g receives
// the k-th voice of g's list (wrapping), where k counts the speakers of the
// same gender before i.
func AssignVoices(genders []types.Gender, table types.VoiceTable) []string {
	return pick(genders, table.For, func(int) string { return "alloy" })
}

// SelectVoice returns the voice of speaker index.
func SelectVoice(index int, genders []types.Gender, table types.VoiceTable) (string, error) {
	if index < 0 || index >= len(genders) {
		return "", fmt.Errorf("speaker %d has no gender (have %d)", index, len(genders))
	}
	return AssignVoices(genders[:index+1], table)[index], nil
}

func pick(genders []types.Gender, pool func(types.Gender) []string, fallback func(i int) string) []string {
	out := make([]string, len(genders))
	seen := make(map[types.Gender]int)
	for i, g := range genders {
		list := pool(g)
		k := seen[g]
		seen[g]++
		if len(list) == 0 {
			out[i] = fallback(i)
			continue
		}
		out[i] = list[k%len(list)]
	}
	return out
}
