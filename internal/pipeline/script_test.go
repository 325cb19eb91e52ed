// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

func TestValidateScript(t *testing.T) {
	p := maleFemale(10)
	tests := []struct {
		name    string
		script  []types.Utterance
		wantErr string
	}{
		{"on target", alternating(16, 100), ""},
		{"within tolerance", alternating(12, 100), ""},
		{"empty", nil, "script is empty"},
		{"unknown speaker", []types.Utterance{{SpeakerIndex: 2, Text: words(1600)}}, "speaker 2"},
		{"blank line", append(alternating(16, 100), types.Utterance{Text: " "}), "utterance 16 is empty"},
		{"too short", alternating(4, 100), "estimated 2.5 minutes"},
		{"too long", alternating(40, 100), "estimated 25.0 minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScript(tt.script, p, 160, 0.35)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errMalformedScript))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSpeakerNamesAndVoices(t *testing.T) {
	table := types.DefaultConfig().Pipeline.Voices
	genders := []types.Gender{types.GenderFemale, types.GenderMale, types.GenderFemale, types.GenderNeutral, types.GenderMale}

	assert.Equal(t, []string{"Emma", "David", "Sarah", "Alex", "Michael"}, SpeakerNames(genders))
	assert.Equal(t, []string{"nova", "onyx", "shimmer", "alloy", "echo"}, AssignVoices(genders, table))

	v, err := SelectVoice(2, genders, table)
	require.NoError(t, err)
	assert.Equal(t, "shimmer", v)
	_, err = SelectVoice(5, genders, table)
	assert.Error(t, err)

	// Lists wrap when a gender has more speakers than voices.
	many := []types.Gender{types.GenderNeutral, types.GenderNeutral, types.GenderNeutral}
	assert.Equal(t, []string{"alloy", "sage", "alloy"}, AssignVoices(many, table))

	assert.Equal(t, []string{"alloy"}, AssignVoices([]types.Gender{types.GenderMale}, types.VoiceTable{}))
}

func TestConcatenate(t *testing.T) {
	clip := func(n int, b byte) types.AudioClip {
		data := make([]byte, n)
		for i := range data {
			data[i] = b
		}
		return types.AudioClip{Format: types.PCM16, SampleRate: 1000, Channels: 1, Data: data}
	}

	out, err := Concatenate([]types.AudioClip{clip(4, 1), clip(2, 2), clip(2, 3)}, 2*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1, 1, 1, 0, 0, 0, 0, 2, 2, 0, 0, 0, 0, 3, 3}, out.Data)
	assert.Equal(t, 8*time.Millisecond, out.Duration())

	single, err := Concatenate([]types.AudioClip{clip(4, 1)}, time.Second)
	require.NoError(t, err)
	assert.Len(t, single.Data, 4, "no pause after the last clip")

	_, err = Concatenate(nil, 0)
	assert.Error(t, err)

	other := clip(2, 1)
	other.SampleRate = 24000
	_, err = Concatenate([]types.AudioClip{clip(2, 1), other}, 0)
	assert.Error(t, err)

	mp3 := clip(2, 1)
	mp3.Format = "mp3"
	_, err = Concatenate([]types.AudioClip{mp3}, 0)
	assert.Error(t, err)
}

func TestEstimateMinutes(t *testing.T) {
	assert.InDelta(t, 1.0, EstimateMinutes(alternating(2, 80), 160), 1e-9)
	assert.InDelta(t, 1.0, EstimateMinutes(alternating(2, 80), 0), 1e-9)
	assert.Equal(t, 3, WordCount("  one two\nthree "))
}
