// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

func TestRegisterDefaults(t *testing.T) {
	t.Setenv("TESTPP_PIPELINE_WORDS_PER_MINUTE", "150")
	t.Setenv("TESTPP_GENERATION_API_KEY", "sk-env")
	t.Setenv("TESTPP_SEARCH_ARXIV_INTERVAL", "5s")

	v := viper.New()
	v.SetEnvPrefix("TESTPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	require.NoError(t, registerDefaults(v, types.DefaultConfig()))

	var c types.Config
	require.NoError(t, v.Unmarshal(&c))

	assert.Equal(t, 150, c.Pipeline.WordsPerMinute)
	assert.Equal(t, "sk-env", c.Generation.APIKey)
	assert.Equal(t, 5*time.Second, c.Search.ArxivInterval)
	assert.Equal(t, 300*time.Millisecond, c.Pipeline.Pause)
	assert.Equal(t, "gpt-4o-mini", c.Generation.Model)
	assert.Equal(t, 60*time.Second, c.Search.Timeout)
	assert.Equal(t, []string{"nova", "shimmer", "coral"}, c.Pipeline.Voices.Female)
}

func TestPrompter(t *testing.T) {
	var out bytes.Buffer
	p := &prompter{lines: readLines(strings.NewReader("\n  bert  \ny\n")), sigc: make(chan os.Signal), out: &out}

	got, err := p.ask("Duration", "10")
	require.NoError(t, err)
	assert.Equal(t, "10", got, "empty line takes the default")

	got, err = p.ask("Query", "")
	require.NoError(t, err)
	assert.Equal(t, "bert", got)

	ok, err := p.confirm("Restart")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = p.ask("More", "")
	assert.ErrorIs(t, err, errQuit, "end of input")
	assert.Contains(t, out.String(), "Duration [10]: ")
}

func TestPrompterInterrupt(t *testing.T) {
	sigc := make(chan os.Signal, 1)
	sigc <- os.Interrupt
	p := &prompter{lines: make(chan string), sigc: sigc, out: &bytes.Buffer{}}
	_, err := p.ask("Query", "")
	assert.ErrorIs(t, err, errQuit)
}

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	f := progress(&out)
	f(pipeline.Snapshot{State: pipeline.PipelineState{Stage: pipeline.StageSearching}, Status: "Searching for \"bert\"..."})
	f(pipeline.Snapshot{State: pipeline.PipelineState{Stage: pipeline.StageAwaitingSelection}, Status: "Found 3 papers."})
	assert.Equal(t, "[searching] Searching for \"bert\"...\n", out.String())
}

func TestExportScript(t *testing.T) {
	paper := types.Paper{ID: "1810.04805", Title: "BERT"}
	params := types.DefaultPodcastParams()
	params.SpeakerNames = []string{"David", "Emma"}
	snap := pipeline.Snapshot{
		SessionID: "s-1",
		Context: pipeline.Context{
			SelectedPaper: &paper,
			PodcastParams: &params,
			Script: []types.Utterance{
				{SpeakerIndex: 0, Text: "Welcome."},
				{SpeakerIndex: 1, Text: "Thanks."},
			},
		},
	}
	path := t.TempDir() + "/script.yaml"
	require.NoError(t, exportScript(path, snap, types.DefaultConfig().Pipeline))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BERT")
	assert.Contains(t, string(data), "onyx")
	assert.Contains(t, string(data), "nova")

	err = exportScript(path, pipeline.Snapshot{SessionID: "s-2"}, types.DefaultConfig().Pipeline)
	assert.ErrorContains(t, err, "no script")
}

func TestPodcastFlags(t *testing.T) {
	cmd := podcastCmd
	require.NoError(t, cmd.Flags().Set("duration", "5"))
	require.NoError(t, cmd.Flags().Set("genders", "female,neutral,male"))
	t.Cleanup(func() {
		cmd.Flags().Set("duration", "0")
		cmd.Flags().Set("genders", "")
	})

	o, err := podcastFlags(cmd)
	require.NoError(t, err)
	require.NotNil(t, o.params)
	assert.Equal(t, 5, o.params.DurationMinutes)
	assert.Equal(t, 3, o.params.SpeakerCount)
	assert.Equal(t, types.GenderNeutral, o.params.SpeakerGenders[1])
}
