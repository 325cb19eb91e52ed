// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audio voices script utterances through the OpenAI speech endpoint
// and stores the finished podcast as a WAV file.
package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// SampleRate is the rate of the speech endpoint's raw PCM output.
const SampleRate = 24000

// MaxChunk is the longest input, in characters, sent in one speech request.
const MaxChunk = 4000

// speechClient is the part of the go-openai client used here.
type speechClient interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAISynthesizer implements pipeline.Synthesizer with go-openai.
type OpenAISynthesizer struct {
	client speechClient
	model  string
	log    *logrus.Entry
}

// NewOpenAISynthesizer builds a synthesizer from cfg. A nil client uses the
// library default.
func NewOpenAISynthesizer(cfg types.SynthesisConfig, client *http.Client) *OpenAISynthesizer {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if client != nil {
		oc.HTTPClient = client
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.TTSModel1HD)
	}
	return &OpenAISynthesizer{client: openai.NewClientWithConfig(oc), model: model, log: logging.New("audio")}
}

// Synthesize voices u with voice. Text longer than MaxChunk is sent in
// sentence-aligned pieces whose PCM is joined without a pause.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, u types.Utterance, voice string) (types.AudioClip, error) {
	chunks := Chunk(u.Text, MaxChunk)
	if len(chunks) == 0 {
		return types.AudioClip{}, fmt.Errorf("utterance has no text")
	}

	var pcm []byte
	for i, c := range chunks {
		data, err := s.speak(ctx, c, voice)
		if err != nil {
			return types.AudioClip{}, fmt.Errorf("speech chunk %d/%d: %w", i+1, len(chunks), err)
		}
		pcm = append(pcm, data...)
	}
	s.log.WithFields(logrus.Fields{"voice": voice, "chunks": len(chunks), "bytes": len(pcm)}).Debug("utterance synthesized")
	return types.AudioClip{Format: types.PCM16, SampleRate: SampleRate, Channels: 1, Data: pcm}, nil
}

func (s *OpenAISynthesizer) speak(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("reading speech: %w", err)
	}
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty speech response")
	}
	return data, nil
}

// Chunk splits text into pieces of at most max characters, breaking after
// sentence ends where possible, then at spaces, then anywhere.
func Chunk(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for _, sentence := range sentences(text) {
		for _, piece := range split(sentence, max) {
			if utf8.RuneCountInString(cur.String())+utf8.RuneCountInString(piece) > max {
				flush()
			}
			cur.WriteString(piece)
		}
	}
	flush()
	return out
}

// sentences splits after '.', '!' or '?' followed by whitespace. Each
// sentence keeps its trailing whitespace so joining them restores text.
func sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j > i+1 || j == len(runes) {
				out = append(out, string(runes[start:j]))
				start = j
				i = j - 1
			}
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// split breaks s into pieces of at most max runes, preferring spaces.
func split(s string, max int) []string {
	var out []string
	runes := []rune(s)
	for len(runes) > max {
		cut := max
		for k := max; k > max/2; k-- {
			if unicode.IsSpace(runes[k-1]) {
				cut = k
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(out, string(runes))
}
