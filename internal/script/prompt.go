// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package script

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// systemPromptTmpl frames the dialogue: show format, host roles, and the
// line format the parser expects.
var systemPromptTmpl = template.Must(template.New("system").Parse(`Generate a technical podcast script that explains a research paper using the Richard Feynman technique. The script must contain about {{.TargetWords}} words (plus or minus {{.Deviation}}) and take the form of a natural conversation between {{.SpeakerCount}} hosts.

Podcast format:
- Style: {{.Focus}}, technically accurate yet accessible
- Hosts: {{range $i, $h := .Hosts}}{{if $i}}, {{end}}{{$h.Name}} ({{$h.Gender}}){{end}}

Hosts:
{{range .Hosts}}
{{.Name}}:
- {{.Role}}
{{- end}}

Feynman technique:
1. Explain complex concepts in plain language a smart undergraduate could follow.
2. Break complicated ideas into their fundamental components.
3. Define every technical term the first time it is used.
4. Prefer concrete examples to abstract explanation.
5. Build understanding from first principles.

Output format:
Write every line of dialogue as

**Name:** spoken text

using only the host names above. Do not write stage directions, sound effects, headings, or narration outside the dialogue.
`))

// userPromptTmpl carries the paper and, on the first attempt, the focus
// guidance and recent conversation.
var userPromptTmpl = template.Must(template.New("user").Parse(`Create a {{.Duration}}-minute podcast script of about {{.TargetWords}} words about the paper "{{.Title}}"{{if .Authors}} by {{.Authors}}{{end}}.
{{- if not .Simplified}}

Focus: {{.Guidance}}
{{- end}}
{{- if .History}}

Recent conversation with the listener:
{{range .History}}[{{.Role}}] {{.Content}}
{{end}}
{{- end}}
{{- if .Simplified}}

Keep it simple: alternate the hosts, stay close to the paper, and respect the word count.
{{- end}}

Paper text:
{{.PaperText}}
`))

type host struct {
	Name   string
	Gender types.Gender
	Role   string
}

type systemData struct {
	TargetWords  int
	Deviation    int
	SpeakerCount int
	Focus        string
	Hosts        []host
}

type userData struct {
	Duration    int
	TargetWords int
	Title       string
	Authors     string
	Guidance    string
	Simplified  bool
	History     []pipeline.Turn
	PaperText   string
}

// focus returns the style label and the content guidance for a podcast of
// the given length.
func focus(minutes int) (style, guidance string) {
	switch {
	case minutes <= 5:
		return "technical and minimalist", "the key findings only"
	case minutes <= 10:
		return "technical with essential context", "the main contributions and the methods behind them"
	case minutes <= 15:
		return "comprehensive technical explanation", "the methods, the results, and their implications"
	default:
		return "in-depth expert discussion", "a deep dive covering background, methods, results, and limitations"
	}
}

func role(i int) string {
	switch i {
	case 0:
		return "Main host who guides the conversation and asks the questions a curious listener would ask."
	case 1:
		return "Subject matter expert who breaks complex ideas down with the Feynman technique."
	default:
		return "Additional expert who adds a specialized perspective."
	}
}

// Prompt is the rendered system and user text for one generation call.
type Prompt struct {
	System string
	User   string
}

// renderPrompt builds the prompt for req. paperText and history are already
// trimmed to their token budgets.
func renderPrompt(req pipeline.GenerationRequest, names []string, wpm int, paperText string, history []pipeline.Turn) (Prompt, error) {
	p := req.Params
	target := p.DurationMinutes * wpm
	style, guidance := focus(p.DurationMinutes)
	if len(names) < p.SpeakerCount || len(p.SpeakerGenders) < p.SpeakerCount {
		return Prompt{}, fmt.Errorf("%d speakers but %d names and %d genders", p.SpeakerCount, len(names), len(p.SpeakerGenders))
	}

	hosts := make([]host, p.SpeakerCount)
	for i := range hosts {
		hosts[i] = host{Name: names[i], Gender: p.SpeakerGenders[i], Role: role(i)}
	}

	var sys bytes.Buffer
	if err := systemPromptTmpl.Execute(&sys, systemData{
		TargetWords:  target,
		Deviation:    target / 10,
		SpeakerCount: p.SpeakerCount,
		Focus:        style,
		Hosts:        hosts,
	}); err != nil {
		return Prompt{}, fmt.Errorf("rendering system prompt: %w", err)
	}

	var user bytes.Buffer
	if err := userPromptTmpl.Execute(&user, userData{
		Duration:    p.DurationMinutes,
		TargetWords: target,
		Title:       req.Paper.Title,
		Authors:     strings.Join(req.Paper.Authors, ", "),
		Guidance:    guidance,
		Simplified:  req.Simplified,
		History:     history,
		PaperText:   paperText,
	}); err != nil {
		return Prompt{}, fmt.Errorf("rendering user prompt: %w", err)
	}
	return Prompt{System: sys.String(), User: user.String()}, nil
}
