// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package script

import (
	"errors"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// ErrNoDialogue is returned when the model output holds no line attributed
// to a known speaker.
var ErrNoDialogue = errors.New("no dialogue lines for the configured speakers")

// aside is an optional stage direction between a speaker name and its colon,
// as in "**Emma** (laughing): text".
const aside = `(?:\s*(?:\([^)]*\)|\[[^\]]*\]))?`

// speakerLine matches "**Name:** text", "**Name**: text" and "Name: text",
// each with an optional aside after the name.
var speakerLine = regexp.MustCompile(`^\s*(?:` +
	`\*\*([^*:]+?)` + aside + `:\*\*|` +
	`\*\*([^*:]+?)` + aside + `\*\*` + aside + `:|` +
	`([A-Za-z][A-Za-z .'-]{0,40}?)` + aside + `:)\s*(.*)$`)

var (
	bracketed   = regexp.MustCompile(`\[[^\]]*\]`)
	parenthesed = regexp.MustCompile(`\([^)]*\)`)
	emphasized  = regexp.MustCompile(`\*[^*]*\*`)
	spaces      = regexp.MustCompile(`\s+`)
)

// Parse turns model output into utterances. Each line starting with a known
// speaker name opens a new utterance; following lines without a speaker
// prefix continue it. Text before the first speaker line and lines naming
// unknown speakers are dropped. Utterances that are empty after stage
// directions are removed are dropped as well.
func Parse(text string, names []string) ([]types.Utterance, error) {
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[strings.ToLower(n)] = i
	}

	var (
		out     []types.Utterance
		current = -1
		buf     []string
	)
	flush := func() {
		if current < 0 {
			return
		}
		if t := CleanStageDirections(strings.Join(buf, " ")); t != "" {
			out = append(out, types.Utterance{SpeakerIndex: current, Text: t})
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if m := speakerLine.FindStringSubmatch(line); m != nil {
			name := strings.ToLower(strings.TrimSpace(m[1] + m[2] + m[3]))
			if i, ok := index[name]; ok {
				flush()
				current = i
				buf = append(buf, m[4])
				continue
			}
			if m[1] != "" || m[2] != "" {
				flush()
				current = -1
				continue
			}
		}
		if current >= 0 && strings.TrimSpace(line) != "" {
			buf = append(buf, line)
		}
	}
	flush()

	if len(out) == 0 {
		return nil, ErrNoDialogue
	}
	return out, nil
}

// CleanStageDirections removes [bracketed], (parenthesized) and *emphasized*
// spans and collapses whitespace.
func CleanStageDirections(s string) string {
	s = bracketed.ReplaceAllString(s, "")
	s = parenthesed.ReplaceAllString(s, "")
	s = emphasized.ReplaceAllString(s, "")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// Render formats a script back into "**Name:** text" lines.
func Render(script []types.Utterance, names []string) string {
	var b strings.Builder
	for _, u := range script {
		name := "Speaker"
		if u.SpeakerIndex >= 0 && u.SpeakerIndex < len(names) {
			name = names[u.SpeakerIndex]
		}
		b.WriteString("**")
		b.WriteString(name)
		b.WriteString(":** ")
		b.WriteString(u.Text)
		b.WriteString("\n")
	}
	return b.String()
}
