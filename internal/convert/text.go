// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"regexp"
	"strings"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// commonSections are the headings recognized when splitting a paper.
var commonSections = []string{
	"Abstract", "Introduction", "Related Work", "Background", "Preliminaries",
	"Methodology", "Methods", "Method", "Approach", "Model",
	"Experiments", "Experiment", "Experimental Setup", "Evaluation", "Results",
	"Discussion", "Limitations", "Conclusion", "Conclusions", "Future Work",
	"Acknowledgments", "Acknowledgements", "References", "Appendix",
}

// headingPattern matches a line that is only a known heading, optionally
// numbered ("3", "3.", "III.") or Markdown-prefixed ("## "), optionally
// followed by a colon.
var headingPattern = func() *regexp.Regexp {
	names := make([]string, len(commonSections))
	for i, s := range commonSections {
		names[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?(?:(?:\d+|[IVX]+)\.?\s+)?(` + strings.Join(names, "|") + `)\s*:?\s*$`)
}()

// Analyze computes word and page counts and the section split of raw
// converter output. Pages are separated by form feeds; output without
// any reports no page count.
func Analyze(raw string) types.ExtractedText {
	pages := 0
	if n := strings.Count(raw, "\f"); n > 0 {
		pages = n
		if !strings.HasSuffix(strings.TrimRight(raw, " \n\r\t"), "\f") {
			pages++
		}
	}
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\f", "\n"))
	return types.ExtractedText{
		Text:      text,
		WordCount: len(strings.Fields(text)),
		PageCount: pages,
		Sections:  SplitSections(text),
	}
}

// SplitSections splits text at recognized headings. Text before the first
// heading goes into a "Header" section. Empty sections are dropped.
func SplitSections(text string) []types.Section {
	var (
		out  []types.Section
		cur  = types.Section{Heading: "Header"}
		body strings.Builder
	)
	flush := func() {
		cur.Text = strings.TrimSpace(body.String())
		if cur.Text != "" {
			out = append(out, cur)
		}
		body.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			cur = types.Section{Heading: canonical(m[1])}
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()
	return out
}

func canonical(name string) string {
	for _, s := range commonSections {
		if strings.EqualFold(s, name) {
			return s
		}
	}
	return name
}
