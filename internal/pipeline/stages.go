// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// env is what every handler shares: policy, collaborators, and the clock.
type env struct {
	cfg    types.PipelineConfig
	collab Collaborators
	now    func() time.Time
}

func (e *env) turn(role Role, stage Stage, format string, args ...any) Turn {
	return Turn{Role: role, Content: fmt.Sprintf(format, args...), Timestamp: e.now(), Stage: stage}
}

// searchHandler resolves a query into candidate papers.
type searchHandler struct{ *env }

func (searchHandler) Name() string { return "Search" }
func (searchHandler) Stage() Stage { return StageSearching }

func (h searchHandler) Validate(in Input) error {
	if strings.TrimSpace(in.Event.Query) == "" {
		return invalid(ErrInvalidQuery, StageIdle, "query", "query is empty")
	}
	return nil
}

func (h searchHandler) Run(ctx context.Context, in Input) (Output, error) {
	q := strings.TrimSpace(in.Event.Query)
	var turns []Turn
	var papers []types.Paper

	if id, ok := types.FindArxivID(q); ok {
		res, err := await(ctx, func(ctx context.Context) (lookup, error) {
			p, found, err := h.collab.Search.Lookup(ctx, id)
			return lookup{p, found}, err
		})
		switch {
		case ctx.Err() != nil:
			return Output{}, ctx.Err()
		case err != nil:
			turns = append(turns, h.turn(RoleSystem, StageSearching, "Lookup of arXiv %s failed (%v); searching by text instead.", id, err))
		case res.found:
			papers = []types.Paper{res.paper}
			turns = append(turns, h.turn(RoleSystem, StageSearching, "Found arXiv %s by identifier.", id))
		default:
			turns = append(turns, h.turn(RoleSystem, StageSearching, "arXiv %s not found; searching by text instead.", id))
		}
	}

	if papers == nil {
		found, err := await(ctx, func(ctx context.Context) ([]types.Paper, error) {
			return h.collab.Search.Search(ctx, q)
		})
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		if err != nil {
			return Output{Turns: turns}, &Error{Kind: ErrSearchFailed, Stage: StageSearching, Err: err}
		}
		papers = found
		if papers == nil {
			papers = []types.Paper{}
		}
	}

	out := Output{
		Context: in.Context.WithSearch(q, papers),
		Next:    StageAwaitingSelection,
	}
	if len(papers) == 0 {
		out.Status = fmt.Sprintf("No papers found for %q. Restart with a different query.", q)
	} else {
		out.Status = fmt.Sprintf("Found %d papers for %q. Pick one to continue.", len(papers), q)
	}
	var b strings.Builder
	b.WriteString(out.Status)
	for i, p := range papers {
		fmt.Fprintf(&b, "\n%d. %s [%s]", i+1, p.Title, p.ID)
	}
	out.Turns = append(turns, h.turn(RoleAgent, StageSearching, "%s", b.String()))
	return out, nil
}

type lookup struct {
	paper types.Paper
	found bool
}

// selectHandler resolves a selection into the chosen paper.
type selectHandler struct{ *env }

func (selectHandler) Name() string { return "Select" }
func (selectHandler) Stage() Stage { return StageAwaitingSelection }

func (h selectHandler) Run(_ context.Context, in Input) (Output, error) {
	sel := in.Event.Selection
	cands := in.Context.CandidatePapers
	if sel == nil {
		return Output{}, invalid(ErrInvalidSelection, StageAwaitingSelection, "selection", "no paper selected")
	}

	idx := -1
	if sel.PaperID != "" {
		for i, p := range cands {
			if p.ID == sel.PaperID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Output{}, invalid(ErrInvalidSelection, StageAwaitingSelection, "paper_id", "no candidate with id %q", sel.PaperID)
		}
	} else {
		if sel.Index < 0 || sel.Index >= len(cands) {
			return Output{}, invalid(ErrInvalidSelection, StageAwaitingSelection, "index", "index %d out of range for %d candidates", sel.Index, len(cands))
		}
		idx = sel.Index
	}

	p := cands[idx]
	status := fmt.Sprintf("Selected %q. Extracting text...", p.Title)
	return Output{
		Context: in.Context.WithSelection(p),
		Turns:   []Turn{h.turn(RoleAgent, StageAwaitingSelection, "%s", status)},
		Status:  status,
		Next:    StageExtracting,
	}, nil
}

// extractHandler pulls the selected paper's text.
type extractHandler struct{ *env }

func (extractHandler) Name() string { return "Extract" }
func (extractHandler) Stage() Stage { return StageExtracting }

func (h extractHandler) Run(ctx context.Context, in Input) (Output, error) {
	paper := *in.Context.SelectedPaper
	text, err := await(ctx, func(ctx context.Context) (types.ExtractedText, error) {
		return h.collab.Extract.Extract(ctx, paper)
	})
	if ctx.Err() != nil {
		return Output{}, ctx.Err()
	}
	if err != nil {
		return Output{}, &Error{Kind: ErrExtractionFailed, Stage: StageExtracting, Err: err}
	}
	if strings.TrimSpace(text.Text) == "" {
		return Output{}, &Error{Kind: ErrExtractionFailed, Stage: StageExtracting, Err: fmt.Errorf("document has no extractable text")}
	}
	if text.WordCount == 0 {
		text.WordCount = WordCount(text.Text)
	}

	status := fmt.Sprintf("Extracted %d words from %q. Choose a duration (%s minutes), the number of speakers, and their genders.",
		text.WordCount, paper.Title, joinInts(types.AllowedDurations))
	return Output{
		Context: in.Context.WithText(text),
		Turns:   []Turn{h.turn(RoleAgent, StageExtracting, "%s", status)},
		Status:  status,
		Next:    StageAwaitingParams,
	}, nil
}

// configureHandler validates and commits the podcast parameters. All three
// fields are accepted together or not at all.
type configureHandler struct{ *env }

func (configureHandler) Name() string { return "Configure" }
func (configureHandler) Stage() Stage { return StageAwaitingParams }

func (h configureHandler) Run(_ context.Context, in Input) (Output, error) {
	if in.Event.Params == nil {
		return Output{}, invalid(ErrInvalidParameters, StageAwaitingParams, "params", "no parameters supplied")
	}
	p := in.Event.Params.Clone()
	if err := ValidateParams(p, h.cfg.MaxSpeakers); err != nil {
		return Output{}, err
	}
	p.SpeakerNames = SpeakerNames(p.SpeakerGenders)

	status := fmt.Sprintf("Writing a %d minute script for %s...", p.DurationMinutes, strings.Join(p.SpeakerNames, ", "))
	return Output{
		Context: in.Context.WithParams(p),
		Turns:   []Turn{h.turn(RoleAgent, StageAwaitingParams, "%s", status)},
		Status:  status,
		Next:    StageGeneratingScript,
	}, nil
}

// ValidateParams checks duration, speaker count, and genders, in that order.
func ValidateParams(p types.PodcastParams, maxSpeakers int) error {
	if maxSpeakers <= 0 {
		maxSpeakers = 6
	}
	allowed := false
	for _, d := range types.AllowedDurations {
		if p.DurationMinutes == d {
			allowed = true
			break
		}
	}
	if !allowed {
		return invalid(ErrInvalidParameters, StageAwaitingParams, "duration_minutes",
			"%d is not one of %s", p.DurationMinutes, joinInts(types.AllowedDurations))
	}
	if p.SpeakerCount < 1 || p.SpeakerCount > maxSpeakers {
		return invalid(ErrInvalidParameters, StageAwaitingParams, "speaker_count",
			"%d is outside 1..%d", p.SpeakerCount, maxSpeakers)
	}
	if len(p.SpeakerGenders) != p.SpeakerCount {
		return invalid(ErrInvalidParameters, StageAwaitingParams, "speaker_genders",
			"%d genders given for %d speakers", len(p.SpeakerGenders), p.SpeakerCount)
	}
	for i, g := range p.SpeakerGenders {
		if !g.Valid() {
			return invalid(ErrInvalidParameters, StageAwaitingParams, "speaker_genders",
				"speaker %d has unknown gender %q", i, g)
		}
	}
	return nil
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = fmt.Sprint(n)
	}
	return strings.Join(s, ", ")
}
