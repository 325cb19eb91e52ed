// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// EventKind names a user action.
type EventKind string

const (
	EventQuery     EventKind = "query"
	EventSelect    EventKind = "select"
	EventConfigure EventKind = "configure"
	EventCancel    EventKind = "cancel"
	EventRestart   EventKind = "restart"
)

// Selection points at one candidate, by PaperID when set, else by Index
// (zero-based).
type Selection struct {
	Index   int    `json:"index"`
	PaperID string `json:"paper_id,omitempty"`
}

// Event is the single input accepted by Orchestrator.Advance.
type Event struct {
	// ID optionally identifies a delivery. Re-deliveries with the same ID are
	// recognized as duplicates; without an ID the payload is compared.
	ID string `json:"id,omitempty"`

	Kind      EventKind            `json:"kind"`
	Query     string               `json:"query,omitempty"`
	Selection *Selection           `json:"selection,omitempty"`
	Params    *types.PodcastParams `json:"params,omitempty"`
}

// Query builds a search event.
func Query(q string) Event { return Event{Kind: EventQuery, Query: q} }

// Select builds a selection event for the candidate at index.
func Select(index int) Event {
	return Event{Kind: EventSelect, Selection: &Selection{Index: index}}
}

// SelectID builds a selection event for the candidate with the given id.
func SelectID(id string) Event {
	return Event{Kind: EventSelect, Selection: &Selection{PaperID: id}}
}

// Configure builds a parameters event.
func Configure(p types.PodcastParams) Event {
	return Event{Kind: EventConfigure, Params: &p}
}

// Cancel builds a cancellation event.
func Cancel() Event { return Event{Kind: EventCancel} }

// Restart builds a restart event.
func Restart() Event { return Event{Kind: EventRestart} }

// EventRecord is the outcome of the last handled event. It travels with the
// Snapshot so a re-delivery is still recognized after a restore.
type EventRecord struct {
	Key      string       `json:"key"`
	Revision int64        `json:"revision"`
	Moved    bool         `json:"moved"`
	Error    *ErrorRecord `json:"error,omitempty"`
}

// key identifies the event for duplicate detection.
func (e Event) key() string {
	if e.ID != "" {
		return "id:" + e.ID
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// describe renders the event as the user's Memory turn.
func (e Event) describe() string {
	switch e.Kind {
	case EventQuery:
		return e.Query
	case EventSelect:
		if e.Selection == nil {
			return "select (nothing)"
		}
		if e.Selection.PaperID != "" {
			return "select paper " + e.Selection.PaperID
		}
		return fmt.Sprintf("select candidate %d", e.Selection.Index+1)
	case EventConfigure:
		if e.Params == nil {
			return "configure (nothing)"
		}
		genders := make([]string, len(e.Params.SpeakerGenders))
		for i, g := range e.Params.SpeakerGenders {
			genders[i] = string(g)
		}
		return fmt.Sprintf("%d minutes, %d speakers (%s)",
			e.Params.DurationMinutes, e.Params.SpeakerCount, strings.Join(genders, ", "))
	default:
		return string(e.Kind)
	}
}
