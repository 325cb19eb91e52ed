// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcpserver exposes podcast sessions as Model Context Protocol tools,
// so an assistant can search, pick a paper, and produce a podcast on the
// user's behalf.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/internal/session"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Server wraps the MCP SDK server around a session manager.
type Server struct {
	MCPServer *sdkmcp.Server

	mgr *session.Manager
	wpm int
	log *logrus.Entry
}

// New registers the session tools. wpm converts script length into minutes
// for the summaries the tools return.
func New(mgr *session.Manager, version string, wpm int) *Server {
	s := &Server{mgr: mgr, wpm: wpm, log: logging.New("mcp")}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "paper-podcast", Version: version},
		nil,
	)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "start_session",
		Description: "Start a podcast session. With a query, also searches for candidate papers (free text or an arXiv identifier).",
	}, s.handleStart)
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "advance_session",
		Description: "Send the next user action to a session: query, select, configure, cancel, or restart. Configure runs script generation and speech synthesis and returns when the podcast is done.",
	}, s.handleAdvance)
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_session",
		Description: "Return the current stage, candidates, parameters, and audio of a session.",
	}, s.handleGet)
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "cancel_session",
		Description: "Stop the running stage of a session and return it to idle.",
	}, s.handleCancel)
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_sessions",
		Description: "List known sessions, most recently updated first.",
	}, s.handleList)
	return s
}

// Run serves the tools over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

// --- Tool input/output types ---

type startInput struct {
	Query string `json:"query,omitempty" jsonschema:"optional search query or arXiv identifier"`
}

type sessionInput struct {
	SessionID string `json:"session_id" jsonschema:"session ID from start_session"`
}

type advanceInput struct {
	SessionID       string   `json:"session_id" jsonschema:"session ID from start_session"`
	Kind            string   `json:"kind" jsonschema:"action: query, select, configure, cancel, or restart"`
	Query           string   `json:"query,omitempty" jsonschema:"search text for kind=query"`
	Index           *int     `json:"index,omitempty" jsonschema:"zero-based candidate index for kind=select"`
	PaperID         string   `json:"paper_id,omitempty" jsonschema:"candidate paper ID for kind=select, instead of index"`
	DurationMinutes int      `json:"duration_minutes,omitempty" jsonschema:"podcast length for kind=configure: 5, 10, 15, 20, or 30"`
	SpeakerGenders  []string `json:"speaker_genders,omitempty" jsonschema:"one gender per speaker for kind=configure: male, female, or neutral"`
}

type candidate struct {
	Index    int      `json:"index"`
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
}

type sessionOutput struct {
	SessionID        string                `json:"session_id"`
	Stage            pipeline.Stage        `json:"stage"`
	Status           string                `json:"status"`
	Revision         int64                 `json:"revision"`
	Query            string                `json:"query,omitempty"`
	Candidates       []candidate           `json:"candidates,omitempty"`
	SelectedPaper    string                `json:"selected_paper,omitempty"`
	Params           *types.PodcastParams  `json:"params,omitempty"`
	ScriptLines      int                   `json:"script_lines,omitempty"`
	EstimatedMinutes float64               `json:"estimated_minutes,omitempty"`
	Audio            *types.AudioArtifact  `json:"audio,omitempty"`
	LastError        *pipeline.ErrorRecord `json:"last_error,omitempty"`

	// Error is the rejection of the action just sent, if any. The session
	// fields still describe the state after it.
	Error *pipeline.ErrorRecord `json:"error,omitempty"`
}

type listOutput struct {
	Sessions []sessionSummary `json:"sessions"`
}

type sessionSummary struct {
	SessionID string         `json:"session_id"`
	Stage     pipeline.Stage `json:"stage"`
	Query     string         `json:"query,omitempty"`
	Title     string         `json:"title,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

// --- Tool handlers ---

func (s *Server) handleStart(ctx context.Context, _ *sdkmcp.CallToolRequest, input startInput) (*sdkmcp.CallToolResult, sessionOutput, error) {
	ctx = context.WithoutCancel(ctx)
	snap, err := s.mgr.Create(ctx)
	if err != nil {
		return nil, sessionOutput{}, fmt.Errorf("start_session: %w", err)
	}
	s.log.WithField("session", snap.SessionID).Info("session started over mcp")
	if input.Query == "" {
		return nil, s.output(snap), nil
	}
	snap, err = s.mgr.Advance(ctx, snap.SessionID, pipeline.Query(input.Query))
	return s.result(snap, err)
}

func (s *Server) handleAdvance(ctx context.Context, _ *sdkmcp.CallToolRequest, input advanceInput) (*sdkmcp.CallToolResult, sessionOutput, error) {
	ev, err := toEvent(input)
	if err != nil {
		return nil, sessionOutput{}, err
	}
	if _, err := s.mgr.Get(ctx, input.SessionID); err != nil {
		return nil, sessionOutput{}, err
	}
	// Stages run to completion unless cancel_session is called; a client
	// abandoning the request does not stop them.
	snap, err := s.mgr.Advance(context.WithoutCancel(ctx), input.SessionID, ev)
	return s.result(snap, err)
}

func (s *Server) handleGet(ctx context.Context, _ *sdkmcp.CallToolRequest, input sessionInput) (*sdkmcp.CallToolResult, sessionOutput, error) {
	snap, err := s.mgr.Snapshot(ctx, input.SessionID)
	if err != nil {
		return nil, sessionOutput{}, err
	}
	return nil, s.output(snap), nil
}

func (s *Server) handleCancel(ctx context.Context, _ *sdkmcp.CallToolRequest, input sessionInput) (*sdkmcp.CallToolResult, sessionOutput, error) {
	if _, err := s.mgr.Get(ctx, input.SessionID); err != nil {
		return nil, sessionOutput{}, err
	}
	snap, err := s.mgr.Advance(context.WithoutCancel(ctx), input.SessionID, pipeline.Cancel())
	return s.result(snap, err)
}

func (s *Server) handleList(ctx context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, listOutput, error) {
	list, err := s.mgr.List(ctx)
	if err != nil {
		return nil, listOutput{}, err
	}
	out := listOutput{Sessions: make([]sessionSummary, 0, len(list))}
	for _, sum := range list {
		row := sessionSummary{SessionID: sum.ID, Stage: sum.Stage, Query: sum.Query, Title: sum.Title}
		if !sum.UpdatedAt.IsZero() {
			row.UpdatedAt = sum.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		out.Sessions = append(out.Sessions, row)
	}
	return nil, out, nil
}

// result reports pipeline rejections inside the output so the caller still
// sees the session; anything else is a tool error.
func (s *Server) result(snap pipeline.Snapshot, err error) (*sdkmcp.CallToolResult, sessionOutput, error) {
	if err == nil {
		return nil, s.output(snap), nil
	}
	var pe *pipeline.Error
	switch {
	case errors.As(err, &pe) && snap.SessionID != "":
		out := s.output(snap)
		out.Error = pe.Record()
		return nil, out, nil
	default:
		return nil, sessionOutput{}, err
	}
}

func (s *Server) output(snap pipeline.Snapshot) sessionOutput {
	c := snap.Context
	out := sessionOutput{
		SessionID: snap.SessionID,
		Stage:     snap.State.Stage,
		Status:    snap.Status,
		Revision:  snap.State.Revision,
		Query:     c.Query,
		Params:    c.PodcastParams,
		Audio:     c.AudioArtifact,
		LastError: snap.State.LastError,
	}
	for i, p := range c.CandidatePapers {
		out.Candidates = append(out.Candidates, candidate{
			Index:    i,
			ID:       p.ID,
			Title:    p.Title,
			Authors:  p.Authors,
			Abstract: p.Abstract,
		})
	}
	if c.SelectedPaper != nil {
		out.SelectedPaper = c.SelectedPaper.Title
	}
	if len(c.Script) > 0 {
		out.ScriptLines = len(c.Script)
		out.EstimatedMinutes = pipeline.EstimateMinutes(c.Script, s.wpm)
	}
	return out
}

// toEvent builds the pipeline event an advance_session call describes.
func toEvent(in advanceInput) (pipeline.Event, error) {
	switch pipeline.EventKind(in.Kind) {
	case pipeline.EventQuery:
		return pipeline.Query(in.Query), nil
	case pipeline.EventSelect:
		if in.PaperID != "" {
			return pipeline.SelectID(in.PaperID), nil
		}
		if in.Index == nil {
			return pipeline.Event{}, errors.New("select needs index or paper_id")
		}
		return pipeline.Select(*in.Index), nil
	case pipeline.EventConfigure:
		genders, err := types.ParseGenders(strings.Join(in.SpeakerGenders, ","))
		if err != nil {
			return pipeline.Event{}, err
		}
		return pipeline.Configure(types.PodcastParams{
			DurationMinutes: in.DurationMinutes,
			SpeakerCount:    len(genders),
			SpeakerGenders:  genders,
		}), nil
	case pipeline.EventCancel:
		return pipeline.Cancel(), nil
	case pipeline.EventRestart:
		return pipeline.Restart(), nil
	default:
		return pipeline.Event{}, fmt.Errorf("unknown kind %q (want query, select, configure, cancel, or restart)", in.Kind)
	}
}
