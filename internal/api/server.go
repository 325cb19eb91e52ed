// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api serves the session manager over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/internal/session"
)

// Server routes HTTP requests to a session manager.
type Server struct {
	mgr    *session.Manager
	engine *gin.Engine
	log    *logrus.Entry
}

// New builds the router.
func New(mgr *session.Manager) *Server {
	s := &Server{mgr: mgr, engine: gin.New(), log: logging.New("api")}
	s.engine.Use(gin.Recovery(), s.requestLog())

	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	v1 := s.engine.Group("/v1/sessions")
	v1.POST("", s.create)
	v1.GET("", s.list)
	v1.GET("/:id", s.get)
	v1.POST("/:id/events", s.advance)
	v1.DELETE("/:id", s.remove)
	v1.GET("/:id/audio", s.audio)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("request")
	}
}

// createRequest optionally starts the session with a query.
type createRequest struct {
	Query string `json:"query"`
}

func (s *Server) create(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}
	}
	// Sessions outlive the request that created them.
	ctx := context.WithoutCancel(c.Request.Context())
	snap, err := s.mgr.Create(ctx)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	if req.Query != "" {
		snap, err = s.mgr.Advance(ctx, snap.SessionID, pipeline.Query(req.Query))
		if err != nil {
			s.fail(c, err, &snap)
			return
		}
	}
	c.JSON(http.StatusCreated, gin.H{"session": snap})
}

func (s *Server) list(c *gin.Context) {
	list, err := s.mgr.List(c.Request.Context())
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (s *Server) get(c *gin.Context) {
	snap, err := s.mgr.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": snap})
}

func (s *Server) advance(c *gin.Context) {
	var ev pipeline.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	id := c.Param("id")
	if _, err := s.mgr.Get(c.Request.Context(), id); err != nil {
		s.fail(c, err, nil)
		return
	}
	// A dropped connection must not cancel the stage; clients send a
	// cancel event for that.
	snap, err := s.mgr.Advance(context.WithoutCancel(c.Request.Context()), id, ev)
	if err != nil {
		s.fail(c, err, &snap)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": snap})
}

func (s *Server) remove(c *gin.Context) {
	if err := s.mgr.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) audio(c *gin.Context) {
	snap, err := s.mgr.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	art := snap.Context.AudioArtifact
	if art == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "session has no audio yet", "stage": snap.State.Stage}})
		return
	}
	if _, err := os.Stat(art.Handle); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "audio file is missing"}})
		return
	}
	c.FileAttachment(art.Handle, "podcast-"+snap.SessionID+".wav")
}

// fail writes err with the status its kind maps to. snap, when given, is the
// session state after the failed event.
func (s *Server) fail(c *gin.Context, err error, snap *pipeline.Snapshot) {
	code := Status(err)
	body := gin.H{"error": errorBody(err)}
	if snap != nil && snap.SessionID != "" {
		body["session"] = snap
	}
	if code >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(code, body)
}

// Status maps an error to an HTTP status code.
func Status(err error) int {
	var pe *pipeline.Error
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrCancelled), errors.Is(err, pipeline.ErrStateViolation):
		return http.StatusConflict
	case errors.As(err, &pe) && pe.Validation():
		return http.StatusUnprocessableEntity
	case errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) any {
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return pe.Record()
	}
	return gin.H{"message": err.Error()}
}
