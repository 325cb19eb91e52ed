// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging configures the process-wide logrus logger and hands out
// component-scoped entries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Init applies cfg to the standard logrus logger. Output goes to stderr and,
// when cfg.File is set, to a size-rotated file as well. The returned closer
// flushes and closes the file; it is a no-op without one.
func Init(cfg types.LogConfig) (io.Closer, error) {
	return initLogger(logrus.StandardLogger(), cfg, os.Stderr)
}

func initLogger(l *logrus.Logger, cfg types.LogConfig, stderr io.Writer) (io.Closer, error) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	l.SetLevel(lvl)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", cfg.Format)
	}

	if cfg.File == "" {
		l.SetOutput(stderr)
		return nopCloser{}, nil
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	l.SetOutput(io.MultiWriter(stderr, rotator))
	return rotator, nil
}

// New returns an entry tagged with the component name.
func New(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
