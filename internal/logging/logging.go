// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the operator-facing log stream: timestamped,
// leveled lines written to stderr and appended to a log file.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-harvest/pkg/types"
)

// New returns a logger writing to stderr and, when cfg.File is set, to that
// file as well. The returned close function releases the file.
func New(cfg types.LogConfig, stderr io.Writer) (*logrus.Logger, func() error, error) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		lvl, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		level = lvl
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})

	closeFn := func() error { return nil }
	out := stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = io.MultiWriter(stderr, f)
		closeFn = f.Close
	}
	log.SetOutput(out)
	return log, closeFn, nil
}

// WithRun tags every entry of one tool invocation with a fresh run ID so
// interleaved runs appended to the same file can be told apart.
func WithRun(log logrus.FieldLogger, tool string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"tool":   tool,
	})
}
