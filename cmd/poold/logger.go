// logger.go - Structured logging for the pool daemon
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"shielder/internal/shielder"
)

// Logger bundles the daemon logger with its audit trail. The audit log receives every
// committed pool event.
type Logger struct {
	zerolog.Logger
	audit zerolog.Logger
	files []*os.File
}

// NewLogger builds a console logger at cfg.Level, tee'd to cfg.File when set.
func NewLogger(cfg LogConfig) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	l := &Logger{audit: zerolog.Nop()}

	var console io.Writer = os.Stdout
	if !cfg.JSON {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	writers := []io.Writer{console}
	if cfg.File != "" {
		f, err := l.open(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
	}
	l.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()

	if cfg.AuditFile != "" {
		f, err := l.open(cfg.AuditFile)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		l.audit = zerolog.New(f).With().Timestamp().Str("log", "audit").Logger()
	}
	return l, nil
}

func (l *Logger) open(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	l.files = append(l.files, f)
	return f, nil
}

// Close closes the log files.
func (l *Logger) Close() error {
	var first error
	for _, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.files = nil
	return first
}

// Audit records an administrative action.
func (l *Logger) Audit(event string, fields map[string]interface{}) {
	l.audit.Info().Str("event", event).Fields(fields).Send()
}

// Publish implements shielder.EventSink by writing the event to the audit log.
func (l *Logger) Publish(_ context.Context, ev shielder.Event) error {
	e := l.audit.Info().Str("event", string(ev.Kind)).Uint32("leaf", ev.LeafIndex)
	if !ev.Root.IsZero() {
		e = e.Str("root", ev.Root.String())
	}
	if !ev.Nullifier.IsZero() {
		e = e.Str("nullifier", ev.Nullifier.String())
	}
	if ev.Op != nil {
		e = e.Stringer("kind", ev.Op.Kind).Str("amount", ev.Op.Amount.Dec()).Str("token", ev.Op.Token.String())
	}
	if ev.Kind == shielder.EventTokenRegistered {
		e = e.Str("token", ev.Token.String())
	}
	e.Send()
	return nil
}
