// Package logger wires every package's leveled logger onto a single
// rotating-file backend, the way the teacher's logger package and its
// per-package log.go convention do.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// LogRotator is the write-end of the rotating log file. It must be
// initialized with InitLogRotator before any subsystem logger is used at a
// level that actually writes output.
var LogRotator *rotator.Rotator

type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if LogRotator != nil {
		LogRotator.Write(p)
	}
	return len(p), nil
}

// Backend is the shared btclog backend every subsystem logger is created
// from, so a single -debuglevel flag governs every package at once.
var Backend = btclog.NewBackend(logWriter{})

// InitLogRotator creates a rotating log file at logFile, capped at 10 MiB
// per file with up to 3 rolled-over files retained.
func InitLogRotator(logFile string) error {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("logger: failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("logger: failed to create file rotator: %w", err)
	}
	LogRotator = r
	return nil
}

// GetLogger returns the named subsystem logger bound to the shared backend,
// the way every package's log.go calls logger.Get(logger.SubsystemTags.X) in
// the teacher.
func GetLogger(subsystem string) btclog.Logger {
	return Backend.Logger(subsystem)
}

// SetLogLevel changes a named subsystem's logger to the supplied level
// string ("trace", "debug", "info", "warn", "error", "critical", "off").
func SetLogLevel(l btclog.Logger, levelStr string) {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		level = btclog.LevelInfo
	}
	l.SetLevel(level)
}

// Writer exposes the shared writer for components (e.g. goleveldb) that
// want to pipe their own diagnostic output through the same sink.
func Writer() io.Writer {
	return logWriter{}
}
