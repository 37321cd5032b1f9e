package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// logBackend writes log lines to the console writer and, when configured, to
// a rotated log file.
type logBackend struct {
	console    io.Writer
	logRotator *rotator.Rotator
}

func newLogBackend(console io.Writer, logFile string) (*logBackend, error) {
	bknd := &logBackend{console: console}
	if logFile == "" {
		return bknd, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logRotator, err := rotator.New(logFile, 1024, false, maxLogFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to create file rotator: %w", err)
	}
	bknd.logRotator = logRotator
	return bknd, nil
}

func (bknd *logBackend) Write(b []byte) (int, error) {
	if bknd.console != nil {
		bknd.console.Write(b)
	}
	if bknd.logRotator != nil {
		bknd.logRotator.Write(b)
	}
	return len(b), nil
}

func (bknd *logBackend) Close() error {
	if bknd.logRotator == nil {
		return nil
	}
	return bknd.logRotator.Close()
}

func (bknd *logBackend) logger(subsys, level string) (slog.Logger, error) {
	logLevel, ok := slog.LevelFromString(level)
	if !ok {
		return nil, fmt.Errorf("%w: unknown log level %q", errConfiguration, level)
	}
	log := slog.NewBackend(bknd).Logger(subsys)
	log.SetLevel(logLevel)
	return log, nil
}
