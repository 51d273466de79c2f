// Package logging builds the slog logger shared by the server and the CLI.
package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog logger plus the optional file it also writes to.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New returns a text logger at level writing to w and, when filePath is not
// empty, appending to that file too. The std log package is pointed at the
// same writers so startup messages end up in one place.
func New(w io.Writer, level, filePath string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	writers := []io.Writer{w}
	var file *os.File
	if filePath != "" {
		file, err = os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, file)
	}

	out := io.MultiWriter(writers...)
	log.SetOutput(out)
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl})
	return &Logger{Logger: slog.New(handler), file: file}, nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel accepts debug, info, warn and error; empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
