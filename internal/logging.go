package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// NewLogger returns a JSON logger writing to w and, when logFile is set, a
// JSON copy to that file. The returned function closes the file.
func NewLogger(w io.Writer, level slog.Level, logFile string) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: level}
	primary := slog.NewJSONHandler(w, opts)
	if logFile == "" {
		return slog.New(primary), func() error { return nil }, nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slogmulti.Fanout(primary, slog.NewJSONHandler(file, opts)))
	return logger, file.Close, nil
}
