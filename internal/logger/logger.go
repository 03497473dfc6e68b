package logger

import (
	"io"
	"log"
	"os"
)

// Logger wraps the standard log.Logger. Mining runs for hours, so output
// can be redirected to an append-only file with Open.
type Logger struct {
	*log.Logger
}

// New creates a logger writing to stdout.
func New() *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// NewWriter creates a logger writing to the provided writer.
func NewWriter(w io.Writer) *Logger {
	return &Logger{
		Logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// Open creates a logger appending to the named file, creating it if needed.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return NewWriter(f), nil
}
