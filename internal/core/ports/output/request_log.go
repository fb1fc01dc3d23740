package ports

import (
	"io"

	log "github.com/sirupsen/logrus"

	"bloodcell-inference-service/internal/core/domain"
)

// RequestLog is the logger dedicated to one prediction request
type RequestLog struct {
	*log.Entry
	Filename string
	closer   io.Closer
}

// NewRequestLog wraps an entry that writes to the file named filename
func NewRequestLog(entry *log.Entry, filename string, closer io.Closer) *RequestLog {
	return &RequestLog{Entry: entry, Filename: filename, closer: closer}
}

// Close flushes and releases the underlying file
func (l *RequestLog) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// RequestLogStore creates and manages per-request log files
type RequestLogStore interface {
	// Create opens a new log file for a request; modelID may be empty
	Create(task domain.Task, modelID string) (*RequestLog, error)

	// List returns every log file, newest first
	List() ([]domain.LogFile, error)

	// Read returns the content of one log file
	Read(filename string) (string, error)

	// Cleanup removes log files older than days and returns how many were deleted
	Cleanup(days int) (int, error)
}
