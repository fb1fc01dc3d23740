package logfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
)

const (
	extension       = ".log"
	separator       = "============================================================"
	timestampFormat = "2006-01-02 15:04:05"
	nameTimeLayout  = "20060102_150405"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type store struct {
	dir     string
	console *log.Logger
	now     func() time.Time
}

// NewStore creates the log directory if needed. Error entries written to a
// request log are also sent to console when it is not nil.
func NewStore(dir string, console *log.Logger) (ports.RequestLogStore, error) {
	s, err := newStore(dir, console, time.Now)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(dir string, console *log.Logger, now func() time.Time) (*store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &store{dir: dir, console: console, now: now}, nil
}

func (s *store) Create(task domain.Task, modelID string) (*ports.RequestLog, error) {
	name := fileName(s.now(), task, modelID, uuid.NewString()[:8])
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open request log: %w", err)
	}

	logger := log.New()
	logger.SetOutput(f)
	logger.SetLevel(log.InfoLevel)
	logger.SetFormatter(&log.TextFormatter{
		DisableColors:   true,
		DisableQuote:    true,
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
	})
	if s.console != nil {
		logger.AddHook(&consoleHook{console: s.console, file: name})
	}

	entry := log.NewEntry(logger)
	entry.Info(separator)
	entry.Infof("New %s Request", strings.ToUpper(string(task)))
	if modelID != "" {
		entry.Infof("Model: %s", modelID)
	}
	entry.Infof("Log File: %s", name)
	entry.Info(separator)

	return ports.NewRequestLog(entry, name, f), nil
}

func (s *store) List() ([]domain.LogFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read log dir: %w", err)
	}

	files := make([]domain.LogFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), extension) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, domain.LogFile{
			Filename: e.Name(),
			Size:     info.Size(),
			Created:  info.ModTime(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Modified.Equal(files[j].Modified) {
			return files[i].Filename > files[j].Filename
		}
		return files[i].Modified.After(files[j].Modified)
	})
	return files, nil
}

func (s *store) Read(filename string) (string, error) {
	if err := ValidateName(filename); err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrLogNotFound
		}
		return "", fmt.Errorf("read log file: %w", err)
	}
	return string(data), nil
}

func (s *store) Cleanup(days int) (int, error) {
	if days < 0 {
		return 0, domain.ErrInvalidDays
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read log dir: %w", err)
	}

	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	deleted := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), extension) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			log.WithError(err).WithField("file", e.Name()).Warn("Failed to delete log file")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// ValidateName accepts plain file names ending in .log
func ValidateName(name string) error {
	if name == "" ||
		!strings.HasSuffix(name, extension) ||
		strings.ContainsAny(name, `/\`) ||
		strings.Contains(name, "..") {
		return domain.ErrInvalidLogName
	}
	return nil
}

func fileName(t time.Time, task domain.Task, modelID, suffix string) string {
	parts := []string{t.Format(nameTimeLayout), string(task)}
	if modelID != "" {
		parts = append(parts, unsafeChars.ReplaceAllString(modelID, "_"))
	}
	parts = append(parts, suffix)
	return strings.Join(parts, "_") + extension
}

// consoleHook mirrors error entries of a request log to the process logger
type consoleHook struct {
	console *log.Logger
	file    string
}

func (h *consoleHook) Levels() []log.Level {
	return []log.Level{log.ErrorLevel}
}

func (h *consoleHook) Fire(e *log.Entry) error {
	h.console.WithFields(e.Data).WithField("log_file", h.file).Error(e.Message)
	return nil
}
