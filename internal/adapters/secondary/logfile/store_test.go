package logfile

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodcell-inference-service/internal/core/domain"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestStore(t *testing.T, console *log.Logger) (*store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "logs")
	s, err := newStore(dir, console, func() time.Time { return fixedNow })
	require.NoError(t, err)
	return s, dir
}

func touch(t *testing.T, dir, name string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestCreate_WritesHeader(t *testing.T) {
	s, dir := newTestStore(t, nil)

	rl, err := s.Create(domain.TaskClassification, "mobilenet-v2")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^20260102_030405_classification_mobilenet-v2_[0-9a-f]{8}\.log$`), rl.Filename)

	rl.Info("Image decoded")
	require.NoError(t, rl.Close())

	data, err := os.ReadFile(filepath.Join(dir, rl.Filename))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, separator)
	assert.Contains(t, content, "New CLASSIFICATION Request")
	assert.Contains(t, content, "Model: mobilenet-v2")
	assert.Contains(t, content, "Log File: "+rl.Filename)
	assert.Contains(t, content, "Image decoded")
}

func TestCreate_NoModel(t *testing.T) {
	s, _ := newTestStore(t, nil)

	rl, err := s.Create(domain.TaskCount, "")
	require.NoError(t, err)
	defer rl.Close()

	assert.Regexp(t, regexp.MustCompile(`^20260102_030405_count_[0-9a-f]{8}\.log$`), rl.Filename)
}

func TestCreate_OneFilePerRequest(t *testing.T) {
	s, _ := newTestStore(t, nil)

	for i := 0; i < 3; i++ {
		rl, err := s.Create(domain.TaskDetection, "")
		require.NoError(t, err)
		require.NoError(t, rl.Close())
	}

	files, err := s.List()
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestCreate_MirrorsErrorsToConsole(t *testing.T) {
	var buf bytes.Buffer
	console := log.New()
	console.SetOutput(&buf)

	s, _ := newTestStore(t, console)
	rl, err := s.Create(domain.TaskDetection, "")
	require.NoError(t, err)
	defer rl.Close()

	rl.Info("quiet step")
	rl.Error("inference exploded")

	assert.Contains(t, buf.String(), "inference exploded")
	assert.Contains(t, buf.String(), rl.Filename)
	assert.NotContains(t, buf.String(), "quiet step")
}

func TestList_NewestFirst(t *testing.T) {
	s, dir := newTestStore(t, nil)
	touch(t, dir, "a.log", fixedNow.Add(-2*time.Hour))
	touch(t, dir, "b.log", fixedNow.Add(-1*time.Hour))
	touch(t, dir, "c.txt", fixedNow)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.log"), 0o755))

	files, err := s.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "b.log", files[0].Filename)
	assert.Equal(t, "a.log", files[1].Filename)
	assert.Equal(t, int64(1), files[0].Size)
}

func TestRead(t *testing.T) {
	s, dir := newTestStore(t, nil)
	touch(t, dir, "present.log", fixedNow)

	content, err := s.Read("present.log")
	require.NoError(t, err)
	assert.Equal(t, "x", content)

	_, err = s.Read("missing.log")
	assert.ErrorIs(t, err, domain.ErrLogNotFound)
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"plain", "20260102_030405_count_abcd1234.log", true},
		{"wrong extension", "notes.txt", false},
		{"slash", "../etc/passwd.log", false},
		{"backslash", `..\secret.log`, false},
		{"dots", "..log", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidLogName)
			}
		})
	}
}

func TestCleanup(t *testing.T) {
	s, dir := newTestStore(t, nil)
	touch(t, dir, "old.log", fixedNow.Add(-10*24*time.Hour))
	touch(t, dir, "recent.log", fixedNow.Add(-time.Hour))
	touch(t, dir, "old.txt", fixedNow.Add(-30*24*time.Hour))

	deleted, err := s.Cleanup(7)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = os.Stat(filepath.Join(dir, "old.log"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "recent.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "old.txt"))
	assert.NoError(t, err)
}

func TestCleanup_NegativeDays(t *testing.T) {
	s, _ := newTestStore(t, nil)

	_, err := s.Cleanup(-1)
	assert.ErrorIs(t, err, domain.ErrInvalidDays)
}
