package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level, file string) (*Logger, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	console := &bytes.Buffer{}
	logger, err := New(Config{Level: level, Dir: dir, Filename: file, Console: console})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger, console, filepath.Join(dir, file)
}

func TestNew_DefaultConfig(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Dir: dir, Console: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
	assert.FileExists(t, filepath.Join(dir, "vietscribe.log"))
}

func TestLogger_WritesFileAndConsole(t *testing.T) {
	logger, console, path := newTestLogger(t, "info", "info.log")

	logger.Info("unit %d of %d done", 2, 7)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "unit 2 of 7 done")
	assert.Contains(t, console.String(), "unit 2 of 7 done")
	assert.Contains(t, console.String(), "[INFO]")
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, console, path := newTestLogger(t, "warn", "warn.log")

	logger.Info("hidden message")
	logger.Debug("hidden debug")
	logger.Warn("visible warning")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "hidden")
	assert.Contains(t, string(content), "visible warning")
	assert.NotContains(t, console.String(), "hidden")
}

func TestLogger_StructuredFields(t *testing.T) {
	logger, _, path := newTestLogger(t, "debug", "fields.log")

	logger.Info("unit recognized", map[string]any{"unit": 3, "segments": 5})

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"segments":5`)
	assert.Contains(t, string(content), `"unit":3`)
}

func TestLogger_Tags(t *testing.T) {
	logger, console, path := newTestLogger(t, "debug", "tag.log")

	logger.InfoTag("ASR", "recognizing unit %d", 1)
	logger.ErrorTag("PIPELINE", "[already tagged] message")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[ASR] recognizing unit 1")
	assert.Contains(t, string(content), "[already tagged] message")
	assert.Contains(t, console.String(), tagColors["ASR"])
}

func TestFormatTag(t *testing.T) {
	assert.Equal(t, "[BOOT] ready", FormatTag("BOOT", " ready "))
	assert.Equal(t, "ready", FormatTag("", "ready"))
	assert.Equal(t, "[X] ready", FormatTag("BOOT", "[X] ready"))
}

func TestLogger_RotateAndClean(t *testing.T) {
	logger, _, path := newTestLogger(t, "info", "rot.log")
	dir := filepath.Dir(path)

	stale := filepath.Join(dir, "rot-2000-01-01.log")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	logger.Info("before rotation")
	logger.checkAndRotate(time.Now().AddDate(0, 0, 1))
	logger.Info("after rotation")

	archived := filepath.Join(dir, "rot-"+time.Now().Format("2006-01-02")+".log")
	assert.FileExists(t, archived)
	assert.NoFileExists(t, stale)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "after rotation")
	assert.NotContains(t, string(content), "before rotation")
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Error("nothing %s", "happens")
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}
