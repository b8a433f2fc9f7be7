package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReleaseModeSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "release")

	log.Debug("hidden")
	log.Info("shown", "collection", "habits")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "habits", entry["collection"])
	assert.NotContains(t, entry, "source")
}

func TestNewDebugModeAddsSource(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug").Debug("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Contains(t, entry, "source")
}
