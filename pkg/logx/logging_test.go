package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "watch"))

	log.Warn("cycle failed", Int("subscribers", 2), Err(errors.New("boom")))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Equal(t, "warn", m["level"])
	require.Equal(t, "cycle failed", m["message"])
	require.Equal(t, "watch", m["comp"])
	require.EqualValues(t, 2, m["subscribers"])
	require.Equal(t, "boom", m["error"])
	require.Contains(t, m["caller"], "logging_test.go:")
}

func TestWriterLoggerLevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")

	log.Info("dropped")
	require.Zero(t, buf.Len())
	require.False(t, log.Enabled(LevelDebug))
	require.True(t, log.Enabled(LevelError))
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var log Logger
	require.True(t, log.IsZero())
	log.Error("nothing happens")
	require.False(t, Nop().IsZero())
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	require.Equal(t, LevelDebug, parseLevel(" debug ", LevelInfo))
	require.Equal(t, LevelWarn, parseLevel("WARNING", LevelInfo))
	require.Equal(t, LevelInfo, parseLevel("bogus", LevelInfo))
}
