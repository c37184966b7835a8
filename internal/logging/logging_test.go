package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Format: "json", Output: &buf})
	log.Info("should be filtered")
	log.Warn("visible", "key", "value")

	out := buf.String()
	require.NotContains(t, out, "should be filtered")
	require.Contains(t, out, "visible")
	require.True(t, strings.HasPrefix(out, "{"))
}

func TestNewTextFormatDefault(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf})
	log.Debug("should be filtered at default info level")
	log.Info("visible")

	out := buf.String()
	require.NotContains(t, out, "should be filtered")
	require.Contains(t, out, "visible")
}

func TestOrFallsBackToDefault(t *testing.T) {
	require.NotNil(t, Or(nil))

	custom := slog.Default()
	require.Same(t, custom, Or(custom))
}
