package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerPlainLine(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, &Options{Level: slog.LevelDebug}))

	log.Info("rpc handled", "method", "greet", "result", "ok")

	line := buf.String()
	require.Contains(t, line, " INF rpc handled method=greet result=ok\n")
	require.NotContains(t, line, "\033[")
}

func TestHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, &Options{Level: slog.LevelWarn}))

	log.Info("hidden")
	log.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "WRN shown")
}

func TestHandlerDynamicLevel(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(slog.LevelError)
	log := slog.New(NewHandler(&buf, &Options{Level: &lvl}))

	log.Warn("first")
	lvl.Set(slog.LevelDebug)
	log.Debug("second")

	require.NotContains(t, buf.String(), "first")
	require.Contains(t, buf.String(), "DBG second")
}

func TestHandlerBlocksAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, nil))

	log.Info("joining", "token", "secret-jwt", "payload", "{\n  \"state\": \"show\"\n}")

	out := buf.String()
	require.NotContains(t, out, "secret-jwt")
	require.Contains(t, out, "token=[redacted]")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "  | {", lines[1])
	require.Equal(t, "  |   \"state\": \"show\"", lines[2])
}

func TestHandlerGroupsAndPresetAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, nil)).With("component", "livekit").WithGroup("room")

	log.Info("joined", "name", "demo", "participantToken", "abc")

	out := buf.String()
	require.Contains(t, out, " component=livekit room.name=demo room.participantToken=[redacted]")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestToFileWritesRotatedLog(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "vyna.log")
	closer, err := ToFile(FileOptions{Path: path, MaxSizeMB: 1}, slog.LevelInfo)
	require.NoError(t, err)

	slog.Info("session started", "room", "demo")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "INF session started room=demo")
}
