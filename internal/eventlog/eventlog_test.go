package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestSinkWritesJSONLines(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "logs", "ai.log")
	sink, err := Open(path, "azure")
	require.NoError(t, err)

	sink.Event("route-hit", zap.String("path", "/api/ai-chat"))
	sink.With(zap.String("requestId", "r-1")).Event("reply", zap.Int("status", 200))
	require.NoError(t, sink.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "route-hit", lines[0]["event"])
	assert.Equal(t, "azure", lines[0]["backend"])
	assert.Equal(t, "/api/ai-chat", lines[0]["path"])
	assert.NotEmpty(t, lines[0]["ts"])
	assert.Equal(t, "r-1", lines[1]["requestId"])
	assert.EqualValues(t, 200, lines[1]["status"])
}

func TestSinkAppends(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "ai.log")
	for i := 0; i < 2; i++ {
		sink, err := Open(path, "neuro-san")
		require.NoError(t, err)
		sink.Event("request")
		require.NoError(t, sink.Close())
	}
	assert.Len(t, readLines(t, path), 2)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSinkSwallowsWriteErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := New(failingWriter{}, "azure")
	assert.NotPanics(t, func() {
		for i := 0; i < 10; i++ {
			sink.Event("reply")
		}
	})
	require.NoError(t, sink.Close())
	assert.NoError(t, sink.Close())
	// events after close are discarded
	sink.Event("late")
}

func TestOpenFailureReturnsUsableSink(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	sink, err := Open(filepath.Join(blocker, "ai.log"), "azure")
	assert.Error(t, err)
	require.NotNil(t, sink)
	sink.Event("request")
	assert.NoError(t, sink.Close())
}

func TestNilSink(t *testing.T) {
	var sink *Sink
	sink.Event("x")
	assert.Nil(t, sink.With(zap.String("a", "b")))
	assert.Zero(t, sink.Dropped())
	assert.NoError(t, sink.Close())
}

func TestRequestIDContext(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	ctx := WithRequestID(context.Background(), "r-9")
	assert.Equal(t, "r-9", RequestID(ctx))
}
