package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor-backend/internal/types"
)

func TestJSONFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tuner.json")
	f := NewJSONFile(path)

	got, err := f.Read()
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, f.Write(map[string]any{"sensitivity": 0.4}))
	got, err = f.Read()
	require.NoError(t, err)
	assert.JSONEq(t, `{"sensitivity":0.4}`, string(got))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "tmp file must be renamed away")
}

func TestJSONFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuner.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewJSONFile(path).Read()
	assert.Error(t, err)
}

func TestLineLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gesture.log")
	l := NewLineLog(path)
	l.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Append(map[string]int{"i": i}))
		}(i)
	}
	wg.Wait()

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	lines := 0
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		var line struct {
			TS      string         `json:"ts"`
			Payload map[string]int `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		assert.Equal(t, "2024-03-01T12:00:00Z", line.TS)
		assert.Contains(t, line.Payload, "i")
		lines++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, 20, lines)
}

func TestSummaryCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai_summary_cache.json")
	c := NewSummaryCache(NewJSONFile(path))
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }

	got, err := c.Get()
	require.NoError(t, err)
	assert.Nil(t, got)

	saved, err := c.Put(types.SummaryCacheEntry{Summary: "2 of 3 operational", Backend: "neurosan"})
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), saved.TS)

	got, err = c.Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	got.Summary = "mutated"

	reloaded, err := NewSummaryCache(NewJSONFile(path)).Get()
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, "2 of 3 operational", reloaded.Summary)
	assert.Equal(t, "neurosan", reloaded.Backend)
	assert.Nil(t, reloaded.Project)
	assert.Equal(t, int64(1700000000000), reloaded.TS)

	again, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, "2 of 3 operational", again.Summary)
}
