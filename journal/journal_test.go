package journal

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type entry struct {
	Round int    `json:"round"`
	Kind  string `json:"kind"`
}

func readAll(t *testing.T, path string) []entry {
	t.Helper()
	var out []entry
	require.NoError(t, Read(path, func(line json.RawMessage) error {
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	}))
	return out
}

func TestWriterRotatesDaily(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)
	w := NewWriter(dir).WithClock(func() time.Time { return now })

	require.NoError(t, w.Write(entry{Round: 1, Kind: "vote"}))
	require.NoError(t, w.Write(entry{Round: 2, Kind: "skip"}))
	now = now.Add(2 * time.Minute)
	require.NoError(t, w.Write(entry{Round: 3, Kind: "counter"}))
	require.NoError(t, w.Close())

	files, err := Files(dir)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "decisions-2026-05-01.jsonl.zst"),
		filepath.Join(dir, "decisions-2026-05-02.jsonl.zst"),
	}, files)

	require.Equal(t, []entry{{1, "vote"}, {2, "skip"}}, readAll(t, files[0]))
	require.Equal(t, []entry{{3, "counter"}}, readAll(t, files[1]))
}

func TestWriterAppendsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }

	first := NewWriter(dir).WithClock(clock)
	require.NoError(t, first.Write(entry{Round: 1}))
	require.NoError(t, first.Close())

	second := NewWriter(dir).WithClock(clock)
	require.NoError(t, second.Write(entry{Round: 2}))
	require.NoError(t, second.Close())

	got := readAll(t, second.PathForDay("2026-05-01"))
	require.Len(t, got, 2, "Concatenated frames decode as one stream")
	require.Equal(t, 2, got[1].Round)
}
