package history

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndGet(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddCompleted("https://example/a", "A", "mp3", "192k", "/out/a.mp3"))
	require.NoError(t, s.AddFailed("https://example/b", "B", "mp4", "1080p", "network timeout", 2))

	all, err := s.GetAll(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	require.Equal(t, "https://example/b", all[0].URL)
	require.False(t, all[0].Success)
	require.Equal(t, "network timeout", all[0].ErrorMessage)
	require.Equal(t, 2, all[0].RetryCount)
	require.Empty(t, all[0].OutputPath)

	require.Equal(t, "https://example/a", all[1].URL)
	require.True(t, all[1].Success)
	require.Equal(t, "/out/a.mp3", all[1].OutputPath)
	require.Empty(t, all[1].ErrorMessage)

	completed, err := s.GetCompleted(0)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, "https://example/a", completed[0].URL)

	failed, err := s.GetFailed(0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "https://example/b", failed[0].URL)
}

func TestGetAllOrderAndLimit(t *testing.T) {
	s := newTestStore(t)

	stamps := []string{
		"2026-01-01T10:00:00.000000000Z",
		"2026-01-03T10:00:00.000000000Z",
		"2026-01-02T10:00:00.000000000Z",
	}
	for i, ts := range stamps {
		require.NoError(t, s.Add(&Record{URL: "u", Title: string(rune('a' + i)), Timestamp: ts, Success: true}))
	}

	all, err := s.GetAll(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "b", all[0].Title) // Jan 3
	require.Equal(t, "c", all[1].Title) // Jan 2
	require.Equal(t, "a", all[2].Title) // Jan 1

	top, err := s.GetAll(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "b", top[0].Title)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddCompleted("https://example/watch?v=123", "Epic Mix", "mp3", "192k", "/o/1.mp3"))
	require.NoError(t, s.AddCompleted("https://other/clip", "Quiet Talk", "mp4", "Best", "/o/2.mp4"))

	byTitle, err := s.Search("epic", 0)
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	require.Equal(t, "Epic Mix", byTitle[0].Title)

	byURL, err := s.Search("OTHER/CLIP", 0)
	require.NoError(t, err)
	require.Len(t, byURL, 1)
	require.Equal(t, "Quiet Talk", byURL[0].Title)

	none, err := s.Search("absent", 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestUpdateByURL(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddFailed("https://example/x", "X", "mp4", "Best", "timeout", 1))
	require.NoError(t, s.UpdateByURL("https://example/x", map[string]interface{}{
		"success":     true,
		"output_path": "/out/x.mp4",
	}))

	all, err := s.GetAll(0)
	require.NoError(t, err)
	require.Len(t, all, 1, "update must rewrite the row, not append")
	require.True(t, all[0].Success)
	require.Equal(t, "/out/x.mp4", all[0].OutputPath)
}

func TestUpdateByURLTouchesMostRecentOnly(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Add(&Record{URL: "u", Timestamp: "2026-01-01T00:00:00.000000000Z"}))
	require.NoError(t, s.Add(&Record{URL: "u", Timestamp: "2026-01-02T00:00:00.000000000Z"}))

	require.NoError(t, s.UpdateByURL("u", map[string]interface{}{"title": "patched"}))

	all, err := s.GetAll(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "patched", all[0].Title)
	require.Equal(t, "Unknown", all[1].Title)
}

func TestUpdateByURLMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateByURL("https://nope", map[string]interface{}{"title": "x"})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestClears(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddCompleted("u1", "", "mp3", "192k", "/o/1"))
	require.NoError(t, s.AddFailed("u2", "", "mp3", "192k", "err", 0))
	require.NoError(t, s.AddFailed("u3", "", "mp3", "192k", "err", 0))

	n, err := s.ClearCompleted()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	st, err := s.Stats()
	require.NoError(t, err)
	require.EqualValues(t, 2, st.Total)
	require.EqualValues(t, 0, st.Completed)

	n, err = s.ClearFailed()
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	st, err = s.Stats()
	require.NoError(t, err)
	require.EqualValues(t, 0, st.Total)

	require.NoError(t, s.AddCompleted("u4", "", "mp3", "192k", "/o/4"))
	n, err = s.ClearAll()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	st, err = s.Stats()
	require.NoError(t, err)
	require.EqualValues(t, 0, st.Total)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Stats()
	require.NoError(t, err)
	require.EqualValues(t, 0, st.Total)
	require.Zero(t, st.SuccessRate)

	require.NoError(t, s.AddCompleted("u1", "", "mp3", "192k", "/o/1"))
	require.NoError(t, s.AddCompleted("u2", "", "mp3", "192k", "/o/2"))
	require.NoError(t, s.AddCompleted("u3", "", "mp3", "192k", "/o/3"))
	require.NoError(t, s.AddFailed("u4", "", "mp3", "192k", "err", 0))

	st, err = s.Stats()
	require.NoError(t, err)
	require.EqualValues(t, 4, st.Total)
	require.EqualValues(t, 3, st.Completed)
	require.EqualValues(t, 1, st.Failed)
	require.InDelta(t, 0.75, st.SuccessRate, 1e-9)
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)

	val, err := s.GetSetting("missing")
	require.NoError(t, err)
	require.Empty(t, val)

	require.NoError(t, s.SetSetting("max_concurrent", "5"))
	val, err = s.GetSetting("max_concurrent")
	require.NoError(t, err)
	require.Equal(t, "5", val)

	require.NoError(t, s.SetSetting("max_concurrent", "2"))
	val, err = s.GetSetting("max_concurrent")
	require.NoError(t, err)
	require.Equal(t, "2", val)
}

func TestExportFailed(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(&Record{
		URL:          "https://example/gone",
		Title:        "Gone",
		Timestamp:    "2026-02-01T00:00:00.000000000Z",
		ErrorMessage: "video unavailable",
		RetryCount:   1,
	}))
	require.NoError(t, s.AddCompleted("https://example/fine", "Fine", "mp3", "192k", "/o/fine.mp3"))

	out := filepath.Join(t.TempDir(), "failed.txt")
	n, err := s.ExportFailed(out)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	want := "# Failed: video unavailable\n" +
		"# Retry count: 1\n" +
		"# Date: 2026-02-01T00:00:00.000000000Z\n" +
		"https://example/gone\n\n"
	require.Equal(t, want, string(data))

	urls, err := s.FailedURLs()
	require.NoError(t, err)
	require.Equal(t, []string{"https://example/gone"}, urls)
}

func TestTimestampOrdering(t *testing.T) {
	// The fixed-width layout must sort lexicographically in time order,
	// which RFC3339Nano (trimmed zeros) does not guarantee.
	early := "2026-01-01T00:00:00.000000100Z"
	late := "2026-01-01T00:00:00.000001000Z"
	require.True(t, early < late)
	require.Len(t, Now(), len("2026-01-01T00:00:00.000000000Z"))
}
