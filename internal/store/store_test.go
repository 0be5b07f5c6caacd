package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

func TestReadMissing(t *testing.T) {
	s := NewFileStore(t.TempDir())

	rev, err := s.Read(context.Background(), "2026-02-10")
	require.NoError(t, err)
	assert.False(t, rev.Found)
	assert.Empty(t, rev.Hash)
}

func TestWriteCreatesDatedPath(t *testing.T) {
	root := t.TempDir()
	s := NewFileStore(root)
	ctx := context.Background()

	path, err := s.Write(ctx, "2026-02-10", "hello\n", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2026", "02", "2026-02-10.md"), path)

	rev, err := s.Read(ctx, "2026-02-10")
	require.NoError(t, err)
	assert.True(t, rev.Found)
	assert.Equal(t, "hello\n", rev.Text)
	assert.Equal(t, Hash("hello\n"), rev.Hash)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteDetectsConflict(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()

	_, err := s.Write(ctx, "2026-02-10", "v1", "")
	require.NoError(t, err)
	rev, err := s.Read(ctx, "2026-02-10")
	require.NoError(t, err)

	// Someone else writes first.
	require.NoError(t, os.WriteFile(s.Path("2026-02-10"), []byte("edited by hand"), 0644))

	_, err = s.Write(ctx, "2026-02-10", "v2", rev.Hash)
	assert.ErrorIs(t, err, ErrConflict)

	// Creating a file that already exists is also a conflict.
	_, err = s.Write(ctx, "2026-02-10", "v2", "")
	assert.ErrorIs(t, err, ErrConflict)

	data, err := os.ReadFile(s.Path("2026-02-10"))
	require.NoError(t, err)
	assert.Equal(t, "edited by hand", string(data))
}

func TestWriteHonorsCanceledContext(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Write(ctx, "2026-02-10", "x", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDates(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()
	for _, d := range []worklog.Date{"2026-02-10", "2026-01-31"} {
		_, err := s.Write(ctx, d, "x", "")
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "README.md"), []byte("x"), 0644))

	dates, err := s.Dates()
	require.NoError(t, err)
	assert.Equal(t, []worklog.Date{"2026-01-31", "2026-02-10"}, dates)

	empty := NewFileStore(filepath.Join(t.TempDir(), "missing"))
	dates, err = empty.Dates()
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestWatchReportsChangedDates(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan worklog.Date, 16)
	require.NoError(t, s.Watch(ctx, func(d worklog.Date) { changed <- d }))

	_, err := s.Write(ctx, "2026-02-10", "x", "")
	require.NoError(t, err)

	// The month directory is created by the write; the first event may be
	// the directory itself, so poll with a fresh write until the file event
	// arrives.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case d := <-changed:
			assert.Equal(t, worklog.Date("2026-02-10"), d)
			return
		case <-time.After(100 * time.Millisecond):
			rev, err := s.Read(ctx, "2026-02-10")
			require.NoError(t, err)
			_, err = s.Write(ctx, "2026-02-10", rev.Text+"x", rev.Hash)
			require.NoError(t, err)
		case <-deadline:
			t.Fatal("no change reported")
		}
	}
}
