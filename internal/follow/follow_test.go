package follow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/osh/internal/codec"
	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/loader"
	"github.com/asheshgoplani/osh/internal/store"
)

func ev(cmd string, sec int64) event.Event {
	return event.Event{StartTime: time.Unix(1_700_000_000+sec, 0), Command: cmd, Session: "s"}
}

func receive(t *testing.T, f *Follower, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case e, ok := <-f.Events():
			require.True(t, ok, "events closed early")
			got = append(got, e.Command)
		case <-timeout:
			t.Fatalf("timed out with %v", got)
		}
	}
	return got
}

func start(t *testing.T, f *Follower) {
	t.Helper()
	f.SetRate(rate.Inf)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("follower did not stop")
		}
	})
	select {
	case <-f.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("follower never became ready")
	}
}

func TestFollowAppendedRecords(t *testing.T) {
	root := t.TempDir()
	text := filepath.Join(root, "local.osh")
	bin := filepath.Join(root, "machines", "box.bosh")
	require.NoError(t, store.Append(text, ev("old-1", 0)))
	require.NoError(t, store.Append(text, ev("old-2", 1)))
	require.NoError(t, store.Append(bin, ev("old-3", 2)))

	f := New(root, nil)
	paths, err := loader.Discover(root)
	require.NoError(t, err)
	seqs, err := f.Snapshot(context.Background(), paths, loader.Options{})
	require.NoError(t, err)

	var initial []string
	for _, e := range loader.KMerge(seqs) {
		initial = append(initial, e.Command)
	}
	assert.Equal(t, []string{"old-3", "old-2", "old-1"}, initial)

	start(t, f)

	require.NoError(t, store.Append(text, ev("new-1", 3)))
	assert.Equal(t, []string{"new-1"}, receive(t, f, 1))

	require.NoError(t, store.Append(bin, ev("new-2", 4)))
	assert.Equal(t, []string{"new-2"}, receive(t, f, 1))
}

func TestFollowNewDirectoryAndFile(t *testing.T) {
	root := t.TempDir()
	f := New(root, event.BySession("s"))
	start(t, f)

	dir := filepath.Join(root, "fresh")
	require.NoError(t, os.Mkdir(dir, 0o755))
	// give the watcher a moment to register the new directory
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(dir, "x.osh")
	require.NoError(t, store.Append(path, ev("first", 0)))
	other := ev("other session", 1)
	other.Session = "t"
	require.NoError(t, store.Append(path, other))
	require.NoError(t, store.Append(path, ev("second", 2)))

	assert.Equal(t, []string{"first", "second"}, receive(t, f, 2))
}

func TestMatches(t *testing.T) {
	root := t.TempDir()
	f := New(root, nil)
	assert.True(t, f.matches(filepath.Join(f.root, "a.osh")))
	assert.True(t, f.matches(filepath.Join(f.root, "x", "y", "b.bosh")))
	assert.False(t, f.matches(filepath.Join(f.root, "notes.txt")))
	assert.False(t, f.matches(filepath.Join(f.root, "config.toml")))
}

func TestFollowPolling(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "local.osh")
	require.NoError(t, store.Append(path, ev("before", 0)))

	f := New(root, nil)
	f.SetPolling(10 * time.Millisecond)
	paths, err := loader.Discover(root)
	require.NoError(t, err)
	_, err = f.Snapshot(context.Background(), paths, loader.Options{})
	require.NoError(t, err)
	start(t, f)

	require.NoError(t, store.Append(path, ev("after-1", 1)))
	require.NoError(t, store.Append(filepath.Join(root, "sub", "box.bosh"), ev("after-2", 2)))
	got := receive(t, f, 2)
	assert.ElementsMatch(t, []string{"after-1", "after-2"}, got)
}

func TestSnapshotRejectsCorruptLog(t *testing.T) {
	for _, mode := range []store.Mode{store.ZeroCopy, store.Streaming} {
		t.Run(mode.String(), func(t *testing.T) {
			root := t.TempDir()
			path := filepath.Join(root, "box.bosh")
			require.NoError(t, store.Append(path, ev("ls", 0)))

			// a frame declaring 1000 bytes with only 10 present
			bad := []byte{0xe8, 0x03, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
			fh, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
			require.NoError(t, err)
			_, err = fh.Write(bad)
			require.NoError(t, err)
			require.NoError(t, fh.Close())

			f := New(root, nil)
			seqs, err := f.Snapshot(context.Background(), []string{path}, loader.Options{Mode: mode})
			assert.ErrorIs(t, err, codec.ErrTruncated)
			assert.Nil(t, seqs)
		})
	}
}

func TestSnapshotRecordsFileEnds(t *testing.T) {
	root := t.TempDir()
	text := filepath.Join(root, "local.osh")
	bin := filepath.Join(root, "box.bosh")
	require.NoError(t, store.Append(text, ev("a", 0)))
	require.NoError(t, store.Append(bin, ev("b", 1)))
	require.NoError(t, store.Append(bin, ev("c", 2)))

	f := New(root, nil)
	seqs, err := f.Snapshot(context.Background(), []string{text, bin}, loader.Options{Mode: store.Streaming})
	require.NoError(t, err)
	require.Len(t, seqs, 2)
	assert.Len(t, seqs[0], 1)
	require.Len(t, seqs[1], 2)
	assert.Equal(t, "c", seqs[1][0].Command)

	for _, p := range []string{text, bin} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), f.offsets[p], p)
	}
}
