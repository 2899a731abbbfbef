package store

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/osh/internal/codec"
	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/event/eventtest"
)

func writeLog(t *testing.T, path string, events []event.Event) {
	t.Helper()
	sink, err := OpenAppend(path)
	require.NoError(t, err)
	for _, e := range events {
		require.NoError(t, sink.Write(e))
	}
	require.NoError(t, sink.Close())
}

func requireSameEvents(t *testing.T, want, got []event.Event) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Truef(t, want[i].Equal(got[i]), "event %d: want %+v got %+v", i, want[i], got[i])
	}
}

func TestReadModesAgree(t *testing.T) {
	dir := t.TempDir()
	events := eventtest.New(7).Events(400)

	for _, ext := range []string{codec.TextExt, codec.BinaryExt} {
		path := filepath.Join(dir, "local"+ext)
		writeLog(t, path, events)

		for _, mode := range []Mode{ZeroCopy, Streaming} {
			t.Run(ext+"/"+mode.String(), func(t *testing.T) {
				got, err := Open(path, mode).ReadAll(context.Background(), nil)
				require.NoError(t, err)
				requireSameEvents(t, events, got)

				newest, err := ReadNewestFirst(context.Background(), path, mode, nil)
				require.NoError(t, err)
				reversed := slices.Clone(events)
				slices.Reverse(reversed)
				requireSameEvents(t, reversed, newest)
			})
		}
	}
}

func TestReadFilter(t *testing.T) {
	g := eventtest.New(8)
	events := g.Events(100)
	session := g.Sessions()[0]
	var want []event.Event
	for _, e := range events {
		if e.Session == session {
			want = append(want, e)
		}
	}
	require.NotEmpty(t, want)

	path := filepath.Join(t.TempDir(), "a.bosh")
	writeLog(t, path, events)
	for _, mode := range []Mode{ZeroCopy, Streaming} {
		got, err := Open(path, mode).ReadAll(context.Background(), event.BySession(session))
		require.NoError(t, err)
		requireSameEvents(t, want, got)
	}
}

func TestMissingFileIsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.osh")
	for _, mode := range []Mode{ZeroCopy, Streaming} {
		_, err := Open(path, mode).ReadAll(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))

		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, path, le.Path)
	}
}

func TestEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"empty.osh", "empty.bosh"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		for _, mode := range []Mode{ZeroCopy, Streaming} {
			got, err := Open(path, mode).ReadAll(context.Background(), nil)
			require.NoError(t, err)
			assert.Empty(t, got)
		}
	}
}

func TestTruncatedBinaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.bosh")
	writeLog(t, path, eventtest.New(9).Events(3))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write(binary.LittleEndian.AppendUint64(nil, 1000))
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 10))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	for _, mode := range []Mode{ZeroCopy, Streaming} {
		got, err := Open(path, mode).ReadAll(context.Background(), nil)
		require.ErrorIs(t, err, codec.ErrTruncated, mode.String())
		assert.Nil(t, got)

		_, err = ReadNewestFirst(context.Background(), path, mode, nil)
		require.ErrorIs(t, err, codec.ErrTruncated, mode.String())
	}
}

func TestStreamingHonoursCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.osh")
	writeLog(t, path, eventtest.New(1).Events(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Open(path, Streaming).ReadAll(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	_, err = Open(path, ZeroCopy).ReadAll(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "local.osh")
	events := eventtest.New(4).Events(3)
	for _, e := range events {
		require.NoError(t, Append(path, e))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, `{"format":"osh-history-v1"}`, lines[0])
	for _, l := range lines[1:] {
		assert.True(t, strings.HasPrefix(l, `{"event":`))
	}

	got, err := Open(path, ZeroCopy).ReadAll(context.Background(), nil)
	require.NoError(t, err)
	requireSameEvents(t, events, got)
}

func TestAppendBinaryHasNoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.bosh")
	e := event.Event{Command: "ls"}
	require.NoError(t, Append(path, e))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	frame, err := codec.EncodeFrame(e)
	require.NoError(t, err)
	assert.Equal(t, frame, data)
}

func TestReadTailLeavesPartialRecord(t *testing.T) {
	ctx := context.Background()
	events := eventtest.New(5).Events(4)

	for _, ext := range []string{codec.TextExt, codec.BinaryExt} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tail"+ext)
			writeLog(t, path, events[:2])

			got, off, err := ReadTail(ctx, path, 0, nil)
			require.NoError(t, err)
			requireSameEvents(t, events[:2], got)

			// half of the next record
			var rec []byte
			if ext == codec.BinaryExt {
				rec, err = codec.EncodeFrame(events[2])
			} else {
				rec, err = codec.EncodeLine(events[2])
			}
			require.NoError(t, err)
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
			require.NoError(t, err)
			_, err = f.Write(rec[:len(rec)/2])
			require.NoError(t, err)

			got, off2, err := ReadTail(ctx, path, off, nil)
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.Equal(t, off, off2)

			_, err = f.Write(rec[len(rec)/2:])
			require.NoError(t, err)
			require.NoError(t, f.Close())

			got, off3, err := ReadTail(ctx, path, off2, nil)
			require.NoError(t, err)
			requireSameEvents(t, events[2:3], got)
			assert.Greater(t, off3, off2)
		})
	}
}

func TestDecodeFramesBackward(t *testing.T) {
	events := eventtest.New(6).Events(50)
	var data []byte
	for _, e := range events {
		var err error
		data, err = codec.AppendFrame(data, e)
		require.NoError(t, err)
	}

	got, err := DecodeFramesBackward(data, nil)
	require.NoError(t, err)
	want := slices.Clone(events)
	slices.Reverse(want)
	requireSameEvents(t, want, got)

	_, err = DecodeFramesBackward(append(data, 1, 2, 3), nil)
	require.ErrorIs(t, err, codec.ErrTruncated)
}

func TestMemorySource(t *testing.T) {
	line, err := codec.EncodeLine(event.Event{Command: "echo hi"})
	require.NoError(t, err)
	var src EventSource = &Memory{Label: "stdin", Data: append([]byte("garbage\n"), line...), Format: codec.FormatText}
	got, err := src.ReadAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "echo hi", got[0].Command)
	assert.Equal(t, "stdin", src.Name())
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ZeroCopy, "mmap": ZeroCopy, "Stream": Streaming, "streaming": Streaming} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("tape")
	assert.Error(t, err)
}
