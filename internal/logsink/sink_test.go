package logsink

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arendabot/arendabot/internal/model"
)

func rec(msg string) model.LogRecord {
	return model.LogRecord{Level: model.LevelInfo, Source: "test", Message: msg}
}

func readRecords(t *testing.T, path string) []model.LogRecord {
	t.Helper()
	var r io.Reader
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	}
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	var recs []model.LogRecord
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var lr model.LogRecord
		require.NoError(t, json.Unmarshal([]byte(line), &lr), "line %q", line)
		recs = append(recs, lr)
	}
	return recs
}

// chainMessages reads every rotated file plus the live file, oldest first.
func chainMessages(t *testing.T, path string) []string {
	t.Helper()
	var msgs []string
	for _, p := range append(RotatedFiles(path), path) {
		for _, r := range readRecords(t, p) {
			msgs = append(msgs, r.Message)
		}
	}
	return msgs
}

func TestSink_AppendWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	s, err := Open(Options{Path: path})
	require.NoError(t, err)

	require.NoError(t, s.Append(rec("first")))
	require.NoError(t, s.Append(model.LogRecord{
		Level:   model.LevelError,
		Source:  "flats",
		Message: "second",
		Context: map[string]string{"event_id": "abc"},
	}))
	require.NoError(t, s.Close())

	recs := readRecords(t, path)
	require.Len(t, recs, 2)
	assert.Equal(t, "first", recs[0].Message)
	assert.False(t, recs[0].Timestamp.IsZero(), "zero timestamps are stamped on append")
	assert.Equal(t, model.LevelError, recs[1].Level)
	assert.Equal(t, "abc", recs[1].Context["event_id"])

	st := s.Stats()
	assert.Equal(t, int64(2), st.Records)
	assert.Positive(t, st.Bytes)
}

func TestSink_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")

	s, err := Open(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Append(rec("before restart")))
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Append(rec("after restart")))
	require.NoError(t, s.Close())

	recs := readRecords(t, path)
	require.Len(t, recs, 2)
	assert.Equal(t, "before restart", recs[0].Message)
	assert.Equal(t, "after restart", recs[1].Message)
}

func TestSink_RotationKeepsAppendOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	s, err := Open(Options{Path: path, MaxSize: 256})
	require.NoError(t, err)

	var want []string
	for i := 0; i < 12; i++ {
		msg := fmt.Sprintf("msg-%02d", i)
		want = append(want, msg)
		require.NoError(t, s.Append(rec(msg)))
	}
	require.NoError(t, s.Close())

	rotated := RotatedFiles(path)
	require.NotEmpty(t, rotated, "12 records at 256 bytes must rotate")
	assert.True(t, sort.StringsAreSorted(rotated), "rotated names sort oldest first")
	assert.Equal(t, want, chainMessages(t, path))
	assert.Equal(t, int64(len(rotated)), s.Stats().Rotations)
}

func TestSink_MaxBackupsPrunesOldest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	s, err := Open(Options{Path: path, MaxSize: 128, MaxBackups: 2})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Append(rec(fmt.Sprintf("msg-%02d", i))))
	}
	require.NoError(t, s.Close())

	rotated := RotatedFiles(path)
	assert.LessOrEqual(t, len(rotated), 2)

	msgs := chainMessages(t, path)
	assert.NotContains(t, msgs, "msg-00", "oldest rotation is pruned")
	assert.Contains(t, msgs, "msg-19")
}

func TestSink_CompressGzipsRotatedFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	s, err := Open(Options{Path: path, MaxSize: 128, Compress: true})
	require.NoError(t, err)

	var want []string
	for i := 0; i < 8; i++ {
		msg := fmt.Sprintf("msg-%02d", i)
		want = append(want, msg)
		require.NoError(t, s.Append(rec(msg)))
	}
	require.NoError(t, s.Close())

	rotated := RotatedFiles(path)
	require.NotEmpty(t, rotated)
	for _, p := range rotated {
		assert.True(t, strings.HasSuffix(p, ".gz"), "rotated file %s is gzipped", p)
	}
	assert.Equal(t, want, chainMessages(t, path))
}

func TestSink_ConcurrentAppendsStayIntact(t *testing.T) {
	const writers, perWriter = 8, 50

	path := filepath.Join(t.TempDir(), "bot.log")
	s, err := Open(Options{Path: path})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = s.Append(rec(fmt.Sprintf("w%d-%03d", w, i)))
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, s.Close())

	recs := readRecords(t, path)
	require.Len(t, recs, writers*perWriter, "every line parses, none torn")

	// Interleaving across writers is arbitrary, order within one is not.
	perWriterSeen := make(map[string][]string)
	for _, r := range recs {
		w := strings.SplitN(r.Message, "-", 2)[0]
		perWriterSeen[w] = append(perWriterSeen[w], r.Message)
	}
	for w := 0; w < writers; w++ {
		key := fmt.Sprintf("w%d", w)
		require.Len(t, perWriterSeen[key], perWriter)
		for i, msg := range perWriterSeen[key] {
			assert.Equal(t, fmt.Sprintf("w%d-%03d", w, i), msg)
		}
	}
}

func TestSink_OnRecordMirrorsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	recent := NewRecent(3)
	s, err := Open(Options{Path: path, OnRecord: recent.Add})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(rec(fmt.Sprintf("msg-%d", i))))
	}
	require.NoError(t, s.Close())

	got := recent.Records()
	require.Len(t, got, 3)
	assert.Equal(t, "msg-2", got[0].Message)
	assert.Equal(t, "msg-4", got[2].Message)
	assert.False(t, got[0].Timestamp.IsZero(), "mirror sees the stamped record")
}

func TestSink_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	s, err := Open(Options{Path: path, FlushInterval: time.Second})
	require.NoError(t, err)

	require.NoError(t, s.Append(rec("last words")))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Append(rec("too late")), ErrClosed)
	assert.ErrorIs(t, s.Flush(), ErrClosed)

	// Close flushed the buffered record even though the interval never fired.
	recs := readRecords(t, path)
	require.Len(t, recs, 1)
	assert.Equal(t, "last words", recs[0].Message)
}

func TestSink_FlushIntervalPersistsWithoutClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	s, err := Open(Options{Path: path, FlushInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(rec("buffered")))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(data), "buffered")
	}, time.Second, 5*time.Millisecond)
}

func TestRotatedNameOrder(t *testing.T) {
	now := time.Date(2026, 8, 25, 15, 30, 12, 345e6, time.UTC)
	a := rotatedName("logs/bot.log", now, 1)
	b := rotatedName("logs/bot.log", now, 2)
	c := rotatedName("logs/bot.log", now.Add(time.Minute), 3)

	assert.Equal(t, filepath.Join("logs", "bot-20260825T153012.345-0001.log"), a)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestRotatedFilesIgnoresUnrelatedSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.log")
	for _, name := range []string{
		"bot.log",
		"bot-20260825T080000.000-0001.log",
		"bot-20260825T090000.000-0002.log.gz",
		"other.log",
		"bot.log.bak",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	got := RotatedFiles(path)
	require.Len(t, got, 2)
	assert.True(t, strings.HasSuffix(got[0], "-0001.log"))
	assert.True(t, strings.HasSuffix(got[1], "-0002.log.gz"))
}
