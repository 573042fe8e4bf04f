package boundary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arendabot/arendabot/internal/event"
	"github.com/arendabot/arendabot/internal/model"
)

type memSink struct {
	mu   sync.Mutex
	recs []model.LogRecord
	err  error
}

func (s *memSink) Append(rec model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memSink) records() []model.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LogRecord(nil), s.recs...)
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk gone") }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func testEvent() model.Event {
	return model.Event{
		ID:         "ev-1",
		Kind:       model.EventCommand,
		Command:    "start",
		ChatID:     42,
		Text:       "/start",
		ReceivedAt: time.Now().UTC(),
	}
}

func TestBoundary_SuccessLogsSingleInfoRecord(t *testing.T) {
	sink := &memSink{}
	b := New(sink)

	h := event.NewHandler("greeter", func(ctx context.Context, ev model.Event) (string, error) {
		return "hello", nil
	})
	out := b.Handle(context.Background(), testEvent(), h)

	require.True(t, out.Succeeded())
	assert.Equal(t, "hello", out.Reply)
	assert.Nil(t, out.Failure)

	recs := sink.records()
	require.Len(t, recs, 1)
	assert.Equal(t, model.LevelInfo, recs[0].Level)
	assert.Equal(t, "greeter", recs[0].Source)
	assert.Equal(t, "event handled", recs[0].Message)
	assert.Equal(t, "ev-1", recs[0].Context["event_id"])
	assert.Contains(t, recs[0].Context, "duration_ms")
}

func TestBoundary_ErrorAbsorbedWithFallback(t *testing.T) {
	sink := &memSink{}
	b := New(sink)

	h := event.NewHandler("flats", func(ctx context.Context, ev model.Event) (string, error) {
		return "", errors.New("sql: table listings is locked")
	})
	out := b.Handle(context.Background(), testEvent(), h)

	require.Equal(t, StatusRecovered, out.Status)
	assert.Equal(t, FallbackMessage, out.Reply)
	assert.NotContains(t, out.Reply, "sql")

	require.NotNil(t, out.Failure)
	assert.Equal(t, ClassLogic, out.Failure.Class)
	assert.True(t, out.Failure.Recoverable)

	recs := sink.records()
	require.Len(t, recs, 1)
	assert.Equal(t, model.LevelError, recs[0].Level)
	assert.Equal(t, "event handling failed", recs[0].Message)
	assert.Equal(t, string(ClassLogic), recs[0].Context["classification"])
	assert.Contains(t, recs[0].Context["cause"], "table listings is locked")
}

func TestBoundary_PanicRecovered(t *testing.T) {
	sink := &memSink{}
	b := New(sink)

	h := event.NewHandler("boom", func(ctx context.Context, ev model.Event) (string, error) {
		panic("nil map write")
	})

	var out Outcome
	require.NotPanics(t, func() {
		out = b.Handle(context.Background(), testEvent(), h)
	})

	require.Equal(t, StatusRecovered, out.Status)
	assert.Equal(t, FallbackMessage, out.Reply)
	require.NotNil(t, out.Failure)
	assert.Equal(t, ClassPanic, out.Failure.Class)
	assert.Contains(t, out.Failure.Cause, "nil map write")

	recs := sink.records()
	require.Len(t, recs, 1)
	assert.Equal(t, model.LevelError, recs[0].Level)
	assert.Equal(t, string(ClassPanic), recs[0].Context["classification"])
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"wrapped transient sentinel", fmt.Errorf("fetch listings: %w", ErrTransient), ClassTransient},
		{"context deadline", context.DeadlineExceeded, ClassTransient},
		{"context canceled", context.Canceled, ClassTransient},
		{"network timeout", timeoutErr{}, ClassTransient},
		{"plain error", errors.New("unexpected shape"), ClassLogic},
		{"panic value", &panicFailure{value: "oops"}, ClassPanic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err))
		})
	}
}

func TestBoundary_SinkFailureReroutesToDiagnostic(t *testing.T) {
	sink := &memSink{err: errors.New("no space left on device")}
	var diag bytes.Buffer
	b := New(sink, WithDiagnostic(&diag))

	h := event.NewHandler("greeter", func(ctx context.Context, ev model.Event) (string, error) {
		return "hello", nil
	})
	out := b.Handle(context.Background(), testEvent(), h)
	require.True(t, out.Succeeded(), "sink trouble must stay invisible to the caller")

	lines := strings.Split(strings.TrimSpace(diag.String()), "\n")
	require.Len(t, lines, 2)

	var rec model.LogRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, model.LevelInfo, rec.Level)
	assert.Equal(t, "greeter", rec.Source)

	var notice model.LogRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &notice))
	assert.Equal(t, model.LevelCritical, notice.Level)
	assert.Equal(t, "logsink", notice.Source)
	assert.Contains(t, notice.Context["cause"], "no space left")
}

func TestBoundary_DiagnosticFailurePanics(t *testing.T) {
	sink := &memSink{err: errors.New("sink down")}
	b := New(sink, WithDiagnostic(failWriter{}))

	h := event.NewHandler("greeter", func(ctx context.Context, ev model.Event) (string, error) {
		return "hello", nil
	})
	require.Panics(t, func() {
		b.Handle(context.Background(), testEvent(), h)
	})
}

func TestBoundary_FallbackMessageOverride(t *testing.T) {
	sink := &memSink{}
	b := New(sink, WithFallbackMessage("Try again later."))

	h := event.NewHandler("flats", func(ctx context.Context, ev model.Event) (string, error) {
		return "", errors.New("nope")
	})
	out := b.Handle(context.Background(), testEvent(), h)
	assert.Equal(t, "Try again later.", out.Reply)
}

func TestBoundary_StatsCountInvocations(t *testing.T) {
	sink := &memSink{}
	b := New(sink)

	ok := event.NewHandler("ok", func(ctx context.Context, ev model.Event) (string, error) {
		return "fine", nil
	})
	bad := event.NewHandler("bad", func(ctx context.Context, ev model.Event) (string, error) {
		return "", errors.New("broken")
	})

	b.Handle(context.Background(), testEvent(), ok)
	b.Handle(context.Background(), testEvent(), ok)
	b.Handle(context.Background(), testEvent(), bad)

	stats := b.Stats()
	assert.Equal(t, int64(2), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Recovered)
}
