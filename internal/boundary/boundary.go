// Package boundary isolates handler failures from the process. Every inbound
// event passes through Boundary.Handle, which catches anything the handler
// raises (returned errors and panics alike), classifies it, logs it, and
// answers with a generic fallback so one broken interaction never kills the
// bot or leaks internals to the user.
package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/arendabot/arendabot/internal/event"
	"github.com/arendabot/arendabot/internal/model"
)

// FallbackMessage is the fixed user-facing notice on any absorbed failure.
// It deliberately carries no detail about what went wrong.
const FallbackMessage = "Something went wrong. Please try again."

// Sink is where the boundary appends its records. *logsink.Sink satisfies it.
type Sink interface {
	Append(model.LogRecord) error
}

// Stats counts invocations since the boundary was created.
type Stats struct {
	Succeeded int64 `json:"succeeded"`
	Recovered int64 `json:"recovered"`
}

// Boundary guards handler invocations. The zero value is not usable; use New.
type Boundary struct {
	sink     Sink
	diag     io.Writer
	fallback string

	succeeded atomic.Int64
	recovered atomic.Int64
}

// Option adjusts a Boundary.
type Option func(*Boundary)

// WithFallbackMessage overrides the user-facing fallback notice.
func WithFallbackMessage(msg string) Option {
	return func(b *Boundary) { b.fallback = msg }
}

// WithDiagnostic sets the secondary channel used when the sink itself fails.
// Defaults to standard error.
func WithDiagnostic(w io.Writer) Option {
	return func(b *Boundary) { b.diag = w }
}

// New returns a Boundary appending to sink.
func New(sink Sink, opts ...Option) *Boundary {
	b := &Boundary{
		sink:     sink,
		diag:     os.Stderr,
		fallback: FallbackMessage,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle runs h for ev and always returns an Outcome; handler failures never
// reach the caller. Exactly one log record is appended per call: INFO on
// success, ERROR (with classification and cause) on failure. The only way
// Handle can blow up is the double failure of the sink and the diagnostic
// channel, which panics because the process has lost observability entirely.
func (b *Boundary) Handle(ctx context.Context, ev model.Event, h event.Handler) Outcome {
	start := time.Now()
	reply, err := invoke(ctx, ev, h)
	elapsed := time.Since(start)

	meta := ev.Meta()
	meta["duration_ms"] = strconv.FormatInt(elapsed.Milliseconds(), 10)

	if err == nil {
		b.succeeded.Add(1)
		b.log(model.LogRecord{
			Timestamp: time.Now().UTC(),
			Level:     model.LevelInfo,
			Source:    h.Name(),
			Message:   "event handled",
			Context:   meta,
		})
		return Outcome{Status: StatusSucceeded, Reply: reply}
	}

	class := classify(err)
	meta["classification"] = string(class)
	meta["cause"] = err.Error()
	b.recovered.Add(1)
	b.log(model.LogRecord{
		Timestamp: time.Now().UTC(),
		Level:     model.LevelError,
		Source:    h.Name(),
		Message:   "event handling failed",
		Context:   meta,
	})
	return Outcome{
		Status: StatusRecovered,
		Reply:  b.fallback,
		Failure: &Failure{
			Class:       class,
			Cause:       err.Error(),
			Recoverable: true,
		},
	}
}

// Stats returns invocation counters.
func (b *Boundary) Stats() Stats {
	return Stats{
		Succeeded: b.succeeded.Load(),
		Recovered: b.recovered.Load(),
	}
}

// invoke calls the handler, converting a panic into an error so both failure
// shapes take the same recovery path.
func invoke(ctx context.Context, ev model.Event, h event.Handler) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicFailure{value: r}
		}
	}()
	return h.Handle(ctx, ev)
}

// log appends rec to the sink. If the sink fails, the record and a CRITICAL
// notice are written to the diagnostic channel instead; if that write fails
// too, no safe degradation is left and log panics.
func (b *Boundary) log(rec model.LogRecord) {
	err := b.sink.Append(rec)
	if err == nil {
		return
	}
	if derr := b.writeDiag(rec, err); derr != nil {
		panic(fmt.Sprintf("boundary: log sink failed (%v) and diagnostic channel failed (%v)", err, derr))
	}
}

func (b *Boundary) writeDiag(rec model.LogRecord, sinkErr error) error {
	notice := model.LogRecord{
		Timestamp: time.Now().UTC(),
		Level:     model.LevelCritical,
		Source:    "logsink",
		Message:   "append failed, record rerouted to diagnostic channel",
		Context:   map[string]string{"cause": sinkErr.Error()},
	}
	for _, r := range []model.LogRecord{rec, notice} {
		line, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := b.diag.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}
