// Package inspect reads the log stream back for an operator. It runs in its
// own process, never blocks the writer, and only ever sees whole flushed
// lines: an unterminated trailing line is treated as not yet written.
package inspect

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/arendabot/arendabot/internal/logsink"
	"github.com/arendabot/arendabot/internal/model"
)

// ErrNoLog reports that the sink has never written anything at the configured
// path. Callers treat it as an informational condition, not a failure.
var ErrNoLog = errors.New("no log found")

const (
	defaultBlockSize    = 32 << 10
	defaultPollInterval = 200 * time.Millisecond
)

// Entry is one log line as read back. Parsed is false for lines that are not
// valid records; Raw always holds the original line.
type Entry struct {
	Record model.LogRecord
	Raw    string
	Parsed bool
}

// String renders an entry for terminal output.
func (e Entry) String() string {
	if !e.Parsed {
		return e.Raw
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-8s %s: %s",
		e.Record.Timestamp.Format(time.RFC3339),
		e.Record.Level,
		e.Record.Source,
		e.Record.Message)
	for _, k := range sortedKeys(e.Record.Context) {
		fmt.Fprintf(&b, " %s=%s", k, e.Record.Context[k])
	}
	return b.String()
}

// Filter selects entries; nil keeps everything.
type Filter func(Entry) bool

// ErrorsOnly keeps entries at ERROR severity or above. Lines that are not
// valid records are kept when they contain the literal error marker, so
// foreign text mixed into the stream still surfaces.
func ErrorsOnly(e Entry) bool {
	if e.Parsed {
		return e.Record.Level.AtLeast(model.LevelError)
	}
	return strings.Contains(e.Raw, "ERROR")
}

// Inspector reads the log file and its rotated siblings.
type Inspector struct {
	path      string
	blockSize int
	poll      time.Duration
}

// Option adjusts an Inspector.
type Option func(*Inspector)

// WithBlockSize sets the read granularity for tailing plain files.
func WithBlockSize(n int) Option {
	return func(ins *Inspector) {
		if n > 0 {
			ins.blockSize = n
		}
	}
}

// WithPollInterval sets how often Follow re-checks the file for growth.
func WithPollInterval(d time.Duration) Option {
	return func(ins *Inspector) {
		if d > 0 {
			ins.poll = d
		}
	}
}

// New returns an Inspector over the log at path.
func New(path string, opts ...Option) *Inspector {
	ins := &Inspector{
		path:      path,
		blockSize: defaultBlockSize,
		poll:      defaultPollInterval,
	}
	for _, opt := range opts {
		opt(ins)
	}
	return ins
}

// Tail returns the last n entries matching keep, oldest first, walking
// backward through the live file and then the rotated chain until n matches
// are found or the chain is exhausted. Memory use is bounded by n plus one
// read block, not by log size. Returns ErrNoLog when nothing has ever been
// written.
func (ins *Inspector) Tail(n int, keep Filter) ([]Entry, error) {
	return ins.tail(n, keep, -1)
}

// tail is Tail with an optional byte bound for the live file: activeEnd >= 0
// limits reading to the first activeEnd bytes, so Follow can split the stream
// at an exact line boundary between its catch-up and polling phases.
func (ins *Inspector) tail(n int, keep Filter, activeEnd int64) ([]Entry, error) {
	files, err := ins.chain()
	if err != nil {
		return nil, err
	}

	var out []Entry // newest first while collecting
	for i := len(files) - 1; i >= 0 && len(out) < n; i-- {
		end := int64(-1)
		if files[i] == ins.path {
			end = activeEnd
		}
		entries, err := tailFile(files[i], end, ins.blockSize, n-len(out), keep)
		if errors.Is(err, os.ErrNotExist) {
			// Pruned between listing and reading; older files still count.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// chain lists every log file in order: rotated files oldest first, the live
// file last. ErrNoLog when none exist.
func (ins *Inspector) chain() ([]string, error) {
	files := logsink.RotatedFiles(ins.path)
	if _, err := os.Stat(ins.path); err == nil {
		files = append(files, ins.path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("inspect: stat %s: %w", ins.path, err)
	}
	if len(files) == 0 {
		return nil, ErrNoLog
	}
	return files, nil
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
