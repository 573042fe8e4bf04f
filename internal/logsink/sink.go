// Package logsink persists the bot's structured log as an append-only stream
// of JSON lines. The sink is opened once at process start, shared by every
// component that logs, and closed (flushed) at shutdown. Appends are
// mutex-serialized so concurrent writers never tear a line; readers only ever
// see whole lines up to the last flush.
package logsink

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/arendabot/arendabot/internal/model"
)

// ErrClosed is returned by Append and Flush after Close.
var ErrClosed = errors.New("log sink closed")

const defaultMaxSize = 10 << 20 // 10 MiB

// Options configures a Sink. Path is required; everything else has a usable
// zero value.
type Options struct {
	// Path of the live log file, e.g. logs/bot.log. Rotated files live next
	// to it and sort after each other by name.
	Path string

	// FlushInterval bounds how long an appended record may sit in the write
	// buffer. Zero flushes after every append.
	FlushInterval time.Duration

	// MaxSize is the rotation threshold in bytes for the live file.
	MaxSize int64

	// MaxBackups caps how many rotated files are kept. Zero keeps all.
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool

	// OnRecord, when set, receives every appended record after it has been
	// written. Called outside the sink lock.
	OnRecord func(model.LogRecord)

	// Log receives non-fatal sink diagnostics (compression or prune
	// failures). Nil disables them.
	Log *zerolog.Logger
}

// Stats is a snapshot of sink activity since Open.
type Stats struct {
	Records   int64 `json:"records"`
	Bytes     int64 `json:"bytes"`
	Rotations int64 `json:"rotations"`
}

// Sink is the append-only writer side of the log stream.
type Sink struct {
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	size   int64
	seq    int
	stats  Stats
	closed bool

	stop chan struct{}
	done chan struct{}
}

// Open creates the log directory if needed, opens (or creates) the live file
// for appending, and starts the background flusher when FlushInterval is set.
func Open(opts Options) (*Sink, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("log sink: path is required")
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = defaultMaxSize
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("log sink: create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("log sink: open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("log sink: stat: %w", err)
	}

	lg := zerolog.Nop()
	if opts.Log != nil {
		lg = *opts.Log
	}
	s := &Sink{
		opts: opts,
		log:  lg,
		file: f,
		w:    bufio.NewWriter(f),
		size: info.Size(),
		seq:  len(RotatedFiles(opts.Path)),
	}
	if opts.FlushInterval > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.flushLoop()
	}
	return s, nil
}

// Append serializes rec as one JSON line and writes it to the live file,
// rotating first if the record would push the file past MaxSize. A zero
// timestamp is stamped with the current UTC time. Safe for concurrent use;
// each call writes exactly one intact line.
func (s *Sink) Append(rec model.LogRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("log sink: encode record: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.size > 0 && s.size+int64(len(line))+1 > s.opts.MaxSize {
		if err := s.rotateLocked(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	if _, err := s.w.Write(line); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("log sink: write: %w", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("log sink: write: %w", err)
	}
	n := int64(len(line)) + 1
	s.size += n
	s.stats.Records++
	s.stats.Bytes += n
	if s.opts.FlushInterval == 0 {
		if err := s.w.Flush(); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("log sink: flush: %w", err)
		}
	}
	s.mu.Unlock()

	if s.opts.OnRecord != nil {
		s.opts.OnRecord(rec)
	}
	return nil
}

// Flush forces buffered records to the file.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.w.Flush()
}

// Stats returns a snapshot of sink counters.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close stops the flusher, flushes and syncs outstanding records, and closes
// the live file. Further appends return ErrClosed. Close is idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		<-s.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("log sink: flush on close: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("log sink: sync on close: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("log sink: close: %w", err)
	}
	return nil
}

func (s *Sink) flushLoop() {
	defer close(s.done)
	t := time.NewTicker(s.opts.FlushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.mu.Lock()
			if !s.closed {
				_ = s.w.Flush()
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}

// rotateLocked closes the live file, renames it to a timestamped name that
// sorts after every earlier rotation, and reopens a fresh live file. Called
// with s.mu held.
func (s *Sink) rotateLocked() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("log sink: flush before rotate: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("log sink: close before rotate: %w", err)
	}
	s.seq++
	rotated := rotatedName(s.opts.Path, time.Now().UTC(), s.seq)
	renameErr := os.Rename(s.opts.Path, rotated)

	f, err := os.OpenFile(s.opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("log sink: reopen after rotate: %w", err)
	}
	s.file = f
	s.w.Reset(f)
	if renameErr != nil {
		// The live file keeps growing past MaxSize; better than losing it.
		return fmt.Errorf("log sink: rotate: %w", renameErr)
	}
	s.size = 0
	s.stats.Rotations++

	if s.opts.Compress {
		if err := compressFile(rotated); err != nil {
			s.log.Warn().Err(err).Str("file", rotated).Msg("could not compress rotated log")
		}
	}
	s.pruneLocked()
	return nil
}

func (s *Sink) pruneLocked() {
	if s.opts.MaxBackups <= 0 {
		return
	}
	files := RotatedFiles(s.opts.Path)
	for len(files) > s.opts.MaxBackups {
		if err := os.Remove(files[0]); err != nil {
			s.log.Warn().Err(err).Str("file", files[0]).Msg("could not prune rotated log")
			return
		}
		files = files[1:]
	}
}

// rotatedName builds e.g. logs/bot-20260825T153012.345-0001.log; the
// timestamp plus the zero-padded sequence keep names in append order even for
// rotations within the same millisecond.
func rotatedName(path string, now time.Time, seq int) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s-%s-%04d%s", stem, now.Format("20060102T150405.000"), seq, ext))
}

// RotatedFiles lists rotated siblings of path, oldest first. Plain and
// gzipped rotations are both included; names decide the order.
func RotatedFiles(path string) []string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	plain, _ := filepath.Glob(filepath.Join(dir, stem+"-*"+ext))
	gz, _ := filepath.Glob(filepath.Join(dir, stem+"-*"+ext+".gz"))
	all := append(plain, gz...)
	sort.Strings(all)
	return all
}

func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path + ".gz")
		return err
	}
	return os.Remove(path)
}
