package inspect

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"

	"github.com/arendabot/arendabot/internal/model"
)

// Scanner line cap; a record line past this is reported raw and truncated by
// bufio rather than aborting the whole read.
const maxLineSize = 1 << 20

var parsers fastjson.ParserPool

// tailFile returns the last up-to-limit entries of one file matching keep,
// newest first. end >= 0 bounds reading of a plain file to its first end
// bytes; gzipped files are always read whole (they are finished rotations).
func tailFile(path string, end int64, blockSize, limit int, keep Filter) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".gz") {
		return tailGzip(f, limit, keep)
	}
	if end < 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		end = info.Size()
	}
	return tailPlain(f, end, blockSize, limit, keep)
}

// tailPlain scans a plain file backward in fixed-size blocks, returning the
// last up-to-limit matching entries newest first. A trailing line with no
// terminator is skipped: the writer has not finished it.
func tailPlain(f *os.File, end int64, blockSize, limit int, keep Filter) ([]Entry, error) {
	if end <= 0 || limit <= 0 {
		return nil, nil
	}

	var (
		out      []Entry
		carry    []byte // tail of the line straddling the current offset
		off      = end
		trimming = true
		buf      = make([]byte, blockSize)
	)
	for off > 0 && len(out) < limit {
		start := off - int64(blockSize)
		if start < 0 {
			start = 0
		}
		block := buf[:off-start]
		if _, err := f.ReadAt(block, start); err != nil && err != io.EOF {
			return nil, err
		}
		off = start

		if trimming {
			i := bytes.LastIndexByte(block, '\n')
			if i < 0 {
				continue // still inside the unterminated tail
			}
			block = block[:i+1]
			trimming = false
		}

		data := block
		if len(carry) > 0 {
			data = append(append([]byte(nil), block...), carry...)
		}
		lines := bytes.Split(data, []byte{'\n'})
		complete := lines[1:]
		if off == 0 {
			complete = lines
			carry = nil
		} else {
			carry = append([]byte(nil), lines[0]...)
		}
		for i := len(complete) - 1; i >= 0 && len(out) < limit; i-- {
			if len(complete[i]) == 0 {
				continue
			}
			e := parseLine(string(complete[i]))
			if keep == nil || keep(e) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// tailGzip streams a finished rotation forward, keeping the last up-to-limit
// matching entries in a ring. Returned newest first.
func tailGzip(f *os.File, limit int, keep Filter) ([]Entry, error) {
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	ring := make([]Entry, limit)
	count := 0
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 64<<10), maxLineSize)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		e := parseLine(sc.Text())
		if keep == nil || keep(e) {
			ring[count%limit] = e
			count++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	n := count
	if n > limit {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, ring[(count-i)%limit])
	}
	return out, nil
}

// completeEnd returns the offset just past the last terminated line, i.e. the
// boundary up to which the file is safe to read.
func completeEnd(f *os.File, blockSize int) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	off := info.Size()
	buf := make([]byte, blockSize)
	for off > 0 {
		start := off - int64(blockSize)
		if start < 0 {
			start = 0
		}
		b := buf[:off-start]
		if _, err := f.ReadAt(b, start); err != nil && err != io.EOF {
			return 0, err
		}
		if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
			return start + int64(i) + 1, nil
		}
		off = start
	}
	return 0, nil
}

// parseLine decodes one line into an Entry. Anything that is not a record
// with a valid level and timestamp stays raw.
func parseLine(line string) Entry {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.Parse(line)
	if err != nil || v.Type() != fastjson.TypeObject {
		return Entry{Raw: line}
	}
	level, ok := model.ParseLevel(string(v.GetStringBytes("level")))
	if !ok {
		return Entry{Raw: line}
	}
	ts, err := time.Parse(time.RFC3339Nano, string(v.GetStringBytes("timestamp")))
	if err != nil {
		return Entry{Raw: line}
	}

	rec := model.LogRecord{
		Timestamp: ts,
		Level:     level,
		Source:    string(v.GetStringBytes("source")),
		Message:   string(v.GetStringBytes("message")),
	}
	if obj := v.GetObject("context"); obj != nil {
		rec.Context = make(map[string]string)
		obj.Visit(func(key []byte, val *fastjson.Value) {
			rec.Context[string(key)] = string(val.GetStringBytes())
		})
	}
	return Entry{Record: rec, Raw: line, Parsed: true}
}
