package inspect

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"
)

// Follow emits the last n entries like Tail, then keeps emitting records as
// the writer appends them, polling for growth and following rotations of the
// live file, until ctx is cancelled. Cancellation is the normal way to stop a
// follow and returns nil; an emit error stops the loop and is returned.
// Returns ErrNoLog when nothing has ever been written.
func (ins *Inspector) Follow(ctx context.Context, n int, emit func(Entry) error) error {
	f, err := os.Open(ins.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err != nil {
		f = nil
	}
	defer func() {
		if f != nil {
			f.Close()
		}
	}()

	var consumed int64
	if f != nil {
		if consumed, err = completeEnd(f, ins.blockSize); err != nil {
			return err
		}
	}

	// Catch-up phase: everything up to the boundary we will poll from.
	entries, err := ins.tail(n, nil, consumed)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := emit(e); err != nil {
			return err
		}
	}

	t := time.NewTicker(ins.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		if f == nil {
			nf, err := os.Open(ins.path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return err
			}
			f = nf
			consumed = 0
		}

		info, err := f.Stat()
		if err != nil {
			return err
		}
		size := info.Size()
		if size < consumed {
			// Truncated out from under us; start over from the top.
			consumed = 0
		}
		if size > consumed {
			if consumed, err = ins.drain(f, consumed, size, emit); err != nil {
				return err
			}
		}

		// The name may point at a different file now: the writer rotates by
		// renaming the live file and creating a fresh one.
		cur, err := os.Stat(ins.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err != nil || !os.SameFile(info, cur) {
			// Appends racing the rename land on the old inode past the size
			// drained above; read the detached file to its end before
			// letting go of it.
			end, err := f.Stat()
			if err != nil {
				return err
			}
			if _, err := ins.drain(f, consumed, end.Size(), emit); err != nil {
				return err
			}
			f.Close()
			f = nil
			consumed = 0
		}
	}
}

// drain emits the terminated lines in f between from and to, returning the
// offset just past the last one. An unterminated tail is left for the next
// poll.
func (ins *Inspector) drain(f *os.File, from, to int64, emit func(Entry) error) (int64, error) {
	r := bufio.NewReader(io.NewSectionReader(f, from, to-from))
	consumed := from
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			return consumed, nil
		}
		if err != nil {
			return consumed, err
		}
		consumed += int64(len(line))
		text := strings.TrimSuffix(line, "\n")
		if len(text) == 0 {
			continue
		}
		if err := emit(parseLine(text)); err != nil {
			return consumed, err
		}
	}
}
