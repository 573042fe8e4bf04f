package logsink

import (
	"sync"

	"github.com/arendabot/arendabot/internal/model"
)

const defaultRecentSize = 100

// Recent keeps the newest records in a fixed-size ring for the ops API, so an
// operator can peek at the live stream without touching the file. Wire it to
// the sink via Options.OnRecord.
type Recent struct {
	mu   sync.Mutex
	buf  []model.LogRecord
	next int
	full bool
}

// NewRecent returns a ring holding the last n records (n <= 0 uses a default).
func NewRecent(n int) *Recent {
	if n <= 0 {
		n = defaultRecentSize
	}
	return &Recent{buf: make([]model.LogRecord, n)}
}

// Add stores rec, evicting the oldest record once the ring is full.
func (r *Recent) Add(rec model.LogRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = rec
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Records returns the held records, oldest first.
func (r *Recent) Records() []model.LogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]model.LogRecord, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]model.LogRecord, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
