package event

import (
	"sort"
	"sync"

	"github.com/arendabot/arendabot/internal/model"
)

// Registry routes events to handlers. Commands bind by name, every other
// event kind binds as a whole; a fallback handler catches anything unrouted.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Handler
	kinds    map[model.EventKind]Handler
	fallback Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Handler),
		kinds:    make(map[model.EventKind]Handler),
	}
}

// Command binds h to the command with the given name (without the slash).
func (r *Registry) Command(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = h
}

// Kind binds h to every event of the given kind that is not a bound command.
func (r *Registry) Kind(kind model.EventKind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = h
}

// Fallback sets the handler for events nothing else claims.
func (r *Registry) Fallback(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// Resolve picks the handler for ev: exact command first, then kind, then the
// fallback. ok is false only when no fallback is set either.
func (r *Registry) Resolve(ev model.Event) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ev.Kind == model.EventCommand {
		if h, ok := r.commands[ev.Command]; ok {
			return h, true
		}
	}
	if h, ok := r.kinds[ev.Kind]; ok {
		return h, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Commands returns the bound command names, sorted.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
