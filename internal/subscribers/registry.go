// Package subscribers keeps the in-memory set of chats that want slot alerts.
//
// State lives for the process lifetime only; a restart forgets everyone.
package subscribers

import (
	"errors"
	"sort"
	"sync"
)

var ErrNotSubscribed = errors.New("not subscribed")

// ID is an opaque subscriber identity (the Telegram chat id).
type ID int64

// Registry is a set of subscriber IDs. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	ids map[ID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{ids: map[ID]struct{}{}}
}

// Subscribe adds id. Adding an existing member is a no-op.
// It reports whether id was newly added.
func (r *Registry) Subscribe(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

// Unsubscribe removes id or returns ErrNotSubscribed if it is not a member.
func (r *Registry) Unsubscribe(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; !ok {
		return ErrNotSubscribed
	}
	delete(r.ids, id)
	return nil
}

func (r *Registry) Has(id ID) bool {
	r.mu.RLock()
	_, ok := r.ids[id]
	r.mu.RUnlock()
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.ids)
	r.mu.RUnlock()
	return n
}

// All returns a snapshot of the current members, sorted for stable fan-out logs.
func (r *Registry) All() []ID {
	r.mu.RLock()
	out := make([]ID, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
