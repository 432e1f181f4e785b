package main

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Admission errors, surfaced to the connecting peer. Neither mutates the
// registry.
var (
	ErrInvalidIdentifier = errors.New("invalid client identifier")
	ErrAlreadyConnected  = errors.New("client already connected")
	ErrShuttingDown      = errors.New("hub is shutting down")
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

func validateClientID(id string) error {
	if !clientIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidIdentifier, id, clientIDPattern)
	}
	return nil
}

// registry is the source of truth for who is connected: an atomically
// mutated client-id map with consistent snapshot reads. Producers and
// transport lifecycle callbacks both touch it; each client's queue and
// drainer remain exclusively owned by that client.
type registry struct {
	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

func newRegistry() *registry {
	return &registry{clients: make(map[string]*client)}
}

// add admits a client. On failure nothing is mutated; on success the
// entry is fully visible, never in-between. Returns the connected count
// including the new client.
func (r *registry) add(c *client) (int, error) {
	if err := validateClientID(c.id); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrShuttingDown
	}
	if _, ok := r.clients[c.id]; ok {
		return 0, fmt.Errorf("%w: %q", ErrAlreadyConnected, c.id)
	}
	r.clients[c.id] = c
	return len(r.clients), nil
}

// remove deletes a registration. Idempotent: removing an unknown id
// returns nil. Returns the remaining connected count.
func (r *registry) remove(id string) (*client, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, len(r.clients)
	}
	delete(r.clients, id)
	return c, len(r.clients)
}

// removeMatch removes the registration only if it still maps to c, so a
// late teardown cannot evict a newer registration reusing the same id.
func (r *registry) removeMatch(c *client) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.clients[c.id]
	if !ok || cur != c {
		return false, len(r.clients)
	}
	delete(r.clients, c.id)
	return true, len(r.clients)
}

func (r *registry) lookup(id string) *client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[id]
}

// snapshot returns a consistent point-in-time view of all registrations,
// ordered by client id. Dispatch iterates the snapshot so no lock is
// held across enqueues or sends.
func (r *registry) snapshot() []*client {
	r.mu.RLock()
	out := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// shutdown refuses further admissions and empties the registry,
// returning the clients that were connected so the hub can tear each
// down without holding the lock.
func (r *registry) shutdown() []*client {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	out := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	r.clients = make(map[string]*client)
	return out
}
