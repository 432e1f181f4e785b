package main

import (
	"sync"
)

const defaultQueueCap = 1000

// ring is a fixed-capacity multi-producer/single-consumer event buffer.
// When full it evicts the oldest unsent event to admit the new one, so a
// slow client catches up on current state instead of replaying stale
// history. offer and poll never block.
type ring struct {
	mu        sync.Mutex
	buf       []*Event
	head      int // index of the oldest element
	count     int
	dropped   uint64
	highWater int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = defaultQueueCap
	}
	return &ring{buf: make([]*Event, capacity)}
}

// offer inserts ev, evicting oldest elements until it fits. Returns the
// number of events evicted.
func (r *ring) offer(ev *Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for r.count >= len(r.buf) {
		r.buf[r.head] = nil
		r.head = (r.head + 1) % len(r.buf)
		r.count--
		r.dropped++
		evicted++
	}
	r.buf[(r.head+r.count)%len(r.buf)] = ev
	r.count++
	if r.count > r.highWater {
		r.highWater = r.count
	}
	return evicted
}

// poll removes and returns the oldest event, or nil when empty.
func (r *ring) poll() *Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil
	}
	ev := r.buf[r.head]
	r.buf[r.head] = nil
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return ev
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *ring) stats() (dropped uint64, depth, highWater int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped, r.count, r.highWater
}

// discard empties the buffer. Used at teardown; queued history is not
// replayed to reconnecting clients.
func (r *ring) discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.buf {
		r.buf[i] = nil
	}
	r.head = 0
	r.count = 0
}
