package main

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// client is one registered peer: its transport, its exclusively-owned
// event queue and drainer, its subscriptions and delivery counters.
type client struct {
	id        string
	transport Transport
	queue     *ring
	drainer   *drainer
	hub       *hub

	mu       sync.Mutex // protects subjects
	subjects map[string]struct{}

	sent        atomic.Uint64
	connectedAt time.Time
}

func newClient(h *hub, id string, t Transport) *client {
	c := &client{
		id:          id,
		transport:   t,
		queue:       newRing(h.queueCap),
		hub:         h,
		subjects:    make(map[string]struct{}),
		connectedAt: time.Now(),
	}
	c.drainer = newDrainer(c)
	return c
}

func (c *client) subscribe(subject string) {
	c.mu.Lock()
	c.subjects[subject] = struct{}{}
	c.mu.Unlock()
}

func (c *client) unsubscribe(subject string) {
	c.mu.Lock()
	delete(c.subjects, subject)
	c.mu.Unlock()
}

func (c *client) subscribedTo(subject string) bool {
	c.mu.Lock()
	_, ok := c.subjects[subject]
	c.mu.Unlock()
	return ok
}

// clientStatus is the statistics surface for one client. Reads counters
// without touching the delivery path.
type clientStatus struct {
	ClientID    string    `json:"client_id"`
	Subjects    []string  `json:"subjects"`
	Sent        uint64    `json:"sent"`
	Dropped     uint64    `json:"dropped"`
	QueueDepth  int       `json:"queue_depth"`
	HighWater   int       `json:"high_water"`
	ConnectedAt time.Time `json:"connected_at"`
}

func (c *client) status() clientStatus {
	dropped, depth, highWater := c.queue.stats()

	c.mu.Lock()
	subjects := make([]string, 0, len(c.subjects))
	for s := range c.subjects {
		subjects = append(subjects, s)
	}
	c.mu.Unlock()
	sort.Strings(subjects)

	return clientStatus{
		ClientID:    c.id,
		Subjects:    subjects,
		Sent:        c.sent.Load(),
		Dropped:     dropped,
		QueueDepth:  depth,
		HighWater:   highWater,
		ConnectedAt: c.connectedAt,
	}
}
