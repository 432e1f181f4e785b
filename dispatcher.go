package main

import (
	"time"
)

// dispatcher fans an event out to a registry snapshot. Broadcast is
// synchronous only through the enqueue step; delivery happens on each
// client's own drainer goroutine, so a broken or stalled client never
// delays dispatch to the others.
type dispatcher struct {
	reg *registry
}

func newDispatcher(reg *registry) *dispatcher {
	return &dispatcher{reg: reg}
}

// broadcastGlobal enqueues ev for every registered client and triggers
// each drainer. Returns the number of clients reached.
func (d *dispatcher) broadcastGlobal(ev *Event) int {
	d.stamp(ev)
	targets := d.reg.snapshot()
	for _, c := range targets {
		d.deliver(c, ev)
	}
	incr("events.published", 1)
	return len(targets)
}

// broadcastTargeted is broadcastGlobal restricted to clients subscribed
// to subject, as evaluated while the dispatch loop visits each client. A
// subscription added after dispatch never receives the event
// retroactively.
func (d *dispatcher) broadcastTargeted(ev *Event, subject string) int {
	ev.Subject = subject
	d.stamp(ev)
	n := 0
	for _, c := range d.reg.snapshot() {
		if !c.subscribedTo(subject) {
			continue
		}
		d.deliver(c, ev)
		n++
	}
	incr("events.published", 1)
	return n
}

func (d *dispatcher) deliver(c *client, ev *Event) {
	if evicted := c.queue.offer(ev); evicted > 0 {
		incr("events.dropped", int64(evicted))
	}
	c.drainer.trigger()
}

// stamp assigns the server-side nanosecond timestamp before fan-out, so
// every recipient sees identical metadata. Producer-supplied timestamps
// are overwritten.
func (d *dispatcher) stamp(ev *Event) {
	ev.Timestamp = time.Now().UnixNano()
}
