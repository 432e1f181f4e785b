package main

import (
	"sync"
	"sync/atomic"
)

// Drainer states. A trigger is a coalesced no-op unless it wins the
// idle→active compare-and-set, so producers never block and at most one
// delivery pass runs per client at any instant.
const (
	drainIdle int32 = iota
	drainActive
	drainTorn
)

// drainer delivers a client's queued events to its transport. All sends
// for the client happen on the drainer's own goroutine; enqueue and
// trigger stay cheap and synchronous on the producer side.
type drainer struct {
	c        *client
	state    atomic.Int32
	work     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newDrainer(c *client) *drainer {
	return &drainer{
		c:    c,
		work: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// run is the client's dedicated delivery goroutine.
func (d *drainer) run() {
	for {
		select {
		case <-d.work:
			d.drain()
		case <-d.done:
			return
		}
	}
}

// trigger schedules a drain pass. Called on enqueue, on transport
// readiness, and once at registration. Safe from any goroutine; a
// post-teardown trigger is a benign no-op.
func (d *drainer) trigger() {
	if !d.state.CompareAndSwap(drainIdle, drainActive) {
		return
	}
	select {
	case d.work <- struct{}{}:
	default:
	}
}

func (d *drainer) drain() {
	t := d.c.transport
	for d.state.Load() == drainActive {
		if t.Cancelled() {
			d.c.hub.teardownClient(d.c, errTransportClosed)
			return
		}
		if !t.Ready() {
			break
		}
		ev := d.c.queue.poll()
		if ev == nil {
			break
		}
		if err := t.Send(ev); err != nil {
			d.c.hub.log.Warnw("delivery failed, tearing down client",
				"client_id", d.c.id, "error", err)
			d.c.hub.teardownClient(d.c, err)
			return
		}
		d.c.sent.Add(1)
		incr("events.sent", 1)
	}

	// Release the gate, then re-check once: an enqueue that lost the
	// compare-and-set while we were parked here must not be stranded.
	d.state.CompareAndSwap(drainActive, drainIdle)
	if d.c.queue.len() > 0 && t.Ready() && !t.Cancelled() {
		d.trigger()
	}
}

// stop moves the drainer to its terminal state and releases the
// goroutine. Idempotent.
func (d *drainer) stop() {
	d.state.Store(drainTorn)
	d.stopOnce.Do(func() { close(d.done) })
}
