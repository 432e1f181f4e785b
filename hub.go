package main

import (
	"go.uber.org/zap"
)

// hub wires the registry, dispatcher and keepalive ticker together and
// owns client lifecycle: admission, teardown, shutdown.
type hub struct {
	reg      *registry
	disp     *dispatcher
	tick     *keepalive
	log      *zap.SugaredLogger
	queueCap int
}

func newHub(log *zap.SugaredLogger, queueCap int) *hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	reg := newRegistry()
	return &hub{
		reg:      reg,
		disp:     newDispatcher(reg),
		tick:     newKeepalive(pingPeriod),
		log:      log,
		queueCap: queueCap,
	}
}

// register admits a client and atomically creates its registration: an
// empty queue and an idle drainer. The transport's readiness and
// cancellation hooks are installed here, and the drainer gets its
// initial kick.
func (h *hub) register(id string, t Transport) (*client, error) {
	c := newClient(h, id, t)

	// Hooks go in before the client becomes visible to dispatch, so no
	// callback can observe a half-registered client.
	t.OnReady(c.drainer.trigger)
	t.OnCancel(func() { h.teardownClient(c, errTransportClosed) })

	n, err := h.reg.add(c)
	if err != nil {
		return nil, err
	}
	go c.drainer.run()

	incr("clients.connected", 1)
	h.log.Infow("client connected", "client_id", id, "connected", n)
	h.disp.broadcastGlobal(lifecycleEvent(eventClientConnected, id, n))
	c.drainer.trigger()
	return c, nil
}

// deregister removes a client by id. Idempotent: unknown or
// already-removed ids are a no-op.
func (h *hub) deregister(id string) {
	c, remaining := h.reg.remove(id)
	if c == nil {
		return
	}
	h.finishTeardown(c, remaining)
}

// deregisterMatch removes c only while it is still the current
// registration for its id. Connection cleanup paths use this instead of
// deregister so a stale reader goroutine, observing its close late,
// cannot evict a client that reconnected with the same id in the
// meantime.
func (h *hub) deregisterMatch(c *client) {
	removed, remaining := h.reg.removeMatch(c)
	if !removed {
		c.drainer.stop()
		c.transport.Close()
		return
	}
	h.finishTeardown(c, remaining)
}

// teardownClient removes a failed client. Called from the client's own
// drainer on delivery failure and from the transport's cancellation
// hook; both paths may race, so removal is identity-checked and
// resource release is idempotent.
func (h *hub) teardownClient(c *client, cause error) {
	removed, remaining := h.reg.removeMatch(c)
	if !removed {
		c.drainer.stop()
		c.transport.Close()
		return
	}
	incr("clients.errors", 1)
	h.log.Warnw("client torn down", "client_id", c.id, "error", cause)
	h.finishTeardown(c, remaining)
}

func (h *hub) finishTeardown(c *client, remaining int) {
	c.drainer.stop()
	c.transport.Close()
	c.queue.discard()
	incr("clients.disconnected", 1)
	h.log.Infow("client disconnected", "client_id", c.id, "connected", remaining)
	h.disp.broadcastGlobal(lifecycleEvent(eventClientDisconnected, c.id, remaining))
}

// updateSubscriptions adds or removes a subject for a client. Unknown
// ids are a no-op.
func (h *hub) updateSubscriptions(id, subject string, add bool) {
	c := h.reg.lookup(id)
	if c == nil {
		return
	}
	if add {
		c.subscribe(subject)
	} else {
		c.unsubscribe(subject)
	}
}

// shutdown refuses new registrations and drain triggers, then tears
// down every client without blocking on any transport.
func (h *hub) shutdown() {
	clients := h.reg.shutdown()
	h.tick.stop()
	for _, c := range clients {
		c.drainer.stop()
		c.transport.Close()
		c.queue.discard()
	}
	h.log.Infow("hub shut down", "clients", len(clients))
}

// hubStatus aggregates the statistics surface: hub-wide counters plus
// one entry per connected client.
type hubStatus struct {
	Connected     int            `json:"connected"`
	Disconnected  int64          `json:"disconnected"`
	ClientErrors  int64          `json:"client_errors"`
	EventsSent    int64          `json:"events_sent"`
	EventsDropped int64          `json:"events_dropped"`
	Published     int64          `json:"published"`
	Clients       []clientStatus `json:"clients"`
}

func (h *hub) status() hubStatus {
	snap := h.reg.snapshot()
	st := hubStatus{
		Connected:     len(snap),
		Disconnected:  count("clients.disconnected"),
		ClientErrors:  count("clients.errors"),
		EventsSent:    count("events.sent"),
		EventsDropped: count("events.dropped"),
		Published:     count("events.published"),
		Clients:       make([]clientStatus, 0, len(snap)),
	}
	for _, c := range snap {
		st.Clients = append(st.Clients, c.status())
	}
	return st
}
