package main

import (
	"sync"
	"sync/atomic"
	"time"
)

// fakeTransport stands in for a websocket so tests can script readiness,
// cancellation and delivery failures, and observe whether two sends ever
// overlap.
type fakeTransport struct {
	mu   sync.Mutex
	sent []*Event

	ready     atomic.Bool
	cancelled atomic.Bool
	closed    atomic.Bool

	onReady  func()
	onCancel func()

	sendErr   error
	sendDelay time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeTransport(ready bool) *fakeTransport {
	f := &fakeTransport{}
	f.ready.Store(ready)
	return f
}

func (f *fakeTransport) Ready() bool     { return f.ready.Load() && !f.cancelled.Load() }
func (f *fakeTransport) Cancelled() bool { return f.cancelled.Load() }

func (f *fakeTransport) OnReady(cb func())  { f.onReady = cb }
func (f *fakeTransport) OnCancel(cb func()) { f.onCancel = cb }

func (f *fakeTransport) Send(ev *Event) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	if f.sendDelay > 0 {
		time.Sleep(f.sendDelay)
	}
	if f.sendErr != nil {
		return f.sendErr
	}

	f.mu.Lock()
	f.sent = append(f.sent, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed.Store(true)
	return nil
}

// setReady flips readiness and, when it clears backpressure, fires the
// installed readiness hook the way a real transport would.
func (f *fakeTransport) setReady(ready bool) {
	f.ready.Store(ready)
	if ready && f.onReady != nil {
		f.onReady()
	}
}

// cancelPeer simulates the peer terminating the stream.
func (f *fakeTransport) cancelPeer() {
	f.cancelled.Store(true)
	if f.onCancel != nil {
		f.onCancel()
	}
}

func (f *fakeTransport) sentEvents() []*Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Event, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// sentOfType filters out hub lifecycle events, which most tests don't
// care about.
func (f *fakeTransport) sentOfType(eventType string) []*Event {
	var out []*Event
	for _, ev := range f.sentEvents() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
