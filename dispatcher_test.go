package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// A global event with a ready transport arrives exactly once, carrying a
// server-stamped timestamp regardless of what the producer supplied.
func TestBroadcastGlobalStampsTimestamp(t *testing.T) {
	h := newTestHub(t, 16)
	ft := newFakeTransport(true)
	_, err := h.register("alice-1", ft)
	require.NoError(t, err)

	before := time.Now().UnixNano()
	ev := newEvent("server-status", json.RawMessage(`{"ok":true}`))
	ev.Timestamp = 12345 // producer-supplied, must be overwritten
	require.Equal(t, 1, h.disp.broadcastGlobal(ev))

	require.Eventually(t, func() bool {
		return len(ft.sentOfType("server-status")) == 1
	}, time.Second, time.Millisecond)

	got := ft.sentOfType("server-status")[0]
	require.GreaterOrEqual(t, got.Timestamp, before)
	require.LessOrEqual(t, got.Timestamp, time.Now().UnixNano())
}

// A permanently not-ready client must not delay or fail delivery to the
// others.
func TestBroadcastIsolatesStalledClient(t *testing.T) {
	h := newTestHub(t, 16)
	a := newFakeTransport(true)
	b := newFakeTransport(false) // never ready
	c := newFakeTransport(true)
	for id, ft := range map[string]*fakeTransport{"alice-1": a, "bob": b, "carol": c} {
		_, err := h.register(id, ft)
		require.NoError(t, err)
	}

	for i := 1; i <= 3; i++ {
		done := make(chan struct{})
		go func(i int) {
			h.disp.broadcastGlobal(seqEvent(i))
			close(done)
		}(i)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("broadcast blocked on a stalled client")
		}
	}

	require.Eventually(t, func() bool {
		return len(a.sentOfType("seq")) == 3 && len(c.sentOfType("seq")) == 3
	}, time.Second, time.Millisecond)
	require.Equal(t, 0, b.sentCount())
}

// A targeted event reaches only clients subscribed to the subject at
// dispatch time; subscribing later does not deliver it retroactively.
func TestBroadcastTargeted(t *testing.T) {
	h := newTestHub(t, 16)
	a := newFakeTransport(true)
	b := newFakeTransport(true)
	_, err := h.register("alice-1", a)
	require.NoError(t, err)
	_, err = h.register("bob", b)
	require.NoError(t, err)

	h.updateSubscriptions("alice-1", "doc-7", true)

	ev := newEvent("doc-changed", nil)
	require.Equal(t, 1, h.disp.broadcastTargeted(ev, "doc-7"))

	require.Eventually(t, func() bool {
		return len(a.sentOfType("doc-changed")) == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, "doc-7", a.sentOfType("doc-changed")[0].Subject)
	require.Empty(t, b.sentOfType("doc-changed"))

	// Late subscriber only sees events dispatched afterwards.
	h.updateSubscriptions("bob", "doc-7", true)
	require.Empty(t, b.sentOfType("doc-changed"))

	require.Equal(t, 2, h.disp.broadcastTargeted(newEvent("doc-changed", nil), "doc-7"))
	require.Eventually(t, func() bool {
		return len(b.sentOfType("doc-changed")) == 1
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return len(a.sentOfType("doc-changed")) == 2
	}, time.Second, time.Millisecond)
}

func TestLifecycleEventsBroadcast(t *testing.T) {
	h := newTestHub(t, 16)
	a := newFakeTransport(true)
	_, err := h.register("alice-1", a)
	require.NoError(t, err)

	// alice sees her own connected event, then bob's.
	_, err = h.register("bob", newFakeTransport(true))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(a.sentOfType(eventClientConnected)) == 2
	}, time.Second, time.Millisecond)

	var payload struct {
		ClientID  string `json:"client_id"`
		Connected int    `json:"connected"`
	}
	events := a.sentOfType(eventClientConnected)
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	require.Equal(t, "alice-1", payload.ClientID)
	require.Equal(t, 1, payload.Connected)
	require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
	require.Equal(t, "bob", payload.ClientID)
	require.Equal(t, 2, payload.Connected)

	h.deregister("bob")
	require.Eventually(t, func() bool {
		return len(a.sentOfType(eventClientDisconnected)) == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, json.Unmarshal(a.sentOfType(eventClientDisconnected)[0].Payload, &payload))
	require.Equal(t, "bob", payload.ClientID)
	require.Equal(t, 1, payload.Connected)
}
