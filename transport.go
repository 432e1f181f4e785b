package main

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 30 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var errTransportClosed = errors.New("transport closed")

// Transport is one client's outbound half of a duplex stream. Send must
// only be called from that client's drainer goroutine, and only after
// Ready was last observed true and Cancelled false. The hub installs the
// OnReady and OnCancel hooks once, at registration.
type Transport interface {
	Ready() bool
	Cancelled() bool
	Send(ev *Event) error
	OnReady(func())
	OnCancel(func())
	Close() error
}

// wsTransport adapts a gorilla websocket to the Transport contract.
// Gorilla exposes no outbound-capacity signal, so the socket reports
// ready while open and a jammed peer surfaces as a write-deadline error,
// which cancels the transport. Keepalive pings share the write mutex
// with data frames; control traffic is transport-internal, not a core
// send.
type wsTransport struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	cancelled atomic.Bool

	onReady    func()
	onCancel   func()
	cancelOnce sync.Once

	keeper *keepalive
	pinger *pinger
}

func newWSTransport(ws *websocket.Conn) *wsTransport {
	return &wsTransport{ws: ws}
}

func (t *wsTransport) Ready() bool     { return !t.cancelled.Load() }
func (t *wsTransport) Cancelled() bool { return t.cancelled.Load() }

func (t *wsTransport) OnReady(cb func())  { t.onReady = cb }
func (t *wsTransport) OnCancel(cb func()) { t.onCancel = cb }

func (t *wsTransport) Send(ev *Event) error {
	if t.cancelled.Load() {
		return errTransportClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	t.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err = t.ws.WriteMessage(websocket.TextMessage, data)
	t.writeMu.Unlock()

	if err != nil {
		t.cancel()
		return err
	}
	return nil
}

// ping writes a keepalive control frame. Driven by the shared keepalive
// ticker, not by the drainer.
func (t *wsTransport) ping() {
	if t.cancelled.Load() {
		return
	}
	t.writeMu.Lock()
	t.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err := t.ws.WriteMessage(websocket.PingMessage, nil)
	t.writeMu.Unlock()

	if err != nil {
		t.cancel()
	}
}

// startPings subscribes the transport to the shared keepalive ticker.
func (t *wsTransport) startPings(k *keepalive) {
	t.keeper = k
	t.pinger = k.subscribe()
	go func() {
		for range t.pinger.tick {
			t.ping()
		}
	}()
}

// cancel marks the stream terminated and fires the OnCancel hook once.
func (t *wsTransport) cancel() {
	t.cancelled.Store(true)
	t.stopPings()
	t.cancelOnce.Do(func() {
		if t.onCancel != nil {
			t.onCancel()
		}
	})
}

func (t *wsTransport) stopPings() {
	if t.keeper != nil && t.pinger != nil {
		t.keeper.unsubscribe(t.pinger)
	}
}

func (t *wsTransport) Close() error {
	t.cancelled.Store(true)
	t.stopPings()
	return t.ws.Close()
}

// setupReader applies the read-side limits and pong handling before the
// reader pump starts.
func (t *wsTransport) setupReader() {
	t.ws.SetReadLimit(maxMessageSize)
	t.ws.SetReadDeadline(time.Now().Add(pongWait))
	t.ws.SetPongHandler(func(string) error {
		t.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}
