package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type wsHandler struct {
	h        *hub
	upgrader *websocket.Upgrader
}

func newWsHandler(h *hub, origin string) wsHandler {
	upgrader := &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if origin == "" {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	} else {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return r.Header.Get("Origin") == origin
		}
	}
	return wsHandler{h: h, upgrader: upgrader}
}

func (wsh wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/")
	if err := validateClientID(id); err != nil {
		sendBadRequestError(w, err.Error())
		return
	}
	if wsh.h.reg.lookup(id) != nil {
		err := fmt.Errorf("%w: %q", ErrAlreadyConnected, id)
		http.Error(w, fmt.Sprintf("Error: %s.", err), admissionStatus(err))
		return
	}

	ws, err := wsh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	t := newWSTransport(ws)
	c, err := wsh.h.register(id, t)
	if err != nil {
		// Lost an admission race after the upgrade; tell the peer why.
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		ws.Close()
		return
	}

	t.startPings(wsh.h.tick)
	t.setupReader()
	wsh.readControl(c, ws)
}

type controlMessage struct {
	Action  string `json:"action"`
	Subject string `json:"subject"`
}

// readControl pumps inbound subscribe/unsubscribe commands until the
// peer disconnects or times out.
func (wsh wsHandler) readControl(c *client, ws *websocket.Conn) {
	defer wsh.h.deregisterMatch(c)
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var cm controlMessage
		if err := json.Unmarshal(msg, &cm); err != nil || cm.Subject == "" {
			continue
		}
		switch cm.Action {
		case "subscribe":
			wsh.h.updateSubscriptions(c.id, cm.Subject, true)
		case "unsubscribe":
			wsh.h.updateSubscriptions(c.id, cm.Subject, false)
		}
	}
}

type publishRequest struct {
	Type    string          `json:"type"`
	Subject string          `json:"subject,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type publishHandler struct {
	h *hub
}

func (ph publishHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendBadRequestError(w, "Unable to decode POST body.")
		return
	}
	if req.Type == "" {
		sendBadRequestError(w, "Event type is required.")
		return
	}

	ev := newEvent(req.Type, req.Payload)
	var queued int
	if req.Subject == "" {
		queued = ph.h.disp.broadcastGlobal(ev)
	} else {
		queued = ph.h.disp.broadcastTargeted(ev, req.Subject)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"queued": queued})
}

type statsHandler struct {
	h *hub
}

func (sh statsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sh.h.status())
}

type clientStatsHandler struct {
	h *hub
}

func (ch clientStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["client_id"]
	c := ch.h.reg.lookup(id)
	if c == nil {
		http.Error(w, "Error: not found.", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c.status())
}

func sendBadRequestError(w http.ResponseWriter, str string) {
	http.Error(w,
		fmt.Sprintf("Error: bad request. %s", str),
		http.StatusBadRequest)
}

func admissionStatus(err error) int {
	switch {
	case errors.Is(err, ErrAlreadyConnected):
		return http.StatusConflict
	case errors.Is(err, ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
