// Package fanhub is a real-time event distribution hub for a
// collaborative editing backend.
//
//	fanhub -addr=:8081
//
// Clients connect by opening a websocket to a path naming their client
// id (3-64 characters of [A-Za-z0-9_-], unique among connected peers).
//
//	ws://localhost:8081/alice-1
//
// A connected client receives every global event, plus targeted events
// for subjects it subscribes to by sending control messages:
//
//	{"action":"subscribe","subject":"doc-7"}
//	{"action":"unsubscribe","subject":"doc-7"}
//
// Producers publish by POSTing an event. An empty subject broadcasts
// globally; otherwise delivery is restricted to subscribers.
//
//	curl localhost:8081/publish -d '{"type":"doc-changed","subject":"doc-7","payload":{"rev":42}}'
//
// Each client owns a bounded queue (drop-oldest on overflow) and a
// single delivery worker, so a slow or stalled client never delays the
// others and the server never buffers without bound. Freshness beats
// completeness: a client that falls behind catches up on current state,
// not superseded history.
//
// Delivery counters are served at /stats and /clients/{client_id}.
package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

func newHandler(h *hub, origin string) http.Handler {
	handler := mux.NewRouter()

	// Route websocket requests
	handler.Headers(
		// Requests with these headers will use this handler
		"Connection", "Upgrade",
		"Upgrade", "websocket",
	).Handler(newWsHandler(h, origin))

	// Route producer and statistics requests
	handler.Methods("POST").Path("/publish").Handler(publishHandler{h: h})
	handler.Methods("GET").Path("/stats").Handler(statsHandler{h: h})
	handler.Methods("GET").Path("/clients/{client_id}").Handler(clientStatsHandler{h: h})

	return handler
}
