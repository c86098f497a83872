package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/events"
)

// EventsStreamHandler streams engine events over Server-Sent Events (SSE)
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream requests (SSE)
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Optional ?types=a,b,c filter
	allowed := parseTypesFilter(r.URL.Query().Get("types"))

	stream, cancel := h.bus.Subscribe(64)
	defer cancel()

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("SSE client connected")

	// Keep-alive comments prevent proxies from closing idle streams
	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Debug().Str("remote", r.RemoteAddr).Msg("SSE client disconnected")
			return

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case event, ok := <-stream:
			if !ok {
				return
			}
			if allowed != nil && !allowed[event.Type] {
				continue
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.log.Warn().Err(err).Msg("Failed to encode event for stream")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}

func parseTypesFilter(raw string) map[events.EventType]bool {
	if raw == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			allowed[events.EventType(part)] = true
		}
	}
	return allowed
}
