package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/capitol/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	eventBufferSize   = 64
	eventWriteTimeout = 5 * time.Second
	pingInterval      = 30 * time.Second
)

// EventsStreamHandler streams bus events to websocket clients.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws?types=a,b. Without types every event is sent.
// A client that falls behind by more than eventBufferSize events loses the overflow.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.eventBus == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	types := parseEventTypes(r.URL.Query().Get("types"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ch := make(chan *events.Event, eventBufferSize)
	unsubscribe := h.eventBus.SubscribeAll(types, func(e *events.Event) {
		select {
		case ch <- e:
		default:
			h.log.Debug().Str("type", string(e.Type)).Msg("Dropping event for slow client")
		}
	})
	defer unsubscribe()

	// Reads only detect client closure; CloseRead cancels ctx when that happens.
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Int("types", len(types)).Msg("Event stream client connected")
	defer h.log.Info().Msg("Event stream client disconnected")

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case e := <-ch:
			if err := writeEvent(ctx, conn, e); err != nil {
				h.log.Debug().Err(err).Msg("Event write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, e *events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func parseEventTypes(filter string) []events.EventType {
	if strings.TrimSpace(filter) == "" {
		return events.AllEventTypes
	}
	var out []events.EventType
	for _, t := range strings.Split(filter, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, events.EventType(t))
		}
	}
	return out
}
