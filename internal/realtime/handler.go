package realtime

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tiagosilva/ecclesia/internal/liveroom"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/presence"
)

// Handler upgrades HTTP requests and runs the event loop for each
// connection. Every inbound event goes through the one dispatch switch in
// handleEvent; outbound fan-out belongs to presence and liveroom.
type Handler struct {
	presence *presence.Registry
	rooms    *liveroom.Coordinator
	upgrader websocket.Upgrader
}

// NewHandler creates the WebSocket handler.
func NewHandler(registry *presence.Registry, rooms *liveroom.Coordinator) *Handler {
	return &Handler{
		presence: registry,
		rooms:    rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 4,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := newConn(ws)
	ctx := r.Context()

	h.presence.Track(conn)
	defer func() {
		h.rooms.Disconnect(context.WithoutCancel(ctx), conn)
		h.presence.AnnounceDisconnected(context.WithoutCancel(ctx), conn)
		h.presence.Untrack(conn.ID())
		conn.Close()
	}()

	go conn.writePump()

	// principalID is set by the user_connected announcement and is the
	// authoritative author identity for everything the connection sends.
	var principalID int64

	conn.readPump(func(env Envelope) {
		h.handleEvent(ctx, conn, &principalID, env)
	})
}

// handleEvent is the single dispatch point for inbound events.
func (h *Handler) handleEvent(ctx context.Context, conn *Conn, principalID *int64, env Envelope) {
	switch env.Type {
	case EventUserConnected:
		var payload UserConnected
		if !decode(conn, env, &payload) {
			return
		}
		*principalID = payload.UserID
		h.presence.AnnounceConnected(ctx, payload.UserID, conn)

	case EventJoinLive:
		var payload JoinLive
		if !decode(conn, env, &payload) {
			return
		}
		if err := h.rooms.Join(ctx, payload.LiveID.Int64(), conn); err != nil {
			sendError(conn, err)
		}

	case EventLeaveLive:
		h.rooms.Leave(ctx, conn)

	case EventToggleOffering:
		var payload ToggleOffering
		if !decode(conn, env, &payload) {
			return
		}
		if err := h.rooms.ToggleOffering(ctx, payload.LiveID.Int64(), payload.Active); err != nil {
			sendError(conn, err)
		}

	case EventAddReading:
		var payload AddReading
		if !decode(conn, env, &payload) {
			return
		}
		reading := &models.Reading{
			LiveID:       payload.LiveID.Int64(),
			Text:         payload.Text,
			MinuteMarker: payload.MinuteMarker,
		}
		if err := h.rooms.AddReading(ctx, reading); err != nil {
			sendError(conn, err)
		}

	case EventPrayerRequest:
		var payload PrayerRequest
		if !decode(conn, env, &payload) {
			return
		}
		request := &models.PrayerRequest{
			LiveID: payload.LiveID.Int64(),
			For:    payload.For,
			Reason: payload.Reason,
		}
		if err := h.rooms.AddPrayerRequest(ctx, request); err != nil {
			sendError(conn, err)
		}

	case EventChat:
		var payload Chat
		if !decode(conn, env, &payload) {
			return
		}
		h.rooms.Chat(payload.LiveID.Int64(), liveroom.ChatMessage{
			UserID: *principalID,
			Name:   payload.Name,
			Text:   payload.Text,
		})

	default:
		log.Debug().Str("event", env.Type).Msg("Unknown event type")
	}
}

func decode(conn *Conn, env Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		log.Debug().Err(err).Str("event", env.Type).Msg("Malformed event payload")
		sendError(conn, err)
		return false
	}
	return true
}

func sendError(conn *Conn, err error) {
	if sendErr := conn.Send(EventError, ErrorPayload{Error: err.Error()}); sendErr != nil {
		log.Debug().Err(sendErr).Msg("Error send failed")
	}
}
