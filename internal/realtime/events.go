// Package realtime is the WebSocket transport: one upgraded connection per
// browser tab, a typed event envelope, and a single dispatch table routing
// inbound events to the presence registry and the live-room coordinator.
package realtime

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Inbound event types. Outbound types are declared by the packages that
// emit them.
const (
	EventUserConnected  = "user_connected"
	EventJoinLive       = "join-live"
	EventLeaveLive      = "leave-live"
	EventToggleOffering = "toggle-oferta"
	EventAddReading     = "add-leitura"
	EventPrayerRequest  = "pedido-oracao"
	EventChat           = "chat-message"
	EventError          = "error"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// LiveID accepts both a JSON number and a quoted string, since browser
// clients routinely send route params unconverted.
type LiveID int64

func (l *LiveID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*l = LiveID(v)
	return nil
}

func (l LiveID) Int64() int64 { return int64(l) }

// UserConnected announces the authenticated principal behind a connection.
type UserConnected struct {
	UserID int64 `json:"userId"`
}

// JoinLive asks to enter a live room. LeaveLive shares the shape.
type JoinLive struct {
	LiveID LiveID `json:"liveId"`
}

// ToggleOffering flips the offering banner for a live.
type ToggleOffering struct {
	LiveID LiveID `json:"liveId"`
	Active bool   `json:"ofertaAtiva"`
}

// AddReading announces a scripture reading at a minute marker.
type AddReading struct {
	LiveID       LiveID `json:"liveId"`
	Text         string `json:"texto"`
	MinuteMarker string `json:"minuto"`
}

// PrayerRequest submits a prayer request for the live.
type PrayerRequest struct {
	LiveID LiveID `json:"liveId"`
	For    string `json:"para"`
	Reason string `json:"motivo"`
}

// Chat carries an ephemeral chat line for the live room.
type Chat struct {
	LiveID LiveID `json:"liveId"`
	Name   string `json:"name,omitempty"`
	Text   string `json:"texto"`
}

// ErrorPayload is sent back on the connection when an inbound event fails.
type ErrorPayload struct {
	Error string `json:"error"`
}
