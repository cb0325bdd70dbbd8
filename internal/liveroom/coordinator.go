// Package liveroom coordinates the viewers of a live transmission: room
// membership, the viewer count, the offering banner, readings, prayer
// requests, and chat fan-out. Room membership lives in memory; viewer
// sessions are persisted so a transmission's audience can be inspected
// after the fact.
package liveroom

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
)

// Events emitted to room members.
const (
	EventViewerCount    = "viewer-count"
	EventOfferingStatus = "oferta-status"
	EventNewReading     = "new-leitura"
	EventNewPrayer      = "new-pedido"
	EventChat           = "new-message"
)

// ViewerCount is the payload for EventViewerCount events.
type ViewerCount struct {
	LiveID int64 `json:"liveId"`
	Count  int   `json:"count"`
}

// OfferingStatus is the payload for EventOfferingStatus events.
type OfferingStatus struct {
	LiveID int64 `json:"liveId"`
	Active bool  `json:"ofertaAtiva"`
}

// ChatMessage is relayed to room members and never persisted.
type ChatMessage struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name,omitempty"`
	Text   string `json:"texto"`
}

// Conn is the transport surface the coordinator needs.
type Conn interface {
	ID() uuid.UUID
	Send(event string, payload any) error
}

type membership struct {
	liveID    int64
	sessionID uuid.UUID
}

// Coordinator tracks which connections are watching which live. A
// connection belongs to at most one room; joining a second room leaves the
// first.
type Coordinator struct {
	lives    store.LiveStore
	sessions store.ViewerSessionStore
	readings store.ReadingStore
	prayers  store.PrayerRequestStore

	mu      sync.Mutex
	members map[int64]map[uuid.UUID]Conn
	joined  map[uuid.UUID]membership
}

// NewCoordinator creates a coordinator persisting through the given stores.
func NewCoordinator(lives store.LiveStore, sessions store.ViewerSessionStore, readings store.ReadingStore, prayers store.PrayerRequestStore) *Coordinator {
	return &Coordinator{
		lives:    lives,
		sessions: sessions,
		readings: readings,
		prayers:  prayers,
		members:  make(map[int64]map[uuid.UUID]Conn),
		joined:   make(map[uuid.UUID]membership),
	}
}

// Join adds conn to the live's room, opens a viewer session, and broadcasts
// the updated viewer count. A connection already in another room leaves it
// first; rejoining the same room is a no-op.
func (c *Coordinator) Join(ctx context.Context, liveID int64, conn Conn) error {
	if _, err := c.lives.Get(ctx, liveID); err != nil {
		return err
	}

	c.mu.Lock()
	if current, ok := c.joined[conn.ID()]; ok {
		if current.liveID == liveID {
			c.mu.Unlock()
			return nil
		}
		c.leaveLocked(ctx, conn.ID(), current)
	}

	session := &models.ViewerSession{SessionID: uuid.New(), LiveID: liveID}
	if err := c.sessions.Create(ctx, session); err != nil {
		log.Warn().Err(err).Int64("live_id", liveID).Msg("Failed to open viewer session")
	}

	room := c.members[liveID]
	if room == nil {
		room = make(map[uuid.UUID]Conn)
		c.members[liveID] = room
	}
	room[conn.ID()] = conn
	c.joined[conn.ID()] = membership{liveID: liveID, sessionID: session.SessionID}

	count := len(room)
	targets := roomTargets(room)
	c.mu.Unlock()

	broadcast(targets, EventViewerCount, ViewerCount{LiveID: liveID, Count: count})
	return nil
}

// Leave removes conn from its room, closes its viewer session, and
// broadcasts the updated count. Leaving when not in a room is a no-op.
func (c *Coordinator) Leave(ctx context.Context, conn Conn) {
	c.mu.Lock()
	current, ok := c.joined[conn.ID()]
	if !ok {
		c.mu.Unlock()
		return
	}
	liveID := current.liveID
	c.leaveLocked(ctx, conn.ID(), current)

	room := c.members[liveID]
	count := len(room)
	targets := roomTargets(room)
	c.mu.Unlock()

	broadcast(targets, EventViewerCount, ViewerCount{LiveID: liveID, Count: count})
}

// Disconnect handles a transport closing without an explicit leave.
func (c *Coordinator) Disconnect(ctx context.Context, conn Conn) {
	c.Leave(ctx, conn)
}

// leaveLocked removes the membership and closes the session. Callers must
// hold mu.
func (c *Coordinator) leaveLocked(ctx context.Context, connID uuid.UUID, current membership) {
	delete(c.joined, connID)
	if room := c.members[current.liveID]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(c.members, current.liveID)
		}
	}

	if err := c.sessions.Close(ctx, current.sessionID); err != nil {
		log.Warn().Err(err).Str("session_id", current.sessionID.String()).Msg("Failed to close viewer session")
	}
}

// ViewerCount returns the number of connections in the live's room.
func (c *Coordinator) ViewerCount(liveID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members[liveID])
}

// ToggleOffering persists the offering banner state and broadcasts it to
// the room. The broadcast only goes out after the write succeeds so members
// never see a state the store does not hold.
func (c *Coordinator) ToggleOffering(ctx context.Context, liveID int64, active bool) error {
	if err := c.lives.SetOfferingActive(ctx, liveID, active); err != nil {
		return err
	}

	c.broadcastRoom(liveID, EventOfferingStatus, OfferingStatus{LiveID: liveID, Active: active})
	return nil
}

// AddReading persists a reading announcement and broadcasts it to the room.
func (c *Coordinator) AddReading(ctx context.Context, reading *models.Reading) error {
	if err := c.readings.Create(ctx, reading); err != nil {
		return err
	}

	c.broadcastRoom(reading.LiveID, EventNewReading, reading)
	return nil
}

// AddPrayerRequest persists a prayer request and broadcasts it to the room.
func (c *Coordinator) AddPrayerRequest(ctx context.Context, request *models.PrayerRequest) error {
	if err := c.prayers.Create(ctx, request); err != nil {
		return err
	}

	c.broadcastRoom(request.LiveID, EventNewPrayer, request)
	return nil
}

// Chat relays a message to the room. Chat is ephemeral and never touches a
// store.
func (c *Coordinator) Chat(liveID int64, message ChatMessage) {
	c.broadcastRoom(liveID, EventChat, message)
}

func (c *Coordinator) broadcastRoom(liveID int64, event string, payload any) {
	c.mu.Lock()
	targets := roomTargets(c.members[liveID])
	c.mu.Unlock()

	broadcast(targets, event, payload)
}

func roomTargets(room map[uuid.UUID]Conn) []Conn {
	targets := make([]Conn, 0, len(room))
	for _, conn := range room {
		targets = append(targets, conn)
	}
	return targets
}

func broadcast(targets []Conn, event string, payload any) {
	for _, conn := range targets {
		if err := conn.Send(event, payload); err != nil {
			log.Debug().Err(err).Str("event", event).Msg("Room send failed")
		}
	}
}
