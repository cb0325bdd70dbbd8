// Package presence tracks which principals are connected over the realtime
// transport. Each principal holds at most one registered connection; a new
// announcement evicts the previous connection before taking its place. The
// in-memory registry is the source of truth for online status, the durable
// online flag is a best-effort mirror.
package presence

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tiagosilva/ecclesia/internal/store"
)

// EventStatusChange is broadcast whenever a principal comes online or goes
// offline.
const EventStatusChange = "status_change"

// StatusChange is the payload for EventStatusChange events.
type StatusChange struct {
	UserID int64 `json:"userId"`
	Online bool  `json:"online"`
}

// Conn is the transport surface the registry needs: an identity, a
// best-effort send, and a way to terminate an evicted connection.
type Conn interface {
	ID() uuid.UUID
	Send(event string, payload any) error
	Close()
}

// Registry maps principals to their single registered connection and keeps
// the set of all open transports for broadcast.
type Registry struct {
	principals store.PrincipalStore

	mu         sync.Mutex
	registered map[int64]Conn
	owners     map[uuid.UUID]int64
	all        map[uuid.UUID]Conn
}

// NewRegistry creates an empty registry mirroring online flags into the
// given principal store.
func NewRegistry(principals store.PrincipalStore) *Registry {
	return &Registry{
		principals: principals,
		registered: make(map[int64]Conn),
		owners:     make(map[uuid.UUID]int64),
		all:        make(map[uuid.UUID]Conn),
	}
}

// Track adds an open transport to the broadcast set. A tracked connection
// receives status broadcasts even before it has announced a principal.
func (r *Registry) Track(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all[conn.ID()] = conn
}

// Untrack removes a transport from the broadcast set.
func (r *Registry) Untrack(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.all, connID)
}

// AnnounceConnected registers conn as the principal's single connection.
// Any previously registered connection for the same principal is closed
// first. The status change is broadcast to every tracked transport, and the
// new connection receives a catch-up burst with one status event per
// principal already online.
func (r *Registry) AnnounceConnected(ctx context.Context, principalID int64, conn Conn) {
	r.mu.Lock()

	evicted := r.registered[principalID]
	if evicted != nil {
		delete(r.owners, evicted.ID())
	}

	r.registered[principalID] = conn
	r.owners[conn.ID()] = principalID

	online := make([]int64, 0, len(r.registered))
	for id := range r.registered {
		if id != principalID {
			online = append(online, id)
		}
	}
	targets := r.broadcastTargets()
	r.mu.Unlock()

	if evicted != nil {
		log.Debug().Int64("principal_id", principalID).Msg("Evicting previous connection")
		evicted.Close()
	}

	if err := r.principals.SetOnline(ctx, principalID, true); err != nil {
		log.Warn().Err(err).Int64("principal_id", principalID).Msg("Failed to persist online flag")
	}

	broadcast(targets, StatusChange{UserID: principalID, Online: true})

	// Catch-up burst so the new connection sees everyone already online.
	for _, id := range online {
		if err := conn.Send(EventStatusChange, StatusChange{UserID: id, Online: true}); err != nil {
			log.Debug().Err(err).Int64("principal_id", id).Msg("Catch-up send failed")
		}
	}
}

// AnnounceDisconnected marks the principal offline if conn is still its
// registered connection. A connection that was evicted and is only now
// closing must not mark its replacement offline.
func (r *Registry) AnnounceDisconnected(ctx context.Context, conn Conn) {
	r.mu.Lock()

	principalID, ok := r.owners[conn.ID()]
	if !ok {
		r.mu.Unlock()
		return
	}

	delete(r.owners, conn.ID())
	delete(r.registered, principalID)
	targets := r.broadcastTargets()
	r.mu.Unlock()

	if err := r.principals.SetOnline(ctx, principalID, false); err != nil {
		log.Warn().Err(err).Int64("principal_id", principalID).Msg("Failed to persist offline flag")
	}

	broadcast(targets, StatusChange{UserID: principalID, Online: false})
}

// Online returns the principals with a registered connection.
func (r *Registry) Online() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.registered))
	for id := range r.registered {
		ids = append(ids, id)
	}
	return ids
}

// IsOnline reports whether the principal has a registered connection.
func (r *Registry) IsOnline(principalID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.registered[principalID]
	return ok
}

// broadcastTargets snapshots the tracked connections. Callers must hold mu.
func (r *Registry) broadcastTargets() []Conn {
	targets := make([]Conn, 0, len(r.all))
	for _, c := range r.all {
		targets = append(targets, c)
	}
	return targets
}

func broadcast(targets []Conn, change StatusChange) {
	for _, c := range targets {
		if err := c.Send(EventStatusChange, change); err != nil {
			log.Debug().Err(err).Str("conn_id", c.ID().String()).Msg("Broadcast send failed")
		}
	}
}
