package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tiagosilva/ecclesia/internal/realtime"
)

const (
	reconnectInitialDelay = time.Second
	reconnectMaxDelay     = 10 * time.Second
	reconnectMaxTries     = 5
)

// Realtime maintains the WebSocket connection to the server. A dropped
// connection is redialed with exponential backoff, re-announcing the
// principal and rejoining the current room. A clean Close never
// reconnects.
type Realtime struct {
	url    string
	userID int64
	events chan realtime.Envelope

	mu     sync.Mutex
	ws     *websocket.Conn
	liveID int64
	closed bool
}

// NewRealtime creates a realtime client for the given ws:// URL and
// principal.
func NewRealtime(url string, userID int64) *Realtime {
	return &Realtime{
		url:    url,
		userID: userID,
		events: make(chan realtime.Envelope, 64),
	}
}

// Connect dials the server, announces the principal, and starts the read
// loop. Dialing retries with backoff before giving up.
func (r *Realtime) Connect(ctx context.Context) error {
	ws, err := r.dial(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.ws = ws
	r.mu.Unlock()

	if err := r.announce(); err != nil {
		return err
	}

	go r.readLoop(ctx)
	return nil
}

// Events delivers every envelope the server pushes. The channel closes
// when the connection is gone for good.
func (r *Realtime) Events() <-chan realtime.Envelope {
	return r.events
}

// Join enters a live room. The room is rejoined automatically after a
// reconnect.
func (r *Realtime) Join(liveID int64) error {
	r.mu.Lock()
	r.liveID = liveID
	r.mu.Unlock()
	return r.Send(realtime.EventJoinLive, realtime.JoinLive{LiveID: realtime.LiveID(liveID)})
}

// Leave exits the current room.
func (r *Realtime) Leave() error {
	r.mu.Lock()
	liveID := r.liveID
	r.liveID = 0
	r.mu.Unlock()

	if liveID == 0 {
		return nil
	}
	return r.Send(realtime.EventLeaveLive, realtime.JoinLive{LiveID: realtime.LiveID(liveID)})
}

// Send writes an event envelope to the server.
func (r *Realtime) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(realtime.Envelope{Type: event, Data: data})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ws == nil || r.closed {
		return fmt.Errorf("client: realtime connection is closed")
	}
	return r.ws.WriteMessage(websocket.TextMessage, raw)
}

// Close shuts the connection down cleanly. No reconnect follows.
func (r *Realtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	if r.ws != nil {
		_ = r.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = r.ws.Close()
	}
}

func (r *Realtime) dial(ctx context.Context) (*websocket.Conn, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = reconnectInitialDelay
	expo.MaxInterval = reconnectMaxDelay
	expo.Multiplier = 2

	return backoff.Retry(ctx, func() (*websocket.Conn, error) {
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, r.url, nil)
		if err != nil {
			log.Debug().Err(err).Str("url", r.url).Msg("Dial failed")
			return nil, err
		}
		return ws, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(reconnectMaxTries))
}

func (r *Realtime) announce() error {
	if err := r.Send(realtime.EventUserConnected, realtime.UserConnected{UserID: r.userID}); err != nil {
		return err
	}

	r.mu.Lock()
	liveID := r.liveID
	r.mu.Unlock()

	if liveID != 0 {
		return r.Send(realtime.EventJoinLive, realtime.JoinLive{LiveID: realtime.LiveID(liveID)})
	}
	return nil
}

func (r *Realtime) readLoop(ctx context.Context) {
	for {
		r.mu.Lock()
		ws := r.ws
		r.mu.Unlock()

		_, raw, err := ws.ReadMessage()
		if err == nil {
			var env realtime.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				log.Debug().Err(err).Msg("Malformed envelope from server")
				continue
			}
			r.events <- env
			continue
		}

		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()

		if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			close(r.events)
			return
		}

		log.Debug().Err(err).Msg("Connection lost, reconnecting")
		if err := r.reconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("Reconnect gave up")
			close(r.events)
			return
		}
	}
}

func (r *Realtime) reconnect(ctx context.Context) error {
	ws, err := r.dial(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = ws.Close()
		return fmt.Errorf("client: closed during reconnect")
	}
	r.ws = ws
	r.mu.Unlock()

	return r.announce()
}
