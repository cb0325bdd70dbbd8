package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// heartbeatInterval is how often the server pings each connection.
	heartbeatInterval = 30 * time.Second

	// pongWait allows one missed pong before the read side gives up.
	pongWait = heartbeatInterval + 10*time.Second

	writeWait      = 10 * time.Second
	maxMessageSize = 32 * 1024
	sendBufferSize = 256
)

// ErrSendBufferFull is returned when a connection cannot keep up with
// broadcasts. Sends are best-effort; a full buffer drops the event.
var ErrSendBufferFull = errors.New("realtime: send buffer full")

// Conn wraps a single upgraded WebSocket. All writes go through the send
// channel so only the write pump touches the socket.
type Conn struct {
	id uuid.UUID
	ws *websocket.Conn

	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		id:     uuid.New(),
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// ID returns the connection's identity, assigned at upgrade time.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Send queues an event envelope for delivery. It never blocks; events to a
// slow connection are dropped with ErrSendBufferFull.
func (c *Conn) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(Envelope{Type: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	case c.send <- raw:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close terminates the connection. Safe to call from any goroutine and
// more than once; the read pump unblocks when the socket closes.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// writePump drains the send channel onto the socket and pings on the
// heartbeat interval. It owns all socket writes.
func (c *Conn) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case raw := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads envelopes and hands them to dispatch until the connection
// dies. A connection that stops answering pings is terminated by the read
// deadline.
func (c *Conn) readPump(dispatch func(Envelope)) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", c.id.String()).Msg("Read failed")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Debug().Err(err).Str("conn_id", c.id.String()).Msg("Malformed envelope")
			continue
		}

		dispatch(env)
	}
}
