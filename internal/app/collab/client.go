/*
Package collab implements the real-time collaboration core.

This file defines the websocket Client: the transport binding for one
Connection. It runs the read/write pumps, maintains the ping/pong
heartbeat, and feeds inbound frames into the Hub's dispatcher.
*/
package collab

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lexcollab/internal/pkg/errs"
	"lexcollab/internal/pkg/logx"
)

const (
	// timeout for writing a frame to the websocket connection.
	writeWait = 10 * time.Second

	// maximum time to wait for a Pong before the read deadline trips.
	pongWait = 60 * time.Second

	// frequency of server Ping frames.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound frame.
	maxFrameSize = 8192

	// sendBufferSize is the per-connection outbound queue depth.
	sendBufferSize = 256
)

// Client binds one websocket connection to its Hub session. It implements
// Sink: broadcasts are queued on the buffered send channel and drained by
// WritePump.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *Connection

	// send queues encoded frames awaiting delivery to the client.
	send chan []byte

	// closeOnce guards the send channel against double close when both
	// pumps terminate.
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewClient registers a new connection with the hub and returns its
// transport binding. Registration failures (missing identity, duplicate
// connection id) are returned before any pump starts, and the caller
// closes the websocket.
func NewClient(hub *Hub, wsConn *websocket.Conn, connID, userID, displayName string) (*Client, *errs.CustomError) {
	client := &Client{
		hub:  hub,
		conn: wsConn,
		send: make(chan []byte, sendBufferSize),
		logger: logx.Logger().With().
			Str("conn_id", connID).
			Str("user_id", userID).
			Logger(),
	}

	session, customErr := hub.Connect(connID, userID, displayName, client)
	if customErr != nil {
		return nil, customErr
	}

	client.session = session
	return client, nil
}

// Queue implements Sink. Returns false when the buffer is full; the slow
// client misses the frame rather than stalling the room.
func (c *Client) Queue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close implements Sink. Closing the send channel makes WritePump drain the
// remaining frames, emit a websocket close frame, and tear the socket down,
// which in turn ends ReadPump.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump reads frames from the websocket and dispatches them until the
// connection dies, then unwinds the session. The deferred cleanup is the
// single disconnect path for the connection: transport close, client
// logout, and heartbeat timeout all end here.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.hub.Dispatch(c.session, frame)
	}
}

// cleanupOnDisconnect unwinds the session when ReadPump terminates.
// Hub.Disconnect is idempotent, so a duplicate signal is harmless.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting.")

	c.hub.Disconnect(c.session.ID)

	c.Close()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error during cleanup")
	}
}

// WritePump drains the send queue to the websocket and keeps the heartbeat
// alive with periodic Ping frames.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one queued frame. Returns false when WritePump
// should terminate.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close frame")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePing sends a heartbeat Ping. Returns false on write failure.
func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
