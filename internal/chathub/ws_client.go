package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/config"
	"pratojusto/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	Session    *Session
	Conn       *websocket.Conn
	Hub        *ManagerService
	Dispatcher FrameHandler
	Send       chan models.Envelope

	cfg   config.RealtimeConfig
	attrs map[string]string
	log   logrus.FieldLogger

	mu     sync.Mutex
	closed bool
}

// NewWebSocketClient wraps an upgraded connection. attrs are the handshake
// attributes captured from the upgrade request.
func NewWebSocketClient(conn *websocket.Conn, hub *ManagerService, d FrameHandler, cfg config.RealtimeConfig, attrs map[string]string) *WebSocketClient {
	connID := uuid.NewString()
	return &WebSocketClient{
		Session:    NewSession(connID),
		Conn:       conn,
		Hub:        hub,
		Dispatcher: d,
		Send:       make(chan models.Envelope, cfg.SendBuffer),
		cfg:        cfg,
		attrs:      attrs,
		log:        hub.log.WithField("conn_id", connID),
	}
}

func (c *WebSocketClient) GetUserID() uint                         { return c.Session.UserID() }
func (c *WebSocketClient) GetConnID() string                       { return c.Session.ConnID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Envelope { return c.Send }
func (c *WebSocketClient) GetSession() *Session                   { return c.Session }
func (c *WebSocketClient) Attributes() map[string]string          { return c.attrs }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump; the read pump ends when the connection closes.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Reply queues an envelope for this connection only. It reports false when
// the client is closed or its buffer is full.
func (c *WebSocketClient) Reply(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}

func (c *WebSocketClient) readPump() {
	ctx, cancel := context.WithCancel(context.Background())

	// Connections that never bind are closed after the auth timeout.
	var authTimer *time.Timer
	if c.cfg.AuthTimeout > 0 {
		authTimer = time.AfterFunc(c.cfg.AuthTimeout, func() {
			if !c.Session.Authenticated() {
				c.log.Info("closing connection that never authenticated")
				c.Conn.Close()
			}
		})
	}

	defer func() {
		if authTimer != nil {
			authTimer.Stop()
		}
		cancel()
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("error reading message")
			}
			break
		}

		var frame models.InboundFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.log.WithError(err).Debug("undecodable frame")
			c.Reply(errorEnvelope(apperr.InvalidArgument("frame is not valid JSON")))
			continue
		}

		c.Dispatcher.HandleFrame(ctx, c, frame)
	}
}

// writePump читає конверти з каналу Send і записує їх у WebSocket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod())

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				// Hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(env); err != nil {
				c.log.WithError(err).Debug("write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
