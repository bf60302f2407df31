package chathub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"astrona/backend/internal/config"
	"astrona/backend/internal/metrics"
	"astrona/backend/internal/models"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	UserID string
	Conn   *websocket.Conn
	Hub    *ManagerService

	send    chan models.Envelope
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	readMax int64

	// ctx is cancelled on Close so in-flight dispatch work for this
	// connection is abandoned.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, userID string, cfg config.HubConfig) *WebSocketClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketClient{
		UserID:  userID,
		Conn:    conn,
		Hub:     hub,
		send:    make(chan models.Envelope, cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(cfg.FrameRate), cfg.FrameBurst),
		readMax: cfg.MaxMessageBytes,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *WebSocketClient) GetUserID() string { return c.UserID }

// Send drops the frame when the outbound queue is full rather than waiting
// on a slow reader.
func (c *WebSocketClient) Send(frame models.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		slog.Debug("outbound queue full, dropping frame", "user_id", c.UserID, "type", string(frame.Type))
		c.Hub.Metrics.FrameDropped(metrics.DropQueueFull)
		return false
	}
}

// Run starts the pumps. Connect the client to the hub first so the arrival
// broadcast is queued before any inbound frame is read.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops both pumps; the write pump sends a close frame on its way out.
func (c *WebSocketClient) Close() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
	})
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Disconnect(context.WithoutCancel(c.ctx), c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.readMax)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "user_id", c.UserID, "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.Hub.Metrics.FrameDropped(metrics.DropRateLimited)
			continue
		}

		c.Hub.DispatchRaw(c.ctx, c.UserID, message)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.Conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(frame); err != nil {
				slog.Debug("websocket write failed", "user_id", c.UserID, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
